package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"payment-approval/internal/domain"
)

var paymentCols = []string{
	"id", "name", "partner", "amount", "currency", "direction", "company", "journal_id",
	"approval_state", "required_stages",
	"reviewer_id", "reviewed_at", "approver_id", "approved_at", "authorizer_id", "authorized_at",
	"rejection_reason", "show_qr", "qr_image", "qr_checksum", "posted_at", "created_at", "updated_at",
}

func paymentRow(id int64, state string, stages string) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, "PAY/2026/0001", "Acme Supplies", 5000.0, "USD", "outbound", "Main Co", int64(1),
		state, stages,
		nil, nil, nil, nil, nil, nil,
		nil, true, "", "", nil, now, now,
	}
}

func TestPaymentRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewPaymentRepository(db)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO payments").
		WithArgs("PAY/2026/0001", "Acme Supplies", 5000.0, "USD", "outbound", "Main Co", int64(1), "draft", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	p := &domain.Payment{
		Name:      "PAY/2026/0001",
		Partner:   "Acme Supplies",
		Amount:    5000,
		Currency:  "USD",
		Direction: "outbound",
		Company:   "Main Co",
		JournalID: 1,
		ShowQR:    true,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != 7 {
		t.Errorf("id = %d, want 7", p.ID)
	}
	if p.State != domain.StateDraft {
		t.Errorf("state = %q, want draft", p.State)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPaymentRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM payments WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(paymentCols))

	_, err = repo.GetByID(context.Background(), 99)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestPaymentRepository_GetByID_DecodesStages(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows(paymentCols).AddRow(paymentRow(7, "under_review", "reviewer,approver")...)
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	p, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if p.State != domain.StateUnderReview {
		t.Errorf("state = %q", p.State)
	}
	if len(p.RequiredStages) != 2 || p.RequiredStages[0] != domain.RoleReviewer || p.RequiredStages[1] != domain.RoleApprover {
		t.Errorf("stages = %v", p.RequiredStages)
	}
}

func TestPaymentRepository_List_AppliesFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewPaymentRepository(db)

	state := domain.StateUnderReview
	journal := int64(3)

	rows := sqlmock.NewRows(paymentCols).AddRow(paymentRow(1, "under_review", "reviewer")...)
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE 1=1 AND approval_state = \\$1 AND journal_id = \\$2 ORDER BY id").
		WithArgs("under_review", journal).
		WillReturnRows(rows)

	out, err := repo.List(context.Background(), PaymentsFilter{State: &state, JournalID: &journal})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 || out[0].ID != 1 {
		t.Fatalf("out = %v", out)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPaymentRepository_Transition_Wins(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewPaymentRepository(db)
	role := domain.RoleReviewer
	actedAt := time.Now()

	mock.ExpectExec("UPDATE payments SET approval_state = \\$1, updated_at = now\\(\\), reviewer_id = \\$2, reviewed_at = \\$3 WHERE id = \\$4 AND approval_state = \\$5").
		WithArgs("approved", int64(1), actedAt, int64(7), "under_review").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Transition(context.Background(), 7, domain.StateUnderReview, domain.StateApproved, TransitionUpdate{
		ActorRole: &role,
		ActorID:   1,
		ActedAt:   actedAt,
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPaymentRepository_Transition_LostRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewPaymentRepository(db)

	mock.ExpectExec("UPDATE payments SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT approval_state FROM payments WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"approval_state"}).AddRow("approved"))

	err = repo.Transition(context.Background(), 7, domain.StateUnderReview, domain.StateApproved, TransitionUpdate{})
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("error = %v, want ErrConcurrentModification", err)
	}
}

func TestPaymentRepository_Transition_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewPaymentRepository(db)

	mock.ExpectExec("UPDATE payments SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT approval_state FROM payments WHERE id").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"approval_state"}))

	err = repo.Transition(context.Background(), 404, domain.StateUnderReview, domain.StateApproved, TransitionUpdate{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestPaymentRepository_UpdateQRAsset(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewPaymentRepository(db)

	mock.ExpectExec("UPDATE payments SET qr_image").
		WithArgs("aGVsbG8=", "abc123", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateQRAsset(context.Background(), 7, "aGVsbG8=", "abc123"); err != nil {
		t.Fatalf("UpdateQRAsset: %v", err)
	}
}

func TestEncodeDecodeStages(t *testing.T) {
	stages := []domain.StageRole{domain.RoleReviewer, domain.RoleAuthorizer}
	encoded := encodeStages(stages)
	if encoded != "reviewer,authorizer" {
		t.Fatalf("encoded = %q", encoded)
	}

	decoded := decodeStages(encoded)
	if len(decoded) != 2 || decoded[0] != domain.RoleReviewer || decoded[1] != domain.RoleAuthorizer {
		t.Fatalf("decoded = %v", decoded)
	}

	if decodeStages("") != nil {
		t.Error("empty string decodes to nil")
	}
	if got := decodeStages("reviewer,bogus"); len(got) != 1 {
		t.Errorf("unknown roles must be dropped, got %v", got)
	}
}
