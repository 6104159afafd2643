package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-approval/internal/domain"
)

type PaymentsFilter struct {
	State     *domain.ApprovalState
	JournalID *int64
	Direction *string
	Company   *string
}

// TransitionUpdate carries the column changes applied together with a state
// transition. Everything is optional; the state guard is always applied.
type TransitionUpdate struct {
	ActorRole *domain.StageRole // records the actor into the role's columns
	ActorID   int64
	ActedAt   time.Time

	RequiredStages  []domain.StageRole // set at submit time
	SetStages       bool
	RejectionReason *string
	MarkPosted      bool
}

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, name, partner, amount, currency, direction, company, journal_id,
	approval_state, required_stages,
	reviewer_id, reviewed_at, approver_id, approved_at, authorizer_id, authorized_at,
	rejection_reason, show_qr, qr_image, qr_checksum, posted_at, created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (name, partner, amount, currency, direction, company, journal_id, approval_state, show_qr)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	if p.State == "" {
		p.State = domain.StateDraft
	}
	return r.db.QueryRowContext(ctx, query,
		p.Name, p.Partner, p.Amount, p.Currency, p.Direction, p.Company, p.JournalID,
		string(p.State), p.ShowQR,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepository) List(ctx context.Context, f PaymentsFilter) ([]domain.Payment, error) {
	base := `SELECT ` + paymentColumns + ` FROM payments`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.State != nil {
		where = append(where, fmt.Sprintf("approval_state = $%d", i))
		args = append(args, string(*f.State))
		i++
	}
	if f.JournalID != nil {
		where = append(where, fmt.Sprintf("journal_id = $%d", i))
		args = append(args, *f.JournalID)
		i++
	}
	if f.Direction != nil && *f.Direction != "" {
		where = append(where, fmt.Sprintf("direction = $%d", i))
		args = append(args, *f.Direction)
		i++
	}
	if f.Company != nil && *f.Company != "" {
		where = append(where, fmt.Sprintf("company = $%d", i))
		args = append(args, *f.Company)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOverdueReviews returns payments stuck in a review stage since before
// the cutoff.
func (r *PaymentRepository) ListOverdueReviews(ctx context.Context, cutoff time.Time) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE approval_state IN ($1, $2, $3) AND updated_at < $4
		ORDER BY updated_at`

	rows, err := r.db.QueryContext(ctx, query,
		string(domain.StateUnderReview), string(domain.StateForApproval), string(domain.StateForAuthorization), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Transition applies a guarded state change: the UPDATE only matches when the
// payment is still in the expected `from` state, so of two racing transitions
// exactly one wins. The loser gets domain.ErrConcurrentModification and must
// re-read before retrying.
func (r *PaymentRepository) Transition(ctx context.Context, id int64, from, to domain.ApprovalState, upd TransitionUpdate) error {
	set := []string{"approval_state = $1", "updated_at = now()"}
	args := []any{string(to)}
	i := 2

	if upd.ActorRole != nil {
		var idCol, atCol string
		switch *upd.ActorRole {
		case domain.RoleReviewer:
			idCol, atCol = "reviewer_id", "reviewed_at"
		case domain.RoleApprover:
			idCol, atCol = "approver_id", "approved_at"
		case domain.RoleAuthorizer:
			idCol, atCol = "authorizer_id", "authorized_at"
		default:
			return fmt.Errorf("unknown stage role %q", *upd.ActorRole)
		}
		set = append(set, fmt.Sprintf("%s = $%d", idCol, i))
		args = append(args, upd.ActorID)
		i++
		set = append(set, fmt.Sprintf("%s = $%d", atCol, i))
		args = append(args, upd.ActedAt)
		i++
	}

	if upd.SetStages {
		set = append(set, fmt.Sprintf("required_stages = $%d", i))
		args = append(args, encodeStages(upd.RequiredStages))
		i++
	}

	if upd.RejectionReason != nil {
		set = append(set, fmt.Sprintf("rejection_reason = $%d", i))
		args = append(args, *upd.RejectionReason)
		i++
	}

	if upd.MarkPosted {
		set = append(set, "posted_at = now()")
	}

	query := fmt.Sprintf("UPDATE payments SET %s WHERE id = $%d AND approval_state = $%d",
		strings.Join(set, ", "), i, i+1)
	args = append(args, id, string(from))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Nothing matched: either the payment is gone or someone moved it first.
	var current string
	err = r.db.QueryRowContext(ctx, `SELECT approval_state FROM payments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrConcurrentModification
}

// UpdateQRAsset stores a freshly rendered QR image with its dependency checksum.
func (r *PaymentRepository) UpdateQRAsset(ctx context.Context, id int64, image, checksum string) error {
	query := `UPDATE payments SET qr_image = $1, qr_checksum = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, image, checksum, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ── scan helpers ──

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(sc rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var state, stages string
	var reviewerID, approverID, authorizerID sql.NullInt64
	var reviewedAt, approvedAt, authorizedAt, postedAt sql.NullTime
	var rejectionReason, qrImage, qrChecksum sql.NullString

	if err := sc.Scan(
		&p.ID,
		&p.Name,
		&p.Partner,
		&p.Amount,
		&p.Currency,
		&p.Direction,
		&p.Company,
		&p.JournalID,
		&state,
		&stages,
		&reviewerID,
		&reviewedAt,
		&approverID,
		&approvedAt,
		&authorizerID,
		&authorizedAt,
		&rejectionReason,
		&p.ShowQR,
		&qrImage,
		&qrChecksum,
		&postedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.State = domain.ApprovalState(state)
	p.RequiredStages = decodeStages(stages)

	if reviewerID.Valid {
		v := reviewerID.Int64
		p.ReviewerID = &v
	}
	if reviewedAt.Valid {
		p.ReviewedAt = &reviewedAt.Time
	}
	if approverID.Valid {
		v := approverID.Int64
		p.ApproverID = &v
	}
	if approvedAt.Valid {
		p.ApprovedAt = &approvedAt.Time
	}
	if authorizerID.Valid {
		v := authorizerID.Int64
		p.AuthorizerID = &v
	}
	if authorizedAt.Valid {
		p.AuthorizedAt = &authorizedAt.Time
	}
	if rejectionReason.Valid && rejectionReason.String != "" {
		p.RejectionReason = &rejectionReason.String
	}
	if qrImage.Valid {
		p.QRImage = qrImage.String
	}
	if qrChecksum.Valid {
		p.QRChecksum = qrChecksum.String
	}
	if postedAt.Valid {
		p.PostedAt = &postedAt.Time
	}

	return &p, nil
}

func encodeStages(stages []domain.StageRole) string {
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

func decodeStages(s string) []domain.StageRole {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]domain.StageRole, 0, len(parts))
	for _, p := range parts {
		role := domain.StageRole(strings.TrimSpace(p))
		if role.Valid() {
			out = append(out, role)
		}
	}
	return out
}
