package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-approval/internal/domain"
)

type fakeVerificationLog struct {
	records []domain.VerificationRecord
	failing bool
}

func (f *fakeVerificationLog) Append(ctx context.Context, rec *domain.VerificationRecord) error {
	if f.failing {
		return errors.New("log table unavailable")
	}
	rec.ID = int64(len(f.records) + 1)
	rec.CreatedAt = time.Now()
	f.records = append(f.records, *rec)
	return nil
}

func newVerifyFixture() (*VerifyService, *fakePaymentRepo, *fakeVerificationLog, *fakeSettings) {
	payments := newFakePaymentRepo()
	vlog := &fakeVerificationLog{}
	settings := &fakeSettings{settings: domain.DefaultWorkflowSettings()}
	return NewVerifyService(payments, vlog, settings), payments, vlog, settings
}

func TestStatusBadge_Table(t *testing.T) {
	cases := []struct {
		state    domain.ApprovalState
		severity string
		label    string
	}{
		{domain.StateDraft, "info", "Draft - Not Processed"},
		{domain.StateUnderReview, "warning", "Under Review"},
		{domain.StateForApproval, "warning", "Pending Approval"},
		{domain.StateForAuthorization, "warning", "Pending Authorization"},
		{domain.StateApproved, "success", "Approved"},
		{domain.StatePosted, "success", "VERIFIED & POSTED"},
		{domain.StateCancelled, "danger", "Cancelled"},
		{domain.StateRejected, "danger", "Rejected"},
	}
	for _, tc := range cases {
		severity, label := StatusBadge(tc.state)
		if severity != tc.severity || label != tc.label {
			t.Errorf("StatusBadge(%q) = (%q, %q), want (%q, %q)", tc.state, severity, label, tc.severity, tc.label)
		}
	}
}

func TestStatusBadge_UnknownState(t *testing.T) {
	severity, label := StatusBadge(domain.ApprovalState("migrating"))
	if severity != "secondary" || label != "Unknown" {
		t.Fatalf("StatusBadge(unknown) = (%q, %q), want (secondary, Unknown)", severity, label)
	}
}

func TestVerify_KnownPayment(t *testing.T) {
	svc, payments, vlog, _ := newVerifyFixture()
	p := &domain.Payment{Name: "PAY/1", Partner: "Acme", Amount: 100, State: domain.StatePosted}
	if err := payments.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	payments.payments[p.ID].State = domain.StatePosted

	result := svc.Verify(context.Background(), p.ID, "203.0.113.9", domain.MethodQRScan)
	if !result.Found {
		t.Fatal("expected payment to be found")
	}
	if result.Label != "VERIFIED & POSTED" {
		t.Errorf("label = %q", result.Label)
	}

	if len(vlog.records) != 1 {
		t.Fatalf("records = %d, want 1", len(vlog.records))
	}
	rec := vlog.records[0]
	if rec.Outcome != domain.OutcomeSuccess {
		t.Errorf("outcome = %q, want success", rec.Outcome)
	}
	if rec.Method != domain.MethodQRScan {
		t.Errorf("method = %q, want qr_scan", rec.Method)
	}
	if rec.IPAddress != "203.0.113.9" {
		t.Errorf("ip = %q", rec.IPAddress)
	}
}

// Probes against payment ids that do not exist are still logged, as failures.
func TestVerify_MissingPaymentLogsFailedAttempt(t *testing.T) {
	svc, _, vlog, _ := newVerifyFixture()

	result := svc.Verify(context.Background(), 9999, "203.0.113.9", domain.MethodWebAccess)
	if result.Found {
		t.Fatal("missing payment must not be found")
	}

	if len(vlog.records) != 1 {
		t.Fatalf("records = %d, want 1", len(vlog.records))
	}
	if vlog.records[0].Outcome != domain.OutcomeFailed {
		t.Errorf("outcome = %q, want failed", vlog.records[0].Outcome)
	}
}

func TestVerify_LogFailureIsNonFatal(t *testing.T) {
	svc, payments, vlog, _ := newVerifyFixture()
	vlog.failing = true

	p := &domain.Payment{Name: "PAY/1", State: domain.StateApproved}
	if err := payments.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	payments.payments[p.ID].State = domain.StateApproved

	result := svc.Verify(context.Background(), p.ID, "", domain.MethodWebAccess)
	if !result.Found {
		t.Fatal("log failure must not block verification")
	}
}

func TestVerify_DisabledFeature(t *testing.T) {
	svc, payments, vlog, settings := newVerifyFixture()
	settings.settings.EnableQRVerification = false

	p := &domain.Payment{Name: "PAY/1", State: domain.StateApproved}
	if err := payments.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}

	result := svc.Verify(context.Background(), p.ID, "", domain.MethodWebAccess)
	if result.Found {
		t.Fatal("disabled verification must behave as not found")
	}
	if len(vlog.records) != 0 {
		t.Error("disabled verification must not log attempts")
	}
}

// A failing settings read renders the generic page but still leaves a failed
// record in the trail.
func TestVerify_SettingsErrorStillLogs(t *testing.T) {
	svc, payments, vlog, settings := newVerifyFixture()
	settings.err = errors.New("settings table unavailable")

	p := &domain.Payment{Name: "PAY/1", State: domain.StateApproved}
	if err := payments.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}

	result := svc.Verify(context.Background(), p.ID, "203.0.113.9", domain.MethodQRScan)
	if result.Found {
		t.Fatal("settings failure must behave as not found")
	}
	if len(vlog.records) != 1 {
		t.Fatalf("records = %d, want 1", len(vlog.records))
	}
	rec := vlog.records[0]
	if rec.Outcome != domain.OutcomeFailed {
		t.Errorf("outcome = %q, want failed", rec.Outcome)
	}
	if rec.Method != domain.MethodQRScan {
		t.Errorf("method = %q, want qr_scan", rec.Method)
	}
}

func TestVerify_UnknownMethodNormalized(t *testing.T) {
	svc, payments, vlog, _ := newVerifyFixture()
	p := &domain.Payment{Name: "PAY/1", State: domain.StateApproved}
	if err := payments.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}

	svc.Verify(context.Background(), p.ID, "", "carrier_pigeon")
	if len(vlog.records) != 1 {
		t.Fatalf("records = %d, want 1", len(vlog.records))
	}
	if vlog.records[0].Method != domain.MethodWebAccess {
		t.Errorf("method = %q, want web_access", vlog.records[0].Method)
	}
}

func TestVerificationCode_Format(t *testing.T) {
	ts := time.Now()
	code := VerificationCode(42, ts)

	if len(code) != 12 {
		t.Fatalf("len = %d, want 12", len(code))
	}
	for _, c := range code {
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
			t.Fatalf("code %q contains non-uppercase-hex character %q", code, c)
		}
	}

	if VerificationCode(42, ts) != code {
		t.Error("same inputs must produce the same code")
	}
	if VerificationCode(43, ts) == code {
		t.Error("different payment ids should produce different codes")
	}
}
