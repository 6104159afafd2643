package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"payment-approval/internal/domain"
)

type VerificationLogRepository interface {
	Append(ctx context.Context, rec *domain.VerificationRecord) error
}

// VerifyResult is everything the public status page needs. Found is false
// both for missing payments and for a disabled verification feature; the
// page renders the same generic response either way.
type VerifyResult struct {
	Found    bool
	Payment  *domain.Payment
	Severity string
	Label    string
	Code     string
}

// VerifyService resolves a payment identifier to its public status and
// records every attempt in the verification log.
type VerifyService struct {
	payments PaymentRepository
	vlog     VerificationLogRepository
	settings SettingsSource
}

func NewVerifyService(payments PaymentRepository, vlog VerificationLogRepository, settings SettingsSource) *VerifyService {
	return &VerifyService{payments: payments, vlog: vlog, settings: settings}
}

// Verify looks up the payment and logs the attempt. Attempts against missing
// payments are logged too, with a failed outcome: probing a public endpoint
// is itself signal worth keeping. Log write failures never block the page.
func (s *VerifyService) Verify(ctx context.Context, paymentID int64, ip, method string) VerifyResult {
	if method != domain.MethodQRScan {
		method = domain.MethodWebAccess
	}

	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		// The attempt is still logged: a broken settings read must not create
		// a gap in the verification trail.
		log.Printf("[VERIFY] settings snapshot failed: %v", err)
		s.logAttempt(ctx, &domain.VerificationRecord{
			PaymentID: paymentID,
			Code:      VerificationCode(paymentID, time.Now()),
			IPAddress: ip,
			Method:    method,
			Outcome:   domain.OutcomeFailed,
		})
		return VerifyResult{}
	}
	if !settings.EnableQRVerification {
		return VerifyResult{}
	}

	p, err := s.payments.GetByID(ctx, paymentID)
	outcome := domain.OutcomeSuccess
	if err != nil {
		outcome = domain.OutcomeFailed
	}

	code := VerificationCode(paymentID, time.Now())
	s.logAttempt(ctx, &domain.VerificationRecord{
		PaymentID: paymentID,
		Code:      code,
		IPAddress: ip,
		Method:    method,
		Outcome:   outcome,
	})

	if err != nil {
		return VerifyResult{}
	}

	severity, label := StatusBadge(p.State)
	return VerifyResult{
		Found:    true,
		Payment:  p,
		Severity: severity,
		Label:    label,
		Code:     code,
	}
}

func (s *VerifyService) logAttempt(ctx context.Context, rec *domain.VerificationRecord) {
	if s.vlog == nil {
		return
	}
	if err := s.vlog.Append(ctx, rec); err != nil {
		// auditing is best-effort relative to user experience
		serr := &domain.StorageError{Op: "verification log append", Err: err}
		log.Printf("[VERIFY] %v (payment %d)", serr, rec.PaymentID)
	}
}

// StatusBadge maps a state to its public (severity, label) pair. The switch
// is exhaustive over the declared states and guarantees a default arm, so an
// unmapped value renders as Unknown instead of erroring.
func StatusBadge(state domain.ApprovalState) (severity, label string) {
	switch state {
	case domain.StateDraft:
		return "info", "Draft - Not Processed"
	case domain.StateUnderReview:
		return "warning", "Under Review"
	case domain.StateForApproval:
		return "warning", "Pending Approval"
	case domain.StateForAuthorization:
		return "warning", "Pending Authorization"
	case domain.StateApproved:
		return "success", "Approved"
	case domain.StatePosted:
		return "success", "VERIFIED & POSTED"
	case domain.StateCancelled:
		return "danger", "Cancelled"
	case domain.StateRejected:
		return "danger", "Rejected"
	default:
		return "secondary", "Unknown"
	}
}

// VerificationCode derives the short human-reference code logged with each
// attempt: 12 uppercase hex characters from a digest of identifier and
// timestamp. Collision-tolerant; the URL, not the code, carries access.
func VerificationCode(paymentID int64, ts time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%d", paymentID, ts.UnixNano())
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))[:12])
}
