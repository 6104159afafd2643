package domain

import "time"

// Access methods for the public verification endpoint.
const (
	MethodQRScan    = "qr_scan"
	MethodWebAccess = "web_access"
)

// Outcomes of a verification attempt.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// VerificationRecord is one append-only entry in the verification log.
// Records are immutable once created; only the retention job removes them.
type VerificationRecord struct {
	ID        int64
	PaymentID int64
	Code      string // short human-reference digest, not a security token
	IPAddress string
	Method    string // qr_scan | web_access
	Outcome   string // success | failed
	CreatedAt time.Time
}

// AuditEntry is one append-only entry in the payment audit trail, written on
// every workflow transition.
type AuditEntry struct {
	ID          int64
	PaymentID   int64
	Action      string // submitted | approved | rejected | cancelled | posted
	ActorID     *int64
	StateBefore ApprovalState
	StateAfter  ApprovalState
	Note        *string
	CreatedAt   time.Time
}
