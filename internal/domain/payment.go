package domain

import "time"

// ApprovalState is the workflow state of a payment. Transitions only move
// forward along the review chain; reject and cancel are the explicit exits.
type ApprovalState string

const (
	StateDraft            ApprovalState = "draft"
	StateUnderReview      ApprovalState = "under_review"
	StateForApproval      ApprovalState = "for_approval"
	StateForAuthorization ApprovalState = "for_authorization"
	StateApproved         ApprovalState = "approved"
	StatePosted           ApprovalState = "posted"
	StateCancelled        ApprovalState = "cancelled"
	StateRejected         ApprovalState = "rejected"
)

func (s ApprovalState) Valid() bool {
	switch s {
	case StateDraft, StateUnderReview, StateForApproval, StateForAuthorization,
		StateApproved, StatePosted, StateCancelled, StateRejected:
		return true
	}
	return false
}

// Terminal states accept no further transitions.
func (s ApprovalState) Terminal() bool {
	return s == StatePosted || s == StateCancelled || s == StateRejected
}

// InReview reports whether the payment is waiting on some stage actor.
func (s ApprovalState) InReview() bool {
	return s == StateUnderReview || s == StateForApproval || s == StateForAuthorization
}

// StageRole is one of the ordered approval roles a payment may require.
type StageRole string

const (
	RoleReviewer   StageRole = "reviewer"
	RoleApprover   StageRole = "approver"
	RoleAuthorizer StageRole = "authorizer"
)

// StageOrder lists the roles in the order they must act.
var StageOrder = []StageRole{RoleReviewer, RoleApprover, RoleAuthorizer}

func (r StageRole) Valid() bool {
	return r == RoleReviewer || r == RoleApprover || r == RoleAuthorizer
}

// Stage returns the state in which this role is expected to act.
func (r StageRole) Stage() ApprovalState {
	switch r {
	case RoleReviewer:
		return StateUnderReview
	case RoleApprover:
		return StateForApproval
	case RoleAuthorizer:
		return StateForAuthorization
	}
	return StateDraft
}

// Group is the approval group a user must hold to act as this role.
func (r StageRole) Group() string {
	return "payments." + string(r)
}

type Payment struct {
	ID        int64
	Name      string
	Partner   string
	Amount    float64
	Currency  string
	Direction string // inbound | outbound
	Company   string
	JournalID int64

	State ApprovalState

	// RequiredStages is fixed at submit time from the settings snapshot so a
	// mid-flight configuration change cannot alter which stages a payment needs.
	RequiredStages []StageRole

	ReviewerID   *int64
	ReviewedAt   *time.Time
	ApproverID   *int64
	ApprovedAt   *time.Time
	AuthorizerID *int64
	AuthorizedAt *time.Time

	RejectionReason *string

	ShowQR     bool
	QRImage    string // base64 PNG, empty when not generated
	QRChecksum string

	PostedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Requires reports whether the given role is part of this payment's stage set.
func (p *Payment) Requires(role StageRole) bool {
	for _, r := range p.RequiredStages {
		if r == role {
			return true
		}
	}
	return false
}

// NextRequiredStage returns the first required role after the given one, in
// stage order. ok is false when no later stage is required.
func (p *Payment) NextRequiredStage(after StageRole) (StageRole, bool) {
	passed := false
	for _, r := range StageOrder {
		if r == after {
			passed = true
			continue
		}
		if passed && p.Requires(r) {
			return r, true
		}
	}
	return "", false
}

// FirstRequiredStage returns the first role of the stage set.
func (p *Payment) FirstRequiredStage() (StageRole, bool) {
	for _, r := range StageOrder {
		if p.Requires(r) {
			return r, true
		}
	}
	return "", false
}

// LastRequiredStage returns the final role of the stage set.
func (p *Payment) LastRequiredStage() (StageRole, bool) {
	for i := len(StageOrder) - 1; i >= 0; i-- {
		if p.Requires(StageOrder[i]) {
			return StageOrder[i], true
		}
	}
	return "", false
}

// HeldRole returns the stage role the user has already acted as on this
// payment, if any. Used to enforce the dual-approval policy.
func (p *Payment) HeldRole(userID int64) (StageRole, bool) {
	if p.ReviewerID != nil && *p.ReviewerID == userID {
		return RoleReviewer, true
	}
	if p.ApproverID != nil && *p.ApproverID == userID {
		return RoleApprover, true
	}
	if p.AuthorizerID != nil && *p.AuthorizerID == userID {
		return RoleAuthorizer, true
	}
	return "", false
}

// RoleForState returns the role expected to act in the payment's current
// state. For an approved payment this is the last stage that acted.
func (p *Payment) RoleForState() (StageRole, bool) {
	switch p.State {
	case StateUnderReview:
		return RoleReviewer, true
	case StateForApproval:
		return RoleApprover, true
	case StateForAuthorization:
		return RoleAuthorizer, true
	case StateApproved:
		return p.LastRequiredStage()
	}
	return "", false
}
