package service

import (
	"context"
	"log"
	"time"

	"payment-approval/internal/domain"
	"payment-approval/internal/repository"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)
	List(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error)
	ListOverdueReviews(ctx context.Context, cutoff time.Time) ([]domain.Payment, error)
	Transition(ctx context.Context, id int64, from, to domain.ApprovalState, upd repository.TransitionUpdate) error
}

type AuditLogRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByPayment(ctx context.Context, paymentID int64) ([]domain.AuditEntry, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ListIDsWithGroup(ctx context.Context, group string) ([]int64, error)
}

type SettingsSource interface {
	Snapshot(ctx context.Context) (domain.WorkflowSettings, error)
}

type ApprovalNotifier interface {
	NotifyApprovalPending(ctx context.Context, userID int64, payment *domain.Payment, role domain.StageRole) error
	NotifyApprovalComplete(ctx context.Context, userID int64, payment *domain.Payment) error
	NotifyApprovalRejected(ctx context.Context, userID int64, payment *domain.Payment, reason string) error
}

// WorkflowService is the approval orchestrator. Every transition follows the
// same shape: read the payment, take a settings snapshot, validate against
// the read state, then apply a guarded update so a lost race surfaces as
// domain.ErrConcurrentModification instead of a double advance.
type WorkflowService struct {
	payments PaymentRepository
	audit    AuditLogRepository
	users    UserRepository
	settings SettingsSource
	notifier ApprovalNotifier
}

func NewWorkflowService(
	payments PaymentRepository,
	audit AuditLogRepository,
	users UserRepository,
	settings SettingsSource,
	notifier ApprovalNotifier,
) *WorkflowService {
	return &WorkflowService{
		payments: payments,
		audit:    audit,
		users:    users,
		settings: settings,
		notifier: notifier,
	}
}

// CreatePayment registers a new draft payment.
func (s *WorkflowService) CreatePayment(ctx context.Context, p *domain.Payment) error {
	p.State = domain.StateDraft
	if err := s.payments.Create(ctx, p); err != nil {
		return err
	}
	s.appendAudit(ctx, &domain.AuditEntry{
		PaymentID:   p.ID,
		Action:      "created",
		StateBefore: domain.StateDraft,
		StateAfter:  domain.StateDraft,
	})
	return nil
}

func (s *WorkflowService) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *WorkflowService) ListPayments(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error) {
	return s.payments.List(ctx, f)
}

// Submit moves a draft payment into review. The required stage set is
// computed here, once, from the settings snapshot and cached on the payment;
// it never changes afterwards. Payments on journals outside the workflow list
// skip the chain and land directly in approved.
func (s *WorkflowService) Submit(ctx context.Context, paymentID, actorID int64) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.State != domain.StateDraft {
		return nil, &domain.InvalidTransitionError{From: p.State, To: domain.StateUnderReview}
	}

	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if !settings.JournalRequiresWorkflow(p.JournalID) {
		note := "journal exempt from approval workflow"
		err := s.payments.Transition(ctx, paymentID, domain.StateDraft, domain.StateApproved, repository.TransitionUpdate{
			SetStages: true,
		})
		if err != nil {
			return nil, err
		}
		s.appendAudit(ctx, &domain.AuditEntry{
			PaymentID:   paymentID,
			Action:      "submitted",
			ActorID:     &actorID,
			StateBefore: domain.StateDraft,
			StateAfter:  domain.StateApproved,
			Note:        &note,
		})
		return s.payments.GetByID(ctx, paymentID)
	}

	stages := settings.RequiredStagesFor(p.Amount)
	err = s.payments.Transition(ctx, paymentID, domain.StateDraft, domain.StateUnderReview, repository.TransitionUpdate{
		RequiredStages: stages,
		SetStages:      true,
	})
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		PaymentID:   paymentID,
		Action:      "submitted",
		ActorID:     &actorID,
		StateBefore: domain.StateDraft,
		StateAfter:  domain.StateUnderReview,
	})

	updated, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	s.notifyStage(ctx, updated, domain.RoleReviewer)

	return updated, nil
}

// Approve records the actor for the stage matching role and advances the
// payment to the next required stage, or to approved when none remain.
func (s *WorkflowService) Approve(ctx context.Context, paymentID, actorID int64, role domain.StageRole) (*domain.Payment, error) {
	if !role.Valid() {
		return nil, &domain.ValidationError{Field: "role", Message: "unknown approval role"}
	}

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	expected := role.Stage()
	if p.State != expected {
		return nil, &domain.InvalidTransitionError{From: p.State, To: expected}
	}

	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.HasGroup(role.Group()) {
		return nil, &domain.PermissionDeniedError{UserID: actorID, Role: role}
	}

	if settings.RequireDualApproval {
		if held, ok := p.HeldRole(actorID); ok {
			return nil, &domain.DuplicateActorError{UserID: actorID, Role: role, HeldRole: held}
		}
	}

	target := domain.StateApproved
	next, hasNext := p.NextRequiredStage(role)
	if hasNext {
		target = next.Stage()
	}

	err = s.payments.Transition(ctx, paymentID, expected, target, repository.TransitionUpdate{
		ActorRole: &role,
		ActorID:   actorID,
		ActedAt:   time.Now(),
	})
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		PaymentID:   paymentID,
		Action:      "approved",
		ActorID:     &actorID,
		StateBefore: expected,
		StateAfter:  target,
		Note:        noteForRole(role),
	})

	updated, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if hasNext {
		s.notifyStage(ctx, updated, next)
	} else {
		s.notifyActors(ctx, updated, func(userID int64) {
			_ = s.notifier.NotifyApprovalComplete(ctx, userID, updated)
		})
	}

	return updated, nil
}

// Reject returns a payment to draft (or the terminal rejected state, per
// configuration). A non-empty reason is mandatory.
func (s *WorkflowService) Reject(ctx context.Context, paymentID, actorID int64, reason string) (*domain.Payment, error) {
	if reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Message: "rejection reason is required"}
	}

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.State.Terminal() || p.State == domain.StateDraft {
		return nil, &domain.InvalidTransitionError{From: p.State, To: domain.StateRejected}
	}

	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	role, ok := p.RoleForState()
	if ok {
		actor, err := s.users.GetByID(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if !actor.HasGroup(role.Group()) {
			return nil, &domain.PermissionDeniedError{UserID: actorID, Role: role}
		}
	}

	target := settings.RejectToState
	err = s.payments.Transition(ctx, paymentID, p.State, target, repository.TransitionUpdate{
		RejectionReason: &reason,
	})
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		PaymentID:   paymentID,
		Action:      "rejected",
		ActorID:     &actorID,
		StateBefore: p.State,
		StateAfter:  target,
		Note:        &reason,
	})

	updated, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	s.notifyActors(ctx, updated, func(userID int64) {
		_ = s.notifier.NotifyApprovalRejected(ctx, userID, updated, reason)
	})

	return updated, nil
}

// Cancel is legal from any state except posted; posted payments must be
// reversed, not cancelled, to preserve the audit trail.
func (s *WorkflowService) Cancel(ctx context.Context, paymentID, actorID int64) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.State == domain.StatePosted {
		return nil, &domain.InvalidTransitionError{From: p.State, To: domain.StateCancelled}
	}
	if p.State == domain.StateCancelled {
		return p, nil
	}

	err = s.payments.Transition(ctx, paymentID, p.State, domain.StateCancelled, repository.TransitionUpdate{})
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		PaymentID:   paymentID,
		Action:      "cancelled",
		ActorID:     &actorID,
		StateBefore: p.State,
		StateAfter:  domain.StateCancelled,
	})

	return s.payments.GetByID(ctx, paymentID)
}

// FinalizePost performs the irreversible accounting post. Calling it on an
// already-posted payment is a no-op, not an error.
func (s *WorkflowService) FinalizePost(ctx context.Context, paymentID, actorID int64) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.State == domain.StatePosted {
		return p, nil
	}
	if p.State != domain.StateApproved {
		return nil, &domain.InvalidTransitionError{From: p.State, To: domain.StatePosted}
	}

	err = s.payments.Transition(ctx, paymentID, domain.StateApproved, domain.StatePosted, repository.TransitionUpdate{
		MarkPosted: true,
	})
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		PaymentID:   paymentID,
		Action:      "posted",
		ActorID:     &actorID,
		StateBefore: domain.StateApproved,
		StateAfter:  domain.StatePosted,
	})

	return s.payments.GetByID(ctx, paymentID)
}

// History returns the full audit trail for a payment.
func (s *WorkflowService) History(ctx context.Context, paymentID int64) ([]domain.AuditEntry, error) {
	if _, err := s.payments.GetByID(ctx, paymentID); err != nil {
		return nil, err
	}
	return s.audit.ListByPayment(ctx, paymentID)
}

// OverdueReviews lists payments waiting on a stage actor longer than the
// configured review window.
func (s *WorkflowService) OverdueReviews(ctx context.Context) ([]domain.Payment, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().AddDate(0, 0, -settings.MaxReviewDays)
	return s.payments.ListOverdueReviews(ctx, cutoff)
}

// appendAudit writes an audit entry and logs on failure; the transition
// itself has already committed.
func (s *WorkflowService) appendAudit(ctx context.Context, entry *domain.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		log.Printf("[WORKFLOW] audit append failed for payment %d action %s: %v", entry.PaymentID, entry.Action, err)
	}
}

// notifyStage pushes a pending-approval notification to every user holding
// the stage's group. Best-effort.
func (s *WorkflowService) notifyStage(ctx context.Context, p *domain.Payment, role domain.StageRole) {
	if s.notifier == nil {
		return
	}
	userIDs, err := s.users.ListIDsWithGroup(ctx, role.Group())
	if err != nil {
		log.Printf("[WORKFLOW] could not resolve users for group %s: %v", role.Group(), err)
		return
	}
	for _, id := range userIDs {
		_ = s.notifier.NotifyApprovalPending(ctx, id, p, role)
	}
}

// notifyActors invokes fn for every stage actor recorded on the payment.
func (s *WorkflowService) notifyActors(ctx context.Context, p *domain.Payment, fn func(userID int64)) {
	if s.notifier == nil {
		return
	}
	seen := map[int64]bool{}
	for _, id := range []*int64{p.ReviewerID, p.ApproverID, p.AuthorizerID} {
		if id != nil && !seen[*id] {
			seen[*id] = true
			fn(*id)
		}
	}
}

func noteForRole(role domain.StageRole) *string {
	note := "acted as " + string(role)
	return &note
}
