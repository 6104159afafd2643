package rest

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"payment-approval/internal/domain"
	"payment-approval/internal/transport/auth"
)

func paymentIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "payment_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Field: "payment_id", Message: "payment_id must be a positive integer"}
	}
	return id, nil
}

// writeDomainError maps the domain error taxonomy onto the JSON envelope.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		permErr       *domain.PermissionDeniedError
		transitionErr *domain.InvalidTransitionError
		duplicateErr  *domain.DuplicateActorError
	)

	switch {
	case errors.As(err, &validationErr):
		ErrorBadRequest(w, validationErr.Error())
	case errors.As(err, &permErr):
		ErrorForbidden(w, permErr.Error())
	case errors.As(err, &transitionErr):
		ErrorConflict(w, transitionErr.Error())
	case errors.As(err, &duplicateErr):
		ErrorConflict(w, duplicateErr.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		ErrorConflict(w, "payment was modified concurrently, reload and retry")
	case errors.Is(err, domain.ErrNotFound):
		ErrorNotFound(w, "payment not found")
	default:
		log.Printf("[HTTP] unexpected error: %v", err)
		ErrorInternal(w, "internal error")
	}
}

func paymentMap(p *domain.Payment) map[string]interface{} {
	stages := make([]string, 0, len(p.RequiredStages))
	for _, role := range p.RequiredStages {
		stages = append(stages, string(role))
	}

	m := map[string]interface{}{
		"id":               p.ID,
		"name":             p.Name,
		"partner":          p.Partner,
		"amount":           p.Amount,
		"currency":         p.Currency,
		"direction":        p.Direction,
		"company":          p.Company,
		"journal_id":       p.JournalID,
		"approval_state":   string(p.State),
		"required_stages":  stages,
		"rejection_reason": p.RejectionReason,
		"show_qr":          p.ShowQR,
		"created_at":       p.CreatedAt.Format(time.RFC3339),
		"updated_at":       p.UpdatedAt.Format(time.RFC3339),
	}

	addActor := func(prefix string, id *int64, at *time.Time) {
		m[prefix+"_id"] = id
		if at != nil {
			m[prefix+"_at"] = at.Format(time.RFC3339)
		} else {
			m[prefix+"_at"] = nil
		}
	}
	addActor("reviewer", p.ReviewerID, p.ReviewedAt)
	addActor("approver", p.ApproverID, p.ApprovedAt)
	addActor("authorizer", p.AuthorizerID, p.AuthorizedAt)

	if p.PostedAt != nil {
		m["posted_at"] = p.PostedAt.Format(time.RFC3339)
	} else {
		m["posted_at"] = nil
	}

	return m
}

func paymentList(payments []domain.Payment) []interface{} {
	out := make([]interface{}, 0, len(payments))
	for i := range payments {
		out = append(out, paymentMap(&payments[i]))
	}
	return out
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	req, err := ValidateCreatePaymentRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	p := &domain.Payment{
		Name:      req.Name,
		Partner:   req.Partner,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Direction: req.Direction,
		Company:   req.Company,
		JournalID: req.JournalID,
		ShowQR:    true,
	}
	if req.ShowQR != nil {
		p.ShowQR = *req.ShowQR
	}

	if err := h.workflow.CreatePayment(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}

	SuccessCreated(w, "payment created", paymentMap(p))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	filter, err := ListPaymentsQuery(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	payments, err := h.workflow.ListPayments(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "", paymentList(payments))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := paymentIDParam(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	p, err := h.workflow.GetPayment(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "", paymentMap(p))
}

func (h *Handler) listOverdue(w http.ResponseWriter, r *http.Request) {
	payments, err := h.workflow.OverdueReviews(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "", paymentList(payments))
}

func (h *Handler) submitPayment(w http.ResponseWriter, r *http.Request) {
	id, err := paymentIDParam(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	actorID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	p, err := h.workflow.Submit(r.Context(), id, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "payment submitted", paymentMap(p))
}

func (h *Handler) approvePayment(w http.ResponseWriter, r *http.Request) {
	id, err := paymentIDParam(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	req, err := ValidateApproveRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	actorID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	p, err := h.workflow.Approve(r.Context(), id, actorID, req.Role)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "payment approved", paymentMap(p))
}

func (h *Handler) rejectPayment(w http.ResponseWriter, r *http.Request) {
	id, err := paymentIDParam(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	req, err := ValidateRejectRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	actorID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	p, err := h.workflow.Reject(r.Context(), id, actorID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "payment rejected", paymentMap(p))
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	id, err := paymentIDParam(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	actorID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	p, err := h.workflow.Cancel(r.Context(), id, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "payment cancelled", paymentMap(p))
}

func (h *Handler) postPayment(w http.ResponseWriter, r *http.Request) {
	id, err := paymentIDParam(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	actorID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	p, err := h.workflow.FinalizePost(r.Context(), id, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "payment posted", paymentMap(p))
}

func (h *Handler) paymentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := paymentIDParam(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	entries, err := h.workflow.History(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]interface{}{
			"id":           e.ID,
			"payment_id":   e.PaymentID,
			"action":       e.Action,
			"actor_id":     e.ActorID,
			"state_before": string(e.StateBefore),
			"state_after":  string(e.StateAfter),
			"note":         e.Note,
			"created_at":   e.CreatedAt.Format(time.RFC3339),
		})
	}

	Success(w, "", out)
}

func (h *Handler) paymentVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := paymentIDParam(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	url, err := h.vouchers.Generate(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "voucher generated", map[string]interface{}{"file_url": url})
}
