package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"payment-approval/internal/domain"
	"payment-approval/internal/repository"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type CreatePaymentRequest struct {
	Name      string  `json:"name"`
	Partner   string  `json:"partner"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Direction string  `json:"direction"`
	Company   string  `json:"company"`
	JournalID int64   `json:"journal_id"`
	ShowQR    *bool   `json:"show_qr"`
}

type rawCreatePaymentRequest struct {
	Name      interface{} `json:"name"`
	Partner   interface{} `json:"partner"`
	Amount    interface{} `json:"amount"`
	Currency  interface{} `json:"currency"`
	Direction interface{} `json:"direction"`
	Company   interface{} `json:"company"`
	JournalID interface{} `json:"journal_id"`
	ShowQR    interface{} `json:"show_qr"`
}

func ValidateCreatePaymentRequest(r *http.Request) (*CreatePaymentRequest, error) {
	var raw rawCreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	name, err := toStringPtr(raw.Name)
	if err != nil || name == nil {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	partner, err := toStringPtr(raw.Partner)
	if err != nil || partner == nil {
		return nil, &ValidationError{Field: "partner", Message: "partner is required"}
	}

	amount, err := toFloat64Ptr(raw.Amount)
	if err != nil || amount == nil {
		return nil, &ValidationError{Field: "amount", Message: "amount is required and must be a number"}
	}
	if *amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "amount must be positive"}
	}

	currency, err := toStringPtr(raw.Currency)
	if err != nil || currency == nil {
		return nil, &ValidationError{Field: "currency", Message: "currency is required"}
	}

	direction, err := toStringPtr(raw.Direction)
	if err != nil {
		return nil, &ValidationError{Field: "direction", Message: "direction must be inbound or outbound"}
	}
	dir := "outbound"
	if direction != nil {
		dir = *direction
	}
	if dir != "inbound" && dir != "outbound" {
		return nil, &ValidationError{Field: "direction", Message: "direction must be inbound or outbound"}
	}

	company, err := toStringPtr(raw.Company)
	if err != nil {
		return nil, &ValidationError{Field: "company", Message: "company must be string or empty"}
	}

	journalID, err := toInt64Ptr(raw.JournalID)
	if err != nil || journalID == nil {
		return nil, &ValidationError{Field: "journal_id", Message: "journal_id is required and must be integer"}
	}

	req := &CreatePaymentRequest{
		Name:      *name,
		Partner:   *partner,
		Amount:    *amount,
		Currency:  *currency,
		Direction: dir,
		JournalID: *journalID,
	}
	if company != nil {
		req.Company = *company
	}
	if raw.ShowQR != nil {
		b, ok := raw.ShowQR.(bool)
		if !ok {
			return nil, &ValidationError{Field: "show_qr", Message: "show_qr must be boolean or empty"}
		}
		req.ShowQR = &b
	}

	return req, nil
}

type ApproveRequest struct {
	Role domain.StageRole `json:"role"`
}

func ValidateApproveRequest(r *http.Request) (*ApproveRequest, error) {
	var raw struct {
		Role interface{} `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	roleStr, err := toStringPtr(raw.Role)
	if err != nil || roleStr == nil {
		return nil, &ValidationError{Field: "role", Message: "role is required"}
	}

	role := domain.StageRole(*roleStr)
	if !role.Valid() {
		return nil, &ValidationError{Field: "role", Message: "role must be reviewer, approver or authorizer"}
	}

	return &ApproveRequest{Role: role}, nil
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func ValidateRejectRequest(r *http.Request) (*RejectRequest, error) {
	var raw struct {
		Reason interface{} `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	reason, err := toStringPtr(raw.Reason)
	if err != nil || reason == nil {
		return nil, &ValidationError{Field: "reason", Message: "reason is required"}
	}

	return &RejectRequest{Reason: *reason}, nil
}

type VerificationsExportRequest struct {
	Fields    []string   `json:"fields"`
	PaymentID *int64     `json:"-"`
	Method    *string    `json:"-"`
	Outcome   *string    `json:"-"`
	From      *time.Time `json:"-"`
	To        *time.Time `json:"-"`
}

type rawVerificationsExportRequest struct {
	Fields    []string    `json:"fields"`
	PaymentID interface{} `json:"payment_id"`
	Method    interface{} `json:"method"`
	Outcome   interface{} `json:"outcome"`
	From      interface{} `json:"from"`
	To        interface{} `json:"to"`
}

func ValidateVerificationsExportRequest(r *http.Request) (*VerificationsExportRequest, error) {
	var raw rawVerificationsExportRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	paymentID, err := toInt64Ptr(raw.PaymentID)
	if err != nil {
		return nil, &ValidationError{Field: "payment_id", Message: "payment_id must be integer or empty"}
	}

	method, err := toStringPtr(raw.Method)
	if err != nil {
		return nil, &ValidationError{Field: "method", Message: "method must be string or empty"}
	}
	if method != nil && *method != domain.MethodQRScan && *method != domain.MethodWebAccess {
		return nil, &ValidationError{Field: "method", Message: "method must be qr_scan or web_access"}
	}

	outcome, err := toStringPtr(raw.Outcome)
	if err != nil {
		return nil, &ValidationError{Field: "outcome", Message: "outcome must be string or empty"}
	}
	if outcome != nil && *outcome != domain.OutcomeSuccess && *outcome != domain.OutcomeFailed {
		return nil, &ValidationError{Field: "outcome", Message: "outcome must be success or failed"}
	}

	from, err := toDatePtr(raw.From)
	if err != nil {
		return nil, &ValidationError{Field: "from", Message: "from must be YYYY-MM-DD or empty"}
	}
	to, err := toDatePtr(raw.To)
	if err != nil {
		return nil, &ValidationError{Field: "to", Message: "to must be YYYY-MM-DD or empty"}
	}

	return &VerificationsExportRequest{
		Fields:    raw.Fields,
		PaymentID: paymentID,
		Method:    method,
		Outcome:   outcome,
		From:      from,
		To:        to,
	}, nil
}

func (r *VerificationsExportRequest) ToRepositoryFilter() repository.VerificationsFilter {
	return repository.VerificationsFilter{
		PaymentID: r.PaymentID,
		Method:    r.Method,
		Outcome:   r.Outcome,
		From:      r.From,
		To:        r.To,
	}
}

// ListPaymentsQuery parses the filter query parameters on GET /payments.
func ListPaymentsQuery(r *http.Request) (repository.PaymentsFilter, error) {
	f := repository.PaymentsFilter{}
	q := r.URL.Query()

	if v := q.Get("state"); v != "" {
		state := domain.ApprovalState(v)
		if !state.Valid() {
			return f, &ValidationError{Field: "state", Message: "unknown state"}
		}
		f.State = &state
	}
	if v := q.Get("journal_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, &ValidationError{Field: "journal_id", Message: "journal_id must be integer"}
		}
		f.JournalID = &id
	}
	if v := q.Get("direction"); v != "" {
		if v != "inbound" && v != "outbound" {
			return f, &ValidationError{Field: "direction", Message: "direction must be inbound or outbound"}
		}
		f.Direction = &v
	}
	if v := q.Get("company"); v != "" {
		f.Company = &v
	}

	return f, nil
}

func toStringPtr(v interface{}) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return &t, nil
	case float64:
		i := int64(t)
		s := strconv.FormatInt(i, 10)
		return &s, nil
	default:
		return nil, &ValidationError{Message: "invalid type for string field"}
	}
}

func toInt64Ptr(v interface{}) (*int64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		i := int64(t)
		return &i, nil
	case string:
		if t == "" {
			return nil, nil
		}
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, err
		}
		return &i, nil
	default:
		return nil, &ValidationError{Message: "invalid type for int field"}
	}
}

func toFloat64Ptr(v interface{}) (*float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &t, nil
	case string:
		if t == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, &ValidationError{Message: "invalid type for number field"}
	}
}

func toDatePtr(v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	default:
		return nil, &ValidationError{Message: "invalid type for date field"}
	}
}
