package repository

import (
	"context"
	"database/sql"

	"payment-approval/internal/domain"
)

// AuditLogRepository appends and reads the immutable payment audit trail.
// Append is the only mutation exposed.
type AuditLogRepository struct {
	db *sql.DB
}

func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO payment_audit_log (payment_id, action, actor_id, state_before, state_after, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		entry.PaymentID,
		entry.Action,
		entry.ActorID,
		string(entry.StateBefore),
		string(entry.StateAfter),
		entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ListByPayment returns the audit trail oldest-first.
func (r *AuditLogRepository) ListByPayment(ctx context.Context, paymentID int64) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, payment_id, action, actor_id, state_before, state_after, note, created_at
		FROM payment_audit_log
		WHERE payment_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var actorID sql.NullInt64
		var before, after string
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Action, &actorID, &before, &after, &note, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID.Valid {
			v := actorID.Int64
			e.ActorID = &v
		}
		e.StateBefore = domain.ApprovalState(before)
		e.StateAfter = domain.ApprovalState(after)
		if note.Valid && note.String != "" {
			e.Note = &note.String
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
