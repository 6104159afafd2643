package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"payment-approval/internal/domain"
)

type VerificationsFilter struct {
	PaymentID *int64
	Method    *string
	Outcome   *string
	From      *time.Time
	To        *time.Time
}

// VerificationLogRepository is append-only: records are never updated and
// only the retention job deletes them.
type VerificationLogRepository struct {
	db *sql.DB
}

func NewVerificationLogRepository(db *sql.DB) *VerificationLogRepository {
	return &VerificationLogRepository{db: db}
}

func (r *VerificationLogRepository) Append(ctx context.Context, rec *domain.VerificationRecord) error {
	query := `
		INSERT INTO payment_verifications (payment_id, code, ip_address, method, outcome)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		rec.PaymentID, rec.Code, rec.IPAddress, rec.Method, rec.Outcome,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *VerificationLogRepository) List(ctx context.Context, f VerificationsFilter) ([]domain.VerificationRecord, error) {
	base := `SELECT id, payment_id, code, ip_address, method, outcome, created_at FROM payment_verifications`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.PaymentID != nil {
		where = append(where, fmt.Sprintf("payment_id = $%d", i))
		args = append(args, *f.PaymentID)
		i++
	}
	if f.Method != nil && *f.Method != "" {
		where = append(where, fmt.Sprintf("method = $%d", i))
		args = append(args, *f.Method)
		i++
	}
	if f.Outcome != nil && *f.Outcome != "" {
		where = append(where, fmt.Sprintf("outcome = $%d", i))
		args = append(args, *f.Outcome)
		i++
	}
	if f.From != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", i))
		args = append(args, *f.From)
		i++
	}
	if f.To != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", i))
		args = append(args, *f.To)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VerificationRecord
	for rows.Next() {
		var rec domain.VerificationRecord
		if err := rows.Scan(&rec.ID, &rec.PaymentID, &rec.Code, &rec.IPAddress, &rec.Method, &rec.Outcome, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *VerificationLogRepository) ListByPayment(ctx context.Context, paymentID int64) ([]domain.VerificationRecord, error) {
	return r.List(ctx, VerificationsFilter{PaymentID: &paymentID})
}

// DeleteOlderThan removes records past the retention window and returns how
// many were deleted.
func (r *VerificationLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payment_verifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
