package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"payment-approval/internal/domain"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, name, email, approval_groups, created_at, updated_at FROM users WHERE id = $1`

	var u domain.User
	var groups sql.NullString
	var createdAt, updatedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &groups, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if groups.Valid {
		u.ApprovalGroups = splitGroups(groups.String)
	}
	if createdAt.Valid {
		u.CreatedAt = &createdAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = &updatedAt.Time
	}

	return &u, nil
}

// ListIDsWithGroup returns the users holding an approval group. Groups are
// stored as a comma-separated list, so match on the padded form.
func (r *UserRepository) ListIDsWithGroup(ctx context.Context, group string) ([]int64, error) {
	query := `SELECT id FROM users WHERE ',' || approval_groups || ',' LIKE $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, "%,"+group+",%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func splitGroups(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if g := strings.TrimSpace(p); g != "" {
			out = append(out, g)
		}
	}
	return out
}
