package domain

import "time"

type User struct {
	ID    int64
	Name  string
	Email string

	// ApprovalGroups holds capability groups like "payments.reviewer".
	ApprovalGroups []string

	CreatedAt *time.Time
	UpdatedAt *time.Time
}

func (u *User) HasGroup(group string) bool {
	for _, g := range u.ApprovalGroups {
		if g == group {
			return true
		}
	}
	return false
}

type PersonalAccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}
