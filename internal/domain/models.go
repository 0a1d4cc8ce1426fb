package domain

import "time"

type User struct {
	ID        int64
	Username  string
	Email     string
	IsActive  bool
	CreatedAt time.Time
	LastLogin *time.Time
}

type UserWithPassword struct {
	User
	PasswordHash string
}

// Session is a bearer token bound to one user. A nil ExpiresAt never expires.
type Session struct {
	ID        int64
	UserID    int64
	Token     string
	CreatedAt time.Time
	ExpiresAt *time.Time
	IsValid   bool
}

func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
