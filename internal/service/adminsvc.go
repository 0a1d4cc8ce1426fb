package service

import (
	"context"
	"time"

	"RelayMessenger/internal/domain"
)

const (
	DefaultAdminPageSize = 50
	MaxAdminPageSize     = 500
)

type AdminUsersStore interface {
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
}

type AdminActivityStore interface {
	ListRecentActivity(ctx context.Context, limit, offset int) ([]domain.ActivityRecord, error)
	Overview(ctx context.Context, since time.Time) (domain.Overview, error)
}

// AdminService backs the read-only operator console.
type AdminService struct {
	Users    AdminUsersStore
	Activity AdminActivityStore
	Now      func() time.Time
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	limit, offset = adminPage(limit, offset)
	return s.Users.ListUsers(ctx, limit, offset)
}

func (s *AdminService) RecentActivity(ctx context.Context, limit, offset int) ([]domain.ActivityRecord, error) {
	limit, offset = adminPage(limit, offset)
	return s.Activity.ListRecentActivity(ctx, limit, offset)
}

// Overview counts failed logins over the trailing 24 hours.
func (s *AdminService) Overview(ctx context.Context) (domain.Overview, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return s.Activity.Overview(ctx, now().UTC().Add(-24*time.Hour))
}

func adminPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultAdminPageSize
	}
	if limit > MaxAdminPageSize {
		limit = MaxAdminPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
