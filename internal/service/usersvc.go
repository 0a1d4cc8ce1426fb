package service

import (
	"context"

	"RelayMessenger/internal/domain"
)

type DirectoryStore interface {
	ListActiveUsers(ctx context.Context, excludeUserID int64) ([]domain.User, error)
}

type UsersService struct {
	Store DirectoryStore
}

// ListContacts returns every active user except the caller, ordered by username.
func (s *UsersService) ListContacts(ctx context.Context, caller domain.User) ([]domain.User, error) {
	return s.Store.ListActiveUsers(ctx, caller.ID)
}

// Profile returns the caller as resolved from their session.
func (s *UsersService) Profile(_ context.Context, caller domain.User) (domain.User, error) {
	return caller, nil
}
