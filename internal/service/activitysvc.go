package service

import (
	"context"
	"log/slog"

	"RelayMessenger/internal/domain"
)

type ActivityStore interface {
	InsertActivity(ctx context.Context, e domain.ActivityEntry) error
}

// ActivityService writes the audit trail. Failures never reach callers.
type ActivityService struct {
	Store  ActivityStore
	Logger *slog.Logger
}

func (s *ActivityService) Record(ctx context.Context, e domain.ActivityEntry) {
	if s == nil || s.Store == nil {
		return
	}
	if e.Status == "" {
		e.Status = domain.ActivityStatusSuccess
	}
	if err := s.Store.InsertActivity(ctx, e); err != nil {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("activity: record failed", "err", err, "action", e.Action)
	}
}
