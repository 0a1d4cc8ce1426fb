package postgres

import (
	"context"
	"fmt"
	"time"

	"RelayMessenger/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

type ActivityStore struct {
	db DB
}

func NewActivityStore(db DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) InsertActivity(ctx context.Context, e domain.ActivityEntry) error {
	const q = `
		INSERT INTO activity_logs (user_id, action, details, origin, status)
		VALUES ($1, $2, $3, $4, $5)
	`

	status := e.Status
	if status == "" {
		status = domain.ActivityStatusSuccess
	}
	_, err := s.db.Exec(ctx, q, nullIfNil(e.UserID), e.Action, nullIfEmpty(e.Details), nullIfEmpty(e.Origin), status)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListRecentActivity returns entries newest first. Username is empty for
// anonymous entries.
func (s *ActivityStore) ListRecentActivity(ctx context.Context, limit, offset int) ([]domain.ActivityRecord, error) {
	const q = `
		SELECT a.id, a.user_id, u.username, a.action, a.details, a.origin, a.status, a.created_at
		FROM activity_logs a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	out := []domain.ActivityRecord{}
	for rows.Next() {
		var (
			rec      domain.ActivityRecord
			userID   pgtype.Int8
			username pgtype.Text
			details  pgtype.Text
			origin   pgtype.Text
		)
		if err := rows.Scan(&rec.ID, &userID, &username, &rec.Action, &details, &origin, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if userID.Valid {
			id := userID.Int64
			rec.UserID = &id
		}
		rec.Username = textOrEmpty(username)
		rec.Details = textOrEmpty(details)
		rec.Origin = textOrEmpty(origin)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return out, nil
}

func (s *ActivityStore) Overview(ctx context.Context, since time.Time) (domain.Overview, error) {
	const q = `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM users WHERE is_active),
			(SELECT count(*) FROM messages),
			(SELECT count(*) FROM messages WHERE NOT is_read),
			(SELECT count(*) FROM sessions WHERE is_valid AND (expires_at IS NULL OR expires_at > now())),
			(SELECT count(*) FROM activity_logs WHERE action = $1 AND created_at >= $2)
	`

	var o domain.Overview
	err := s.db.QueryRow(ctx, q, domain.ActionFailedLogin, since).Scan(
		&o.Users, &o.ActiveUsers, &o.Messages, &o.UnreadMessages, &o.LiveSessions, &o.FailedLogins24,
	)
	if err != nil {
		return domain.Overview{}, fmt.Errorf("overview: %w", err)
	}
	return o, nil
}
