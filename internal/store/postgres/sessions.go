package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RelayMessenger/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type SessionsStore struct {
	db DB
}

func NewSessionsStore(db DB) *SessionsStore {
	return &SessionsStore{db: db}
}

func (s *SessionsStore) CreateSession(ctx context.Context, userID int64, token string, expiresAt *time.Time) (domain.Session, error) {
	const q = `
		INSERT INTO sessions (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	sess := domain.Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		IsValid:   true,
	}
	err := s.db.QueryRow(ctx, q, userID, token, timestamptzArg(expiresAt)).Scan(&sess.ID, &sess.CreatedAt)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// GetSessionByToken returns the session row whatever its validity; callers
// decide between invalidated and expired.
func (s *SessionsStore) GetSessionByToken(ctx context.Context, token string) (domain.Session, error) {
	const q = `
		SELECT id, user_id, token, created_at, expires_at, is_valid
		FROM sessions
		WHERE token = $1
	`

	var (
		sess      domain.Session
		expiresTS pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, q, token).Scan(
		&sess.ID,
		&sess.UserID,
		&sess.Token,
		&sess.CreatedAt,
		&expiresTS,
		&sess.IsValid,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	sess.ExpiresAt = timestamptzPtr(expiresTS)
	return sess, nil
}

func (s *SessionsStore) InvalidateSession(ctx context.Context, token string) error {
	const q = `
		UPDATE sessions
		SET is_valid = FALSE
		WHERE token = $1 AND is_valid
	`

	if _, err := s.db.Exec(ctx, q, token); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}
