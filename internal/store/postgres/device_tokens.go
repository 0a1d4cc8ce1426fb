package postgres

import (
	"context"
	"fmt"
	"time"

	"RelayMessenger/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

type DeviceTokensStore struct {
	db DB
}

func NewDeviceTokensStore(db DB) *DeviceTokensStore {
	return &DeviceTokensStore{db: db}
}

const deviceTokenColumns = `id, user_id, device_token, platform, registered_at, last_used`

func scanDeviceToken(row scanner) (domain.DeviceToken, error) {
	var (
		t      domain.DeviceToken
		usedTS pgtype.Timestamptz
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.RegisteredAt, &usedTS); err != nil {
		return domain.DeviceToken{}, err
	}
	t.LastUsed = timestamptzPtr(usedTS)
	return t, nil
}

func (s *DeviceTokensStore) UpsertDeviceToken(ctx context.Context, userID int64, token, platform string, when time.Time) (domain.DeviceToken, error) {
	const q = `
		INSERT INTO device_tokens (user_id, device_token, platform, registered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, device_token)
		DO UPDATE SET
			platform = EXCLUDED.platform,
			registered_at = EXCLUDED.registered_at
		RETURNING ` + deviceTokenColumns

	t, err := scanDeviceToken(s.db.QueryRow(ctx, q, userID, token, platform, when))
	if err != nil {
		return domain.DeviceToken{}, fmt.Errorf("upsert device token: %w", err)
	}
	return t, nil
}

func (s *DeviceTokensStore) DeleteDeviceToken(ctx context.Context, userID int64, token string) error {
	const q = `
		DELETE FROM device_tokens
		WHERE user_id = $1 AND device_token = $2
	`
	if _, err := s.db.Exec(ctx, q, userID, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}

func (s *DeviceTokensStore) TouchDeviceToken(ctx context.Context, userID int64, token string, when time.Time) error {
	const q = `
		UPDATE device_tokens
		SET last_used = $3
		WHERE user_id = $1 AND device_token = $2
	`
	if _, err := s.db.Exec(ctx, q, userID, token, when); err != nil {
		return fmt.Errorf("touch device token: %w", err)
	}
	return nil
}

func (s *DeviceTokensStore) ListDeviceTokens(ctx context.Context, userID int64) ([]domain.DeviceToken, error) {
	const q = `
		SELECT ` + deviceTokenColumns + `
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY registered_at DESC
	`

	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	defer rows.Close()

	var out []domain.DeviceToken
	for rows.Next() {
		t, err := scanDeviceToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	return out, nil
}
