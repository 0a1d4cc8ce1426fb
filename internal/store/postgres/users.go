package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RelayMessenger/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type UsersStore struct {
	db DB
}

func NewUsersStore(db DB) *UsersStore {
	return &UsersStore{db: db}
}

const userColumns = `id, username, email, is_active, created_at, last_login`

func scanUser(row scanner, extra ...any) (domain.User, error) {
	var (
		u           domain.User
		emailText   pgtype.Text
		lastLoginTS pgtype.Timestamptz
	)
	dest := append([]any{&u.ID, &u.Username, &emailText, &u.IsActive, &u.CreatedAt, &lastLoginTS}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.User{}, err
	}
	u.Email = textOrEmpty(emailText)
	u.LastLogin = timestamptzPtr(lastLoginTS)
	return u, nil
}

// CreateUser relies on the users_username_uq and users_email_uq constraints
// to reject duplicates atomically.
func (s *UsersStore) CreateUser(ctx context.Context, username, email, passwordHash string) (domain.User, error) {
	const q = `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, q, username, nullIfEmpty(email), passwordHash))
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	u, err := scanUser(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserByUsername matches case-sensitively.
func (s *UsersStore) GetUserByUsername(ctx context.Context, username string) (domain.UserWithPassword, error) {
	const q = `
		SELECT ` + userColumns + `, password_hash
		FROM users
		WHERE username = $1
	`

	var hash string
	u, err := scanUser(s.db.QueryRow(ctx, q, username), &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by username: %w", err)
	}
	return domain.UserWithPassword{User: u, PasswordHash: hash}, nil
}

func (s *UsersStore) SetLastLogin(ctx context.Context, userID int64, when time.Time) error {
	const q = `
		UPDATE users
		SET last_login = $2
		WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, q, userID, when); err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}

func (s *UsersStore) ListActiveUsers(ctx context.Context, excludeUserID int64) ([]domain.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_active AND id <> $1
		ORDER BY username ASC
	`

	rows, err := s.db.Query(ctx, q, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func mapUserWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_username_uq":
			return domain.ErrUsernameTaken
		case "users_email_uq":
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("create user: %w", err)
}

// ListUsers pages through every account, disabled ones included.
func (s *UsersStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	return out, nil
}
