package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"RelayMessenger/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "username", "email", "is_active", "created_at", "last_login"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestUsersStore_CreateUser(t *testing.T) {
	mock := newMock(t)
	store := NewUsersStore(mock)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", nil, "hash").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(int64(7), "alice", pgtype.Text{}, true, created, pgtype.Timestamptz{}))

	u, err := store.CreateUser(context.Background(), "alice", "", "hash")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Empty(t, u.Email)
	assert.True(t, u.IsActive)
	assert.Nil(t, u.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersStore_CreateUserMapsUniqueViolations(t *testing.T) {
	cases := map[string]error{
		"users_username_uq": domain.ErrUsernameTaken,
		"users_email_uq":    domain.ErrEmailTaken,
	}
	for constraint, want := range cases {
		t.Run(constraint, func(t *testing.T) {
			mock := newMock(t)
			store := NewUsersStore(mock)

			mock.ExpectQuery(`INSERT INTO users`).
				WithArgs("alice", "a@example.com", "hash").
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraint})

			_, err := store.CreateUser(context.Background(), "alice", "a@example.com", "hash")
			assert.ErrorIs(t, err, want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUsersStore_CreateUserWrapsOtherErrors(t *testing.T) {
	mock := newMock(t)
	store := NewUsersStore(mock)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", nil, "hash").
		WillReturnError(errors.New("db down"))

	_, err := store.CreateUser(context.Background(), "alice", "", "hash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create user: db down")
	assert.NotErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestUsersStore_GetUserByUsername(t *testing.T) {
	mock := newMock(t)
	store := NewUsersStore(mock)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	login := created.Add(time.Hour)

	mock.ExpectQuery(`SELECT .+ password_hash\s+FROM users\s+WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows(append(append([]string{}, userCols...), "password_hash")).
			AddRow(int64(7), "alice", pgtype.Text{String: "a@example.com", Valid: true}, true, created,
				pgtype.Timestamptz{Time: login, Valid: true}, "$pbkdf2-sha256$i=1$AA$AA"))

	u, err := store.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
	assert.Equal(t, "$pbkdf2-sha256$i=1$AA$AA", u.PasswordHash)
	require.NotNil(t, u.LastLogin)
	assert.True(t, u.LastLogin.Equal(login))
}

func TestUsersStore_GetUserByUsernameNotFound(t *testing.T) {
	mock := newMock(t)
	store := NewUsersStore(mock)

	mock.ExpectQuery(`FROM users`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(append(append([]string{}, userCols...), "password_hash")))

	_, err := store.GetUserByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUsersStore_ListActiveUsersExcludesCaller(t *testing.T) {
	mock := newMock(t)
	store := NewUsersStore(mock)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE is_active AND id <> \$1\s+ORDER BY username ASC`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(int64(2), "bob", pgtype.Text{}, true, created, pgtype.Timestamptz{}).
			AddRow(int64(3), "carol", pgtype.Text{}, true, created, pgtype.Timestamptz{}))

	users, err := store.ListActiveUsers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[0].Username)
	assert.Equal(t, "carol", users[1].Username)
}

func TestUsersStore_SetLastLogin(t *testing.T) {
	mock := newMock(t)
	store := NewUsersStore(mock)
	when := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE users\s+SET last_login = \$2`).
		WithArgs(int64(7), when).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SetLastLogin(context.Background(), 7, when))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersStore_ListUsersIncludesDisabled(t *testing.T) {
	mock := newMock(t)
	store := NewUsersStore(mock)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM users\s+ORDER BY id ASC\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(50, 0).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(int64(1), "alice", pgtype.Text{String: "a@x.io", Valid: true}, true, created, pgtype.Timestamptz{}).
			AddRow(int64(2), "mallory", pgtype.Text{}, false, created, pgtype.Timestamptz{}))

	users, err := store.ListUsers(context.Background(), 50, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@x.io", users[0].Email)
	assert.False(t, users[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
