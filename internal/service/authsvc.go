package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"RelayMessenger/internal/auth"
	"RelayMessenger/internal/domain"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

// fallbackDummyHash stands in when the dummy hash cannot be generated, so
// unknown usernames still pay for a full PBKDF2 verification.
const fallbackDummyHash = "$pbkdf2-sha256$i=310000$AAECAwQFBgcICQoLDA0ODw$m5gclI6VdnM4oMf2nsKhmu7v0ekNsPePw+QA7Dj4SHc"

type UsersStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (domain.User, error)
	GetUserByID(ctx context.Context, id int64) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.UserWithPassword, error)
	SetLastLogin(ctx context.Context, userID int64, when time.Time) error
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID int64, token string, expiresAt *time.Time) (domain.Session, error)
	GetSessionByToken(ctx context.Context, token string) (domain.Session, error)
	InvalidateSession(ctx context.Context, token string) error
}

// AuthService owns credentials and sessions. A zero SessionTTL issues
// sessions that never expire.
type AuthService struct {
	Users      UsersStore
	Sessions   SessionsStore
	Hasher     auth.Hasher
	SessionTTL time.Duration
	Now        func() time.Time
	NewToken   func() (string, error)
	Logger     *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *AuthService) hasher() auth.Hasher {
	if s.Hasher.Algorithm == "" {
		return auth.DefaultHasher()
	}
	return s.Hasher
}

func (s *AuthService) Register(ctx context.Context, username, password, email string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	missing := map[string]string{}
	if username == "" {
		missing["username"] = "required"
	}
	if password == "" {
		missing["password"] = "required"
	}
	if len(missing) > 0 {
		return domain.User{}, domain.NewValidationError(missing)
	}
	if len([]rune(username)) < minUsernameLen {
		return domain.User{}, domain.NewValidationError(map[string]string{"username": "must be at least 3 characters"})
	}
	if len([]rune(password)) < minPasswordLen {
		return domain.User{}, domain.NewValidationError(map[string]string{"password": "must be at least 6 characters"})
	}
	if email != "" && !strings.Contains(email, "@") {
		return domain.User{}, domain.NewValidationError(map[string]string{"email": "invalid"})
	}

	passwordHash, err := s.hasher().Hash(password)
	if err != nil {
		return domain.User{}, err
	}

	return s.Users.CreateUser(ctx, username, email, passwordHash)
}

// Verify checks a username/password pair. Unknown users and wrong passwords
// both yield domain.ErrInvalidCredentials after a full hash verification.
func (s *AuthService) Verify(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.Users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_, _ = auth.VerifyPassword(s.dummy(), password)
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if !u.IsActive {
		return domain.User{}, domain.ErrUserDisabled
	}
	return u.User, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher().Hash("relay-dummy-password")
		if err != nil {
			s.logger().Error("auth: dummy hash failed", "err", err)
			s.dummyHash = fallbackDummyHash
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// Issue creates a fresh session for userID and returns its token.
func (s *AuthService) Issue(ctx context.Context, userID int64) (string, error) {
	newToken := s.NewToken
	if newToken == nil {
		newToken = auth.NewSessionToken
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}

	var expiresAt *time.Time
	if s.SessionTTL > 0 {
		exp := s.now().Add(s.SessionTTL)
		expiresAt = &exp
	}

	if _, err := s.Sessions.CreateSession(ctx, userID, token, expiresAt); err != nil {
		return "", err
	}
	return token, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	missing := map[string]string{}
	if username == "" {
		missing["username"] = "required"
	}
	if password == "" {
		missing["password"] = "required"
	}
	if len(missing) > 0 {
		return domain.User{}, "", domain.NewValidationError(missing)
	}

	u, err := s.Verify(ctx, username, password)
	if err != nil {
		return domain.User{}, "", err
	}

	token, err := s.Issue(ctx, u.ID)
	if err != nil {
		return domain.User{}, "", err
	}

	when := s.now()
	if err := s.Users.SetLastLogin(ctx, u.ID, when); err != nil {
		s.logger().Warn("auth: set last login failed", "err", err, "user_id", u.ID)
	} else {
		u.LastLogin = &when
	}

	return u, token, nil
}

// Resolve maps a token to its user. Anything other than a valid, unexpired
// session of an active user is rejected.
func (s *AuthService) Resolve(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrUnauthorized
	}

	sess, err := s.Sessions.GetSessionByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger().Error("auth: session lookup failed", "err", err)
		}
		return domain.User{}, domain.ErrUnauthorized
	}
	if !sess.IsValid {
		return domain.User{}, domain.ErrUnauthorized
	}
	if sess.Expired(s.now()) {
		return domain.User{}, domain.ErrSessionExpired
	}

	u, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger().Error("auth: session user lookup failed", "err", err, "user_id", sess.UserID)
		}
		return domain.User{}, domain.ErrUnauthorized
	}
	if !u.IsActive {
		return domain.User{}, domain.ErrUnauthorized
	}
	return u, nil
}

// Invalidate is idempotent.
func (s *AuthService) Invalidate(ctx context.Context, token string) error {
	return s.Sessions.InvalidateSession(ctx, token)
}
