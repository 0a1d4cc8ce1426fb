package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"RelayMessenger/internal/auth"
	"RelayMessenger/internal/domain"
	"RelayMessenger/internal/service"
)

// memStore is an in-memory stand-in for every postgres store.
type memStore struct {
	mu sync.Mutex

	clock    time.Time
	nextID   int64
	users    map[int64]domain.UserWithPassword
	sessions map[string]domain.Session
	messages []domain.Message
	activity []domain.ActivityEntry
	devices  []domain.DeviceToken
}

func newMemStore() *memStore {
	return &memStore{
		clock:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		users:    map[int64]domain.UserWithPassword{},
		sessions: map[string]domain.Session{},
	}
}

func (m *memStore) tick() (int64, time.Time) {
	m.nextID++
	m.clock = m.clock.Add(time.Second)
	return m.nextID, m.clock
}

func (m *memStore) CreateUser(_ context.Context, username, email, passwordHash string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return domain.User{}, domain.ErrUsernameTaken
		}
		if email != "" && u.Email == email {
			return domain.User{}, domain.ErrEmailTaken
		}
	}
	id, now := m.tick()
	u := domain.UserWithPassword{
		User:         domain.User{ID: id, Username: username, Email: email, IsActive: true, CreatedAt: now},
		PasswordHash: passwordHash,
	}
	m.users[id] = u
	return u.User, nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.User, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (domain.UserWithPassword, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.UserWithPassword{}, domain.ErrNotFound
}

func (m *memStore) SetLastLogin(_ context.Context, userID int64, when time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.LastLogin = &when
	m.users[userID] = u
	return nil
}

func (m *memStore) ListActiveUsers(_ context.Context, excludeUserID int64) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.User{}
	for _, u := range m.users {
		if u.IsActive && u.ID != excludeUserID {
			out = append(out, u.User)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *memStore) CreateSession(_ context.Context, userID int64, token string, expiresAt *time.Time) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, now := m.tick()
	s := domain.Session{ID: id, UserID: userID, Token: token, CreatedAt: now, ExpiresAt: expiresAt, IsValid: true}
	m.sessions[token] = s
	return s, nil
}

func (m *memStore) GetSessionByToken(_ context.Context, token string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *memStore) InvalidateSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[token]; ok {
		s.IsValid = false
		m.sessions[token] = s
	}
	return nil
}

func (m *memStore) CreateMessage(_ context.Context, senderID, recipientID int64, body string) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, now := m.tick()
	msg := domain.Message{ID: id, SenderID: senderID, RecipientID: recipientID, Body: body, CreatedAt: now}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memStore) ListUnread(_ context.Context, recipientID int64) ([]domain.InboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.InboxMessage{}
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if msg.RecipientID == recipientID && !msg.IsRead {
			out = append(out, domain.InboxMessage{
				ID:             msg.ID,
				SenderUsername: m.users[msg.SenderID].Username,
				Body:           msg.Body,
				CreatedAt:      msg.CreatedAt,
			})
		}
	}
	return out, nil
}

func (m *memStore) MarkRead(_ context.Context, messageID, recipientID int64, when time.Time) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, msg := range m.messages {
		if msg.ID == messageID && msg.RecipientID == recipientID {
			if !msg.IsRead {
				msg.IsRead = true
				msg.ReadAt = &when
				m.messages[i] = msg
			}
			return msg, nil
		}
	}
	return domain.Message{}, domain.ErrNotFound
}

func (m *memStore) conversation(userID, otherID int64) []domain.ConversationMessage {
	out := []domain.ConversationMessage{}
	for _, msg := range m.messages {
		if (msg.SenderID == userID && msg.RecipientID == otherID) || (msg.SenderID == otherID && msg.RecipientID == userID) {
			out = append(out, domain.ConversationMessage{
				ID:             msg.ID,
				SenderID:       msg.SenderID,
				SenderUsername: m.users[msg.SenderID].Username,
				Body:           msg.Body,
				IsRead:         msg.IsRead,
				IsOwnMessage:   msg.SenderID == userID,
				CreatedAt:      msg.CreatedAt,
			})
		}
	}
	return out
}

func (m *memStore) ListConversation(_ context.Context, userID, otherID int64) ([]domain.ConversationMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversation(userID, otherID), nil
}

func (m *memStore) ConversationPage(_ context.Context, userID, otherID int64, limit, offset int) (domain.ConversationPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.conversation(userID, otherID)
	total := len(all)
	end := total - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := append([]domain.ConversationMessage{}, all[start:end]...)
	return domain.ConversationPage{Messages: page, Total: total, HasMore: offset+limit < total}, nil
}

func (m *memStore) InsertActivity(_ context.Context, e domain.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, e)
	return nil
}

func (m *memStore) UpsertDeviceToken(_ context.Context, userID int64, token, platform string, when time.Time) (domain.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.devices {
		if d.UserID == userID && d.Token == token {
			d.Platform, d.RegisteredAt = platform, when
			m.devices[i] = d
			return d, nil
		}
	}
	id, _ := m.tick()
	d := domain.DeviceToken{ID: id, UserID: userID, Token: token, Platform: platform, RegisteredAt: when}
	m.devices = append(m.devices, d)
	return d, nil
}

func (m *memStore) DeleteDeviceToken(context.Context, int64, string) error { return nil }

func (m *memStore) TouchDeviceToken(context.Context, int64, string, time.Time) error { return nil }

func (m *memStore) ListDeviceTokens(_ context.Context, userID int64) ([]domain.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeviceToken
	for _, d := range m.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) activityFor(action string) []domain.ActivityEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ActivityEntry
	for _, e := range m.activity {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func testRouterOpts(mem *memStore) RouterOpts {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return RouterOpts{
		Logger: logger,
		Auth: &service.AuthService{
			Users:    mem,
			Sessions: mem,
			Hasher:   auth.Hasher{Algorithm: auth.AlgoPBKDF2SHA256, PBKDF2Iterations: auth.MinPBKDF2Iterations},
			Logger:   logger,
		},
		Messages:      &service.MessageService{Messages: mem, Users: mem, Logger: logger},
		Users:         &service.UsersService{Store: mem},
		Activity:      &service.ActivityService{Store: mem, Logger: logger},
		Notifications: &service.NotificationService{Tokens: mem, Logger: logger},
	}
}

func newTestRouter(t *testing.T, mem *memStore) http.Handler {
	t.Helper()
	return NewRouter(testRouterOpts(mem))
}

func do(t *testing.T, h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
