package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"RelayMessenger/internal/domain"
)

const (
	DefaultConversationLimit = 50
	MaxConversationLimit     = 200

	defaultNotifyTimeout = 10 * time.Second
)

type MessagesStore interface {
	CreateMessage(ctx context.Context, senderID, recipientID int64, body string) (domain.Message, error)
	ListUnread(ctx context.Context, recipientID int64) ([]domain.InboxMessage, error)
	MarkRead(ctx context.Context, messageID, recipientID int64, when time.Time) (domain.Message, error)
	ListConversation(ctx context.Context, userID, otherID int64) ([]domain.ConversationMessage, error)
	ConversationPage(ctx context.Context, userID, otherID int64, limit, offset int) (domain.ConversationPage, error)
}

type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (domain.UserWithPassword, error)
}

type NewMessageNotifier interface {
	NotifyNewMessage(ctx context.Context, n NewMessageNotification) error
}

type MessageService struct {
	Messages      MessagesStore
	Users         UserLookup
	Notifier      NewMessageNotifier
	NotifyTimeout time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

func (s *MessageService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *MessageService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Send stores a message from sender to the user named recipientUsername.
// The recipient lookup and the insert are separate statements; usernames
// never change so the pair needs no transaction.
func (s *MessageService) Send(ctx context.Context, sender domain.User, recipientUsername, body string) (domain.Message, error) {
	recipientUsername = strings.TrimSpace(recipientUsername)
	body = strings.TrimSpace(body)

	missing := map[string]string{}
	if recipientUsername == "" {
		missing["recipient"] = "required"
	}
	if body == "" {
		missing["message"] = "required"
	}
	if len(missing) > 0 {
		return domain.Message{}, domain.NewValidationError(missing)
	}

	recipient, err := s.lookup(ctx, recipientUsername, domain.ErrRecipientNotFound)
	if err != nil {
		return domain.Message{}, err
	}

	m, err := s.Messages.CreateMessage(ctx, sender.ID, recipient.ID, body)
	if err != nil {
		return domain.Message{}, err
	}

	s.notify(NewMessageNotification{
		MessageID:      m.ID,
		RecipientID:    recipient.ID,
		SenderUsername: sender.Username,
	})

	return m, nil
}

func (s *MessageService) notify(n NewMessageNotification) {
	if s.Notifier == nil {
		return
	}
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Notifier.NotifyNewMessage(ctx, n); err != nil {
			s.logger().Warn("messages: push notification failed", "err", err, "message_id", n.MessageID)
		}
	}()
}

func (s *MessageService) FetchUnread(ctx context.Context, user domain.User) ([]domain.InboxMessage, error) {
	return s.Messages.ListUnread(ctx, user.ID)
}

// MarkRead reports domain.ErrNotFound both for unknown messages and for
// messages addressed to someone else.
func (s *MessageService) MarkRead(ctx context.Context, user domain.User, messageID int64) error {
	if messageID <= 0 {
		return domain.ErrNotFound
	}
	_, err := s.Messages.MarkRead(ctx, messageID, user.ID, s.now())
	return err
}

func (s *MessageService) FetchConversation(ctx context.Context, user domain.User, otherUsername string) ([]domain.ConversationMessage, error) {
	other, err := s.lookup(ctx, strings.TrimSpace(otherUsername), domain.ErrNotFound)
	if err != nil {
		return nil, err
	}
	return s.Messages.ListConversation(ctx, user.ID, other.ID)
}

// FetchConversationPage clamps limit to MaxConversationLimit.
func (s *MessageService) FetchConversationPage(ctx context.Context, user domain.User, otherUsername string, limit, offset int) (domain.ConversationPage, error) {
	if limit <= 0 {
		return domain.ConversationPage{}, domain.NewValidationError(map[string]string{"limit": "must be positive"})
	}
	if limit > MaxConversationLimit {
		limit = MaxConversationLimit
	}
	if offset < 0 {
		return domain.ConversationPage{}, domain.NewValidationError(map[string]string{"offset": "must not be negative"})
	}

	other, err := s.lookup(ctx, strings.TrimSpace(otherUsername), domain.ErrNotFound)
	if err != nil {
		return domain.ConversationPage{}, err
	}
	return s.Messages.ConversationPage(ctx, user.ID, other.ID, limit, offset)
}

func (s *MessageService) lookup(ctx context.Context, username string, notFound error) (domain.User, error) {
	if username == "" {
		return domain.User{}, notFound
	}
	u, err := s.Users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, notFound
		}
		return domain.User{}, err
	}
	return u.User, nil
}
