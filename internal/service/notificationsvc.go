package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"RelayMessenger/internal/domain"
	"RelayMessenger/internal/notifications"
)

type DeviceTokensStore interface {
	UpsertDeviceToken(ctx context.Context, userID int64, token, platform string, when time.Time) (domain.DeviceToken, error)
	DeleteDeviceToken(ctx context.Context, userID int64, token string) error
	TouchDeviceToken(ctx context.Context, userID int64, token string, when time.Time) error
	ListDeviceTokens(ctx context.Context, userID int64) ([]domain.DeviceToken, error)
}

type PushSender interface {
	Send(ctx context.Context, token string, msg notifications.Message) error
}

type NewMessageNotification struct {
	MessageID      int64
	RecipientID    int64
	SenderUsername string
}

type NotificationService struct {
	Tokens DeviceTokensStore
	Sender PushSender
	Logger *slog.Logger
	Now    func() time.Time
}

func (s *NotificationService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *NotificationService) RegisterDevice(ctx context.Context, userID int64, token, platform string) (domain.DeviceToken, error) {
	if s.Tokens == nil {
		return domain.DeviceToken{}, errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	platform = strings.TrimSpace(strings.ToLower(platform))
	if token == "" {
		return domain.DeviceToken{}, domain.NewValidationError(map[string]string{"device_token": "required"})
	}
	switch platform {
	case "":
		platform = domain.PlatformAndroid
	case domain.PlatformAndroid, domain.PlatformIOS:
	default:
		return domain.DeviceToken{}, domain.NewValidationError(map[string]string{"platform": "must be ios or android"})
	}
	when := s.now().UTC().Truncate(time.Millisecond)
	return s.Tokens.UpsertDeviceToken(ctx, userID, token, platform, when)
}

// NotifyNewMessage pushes to every registered device of the recipient.
// Unregistered tokens are pruned; other send failures are only logged.
func (s *NotificationService) NotifyNewMessage(ctx context.Context, n NewMessageNotification) error {
	if s.Tokens == nil || s.Sender == nil {
		return nil
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := s.Tokens.ListDeviceTokens(ctx, n.RecipientID)
	if err != nil {
		logger.Error("notifications: list tokens failed", "err", err, "user_id", n.RecipientID)
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	payload := map[string]string{
		"type":       "new_message",
		"sender":     n.SenderUsername,
		"message_id": strconv.FormatInt(n.MessageID, 10),
	}
	dataOnlyMsg := notifications.Message{Data: payload}
	iosAlertMsg := notifications.Message{
		Data: payload,
		Notification: &notifications.Notification{
			Title: "New message",
			Body:  n.SenderUsername + " sent you a message.",
		},
	}

	for _, token := range tokens {
		msg := dataOnlyMsg
		if token.Platform == domain.PlatformIOS {
			msg = iosAlertMsg
		}
		if err := s.Sender.Send(ctx, token.Token, msg); err != nil {
			if errors.Is(err, notifications.ErrInvalidToken) {
				if delErr := s.Tokens.DeleteDeviceToken(ctx, n.RecipientID, token.Token); delErr != nil {
					logger.Error("notifications: delete invalid token failed", "err", delErr, "user_id", n.RecipientID)
				}
				continue
			}
			logger.Error("notifications: send failed", "err", err, "user_id", n.RecipientID)
			continue
		}
		if err := s.Tokens.TouchDeviceToken(ctx, n.RecipientID, token.Token, s.now().UTC()); err != nil {
			logger.Warn("notifications: touch token failed", "err", err, "user_id", n.RecipientID)
		}
	}

	return nil
}
