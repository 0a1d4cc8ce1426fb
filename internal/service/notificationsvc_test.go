package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"RelayMessenger/internal/domain"
	"RelayMessenger/internal/notifications"
)

type stubDeviceTokensStore struct {
	t *testing.T

	upsertFunc func(context.Context, int64, string, string, time.Time) (domain.DeviceToken, error)
	deleteFunc func(context.Context, int64, string) error
	touchFunc  func(context.Context, int64, string, time.Time) error
	listFunc   func(context.Context, int64) ([]domain.DeviceToken, error)
}

func (s *stubDeviceTokensStore) UpsertDeviceToken(ctx context.Context, userID int64, token, platform string, when time.Time) (domain.DeviceToken, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, userID, token, platform, when)
	}
	s.t.Fatalf("UpsertDeviceToken called unexpectedly")
	return domain.DeviceToken{}, errors.New("unexpected call")
}

func (s *stubDeviceTokensStore) DeleteDeviceToken(ctx context.Context, userID int64, token string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, userID, token)
	}
	s.t.Fatalf("DeleteDeviceToken called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubDeviceTokensStore) TouchDeviceToken(ctx context.Context, userID int64, token string, when time.Time) error {
	if s.touchFunc != nil {
		return s.touchFunc(ctx, userID, token, when)
	}
	return nil
}

func (s *stubDeviceTokensStore) ListDeviceTokens(ctx context.Context, userID int64) ([]domain.DeviceToken, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, userID)
	}
	s.t.Fatalf("ListDeviceTokens called unexpectedly")
	return nil, errors.New("unexpected call")
}

type recordingSender struct {
	sent map[string]notifications.Message
	errs map[string]error
}

func (s *recordingSender) Send(_ context.Context, token string, msg notifications.Message) error {
	if s.sent == nil {
		s.sent = map[string]notifications.Message{}
	}
	s.sent[token] = msg
	return s.errs[token]
}

func TestNotificationServiceRegisterDevice(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 123456789, time.UTC)
	tokens := &stubDeviceTokensStore{
		t: t,
		upsertFunc: func(_ context.Context, userID int64, token, platform string, when time.Time) (domain.DeviceToken, error) {
			if userID != 7 || token != "dev-1" || platform != domain.PlatformAndroid {
				t.Fatalf("unexpected upsert args: %d %q %q", userID, token, platform)
			}
			if !when.Equal(now.Truncate(time.Millisecond)) {
				t.Fatalf("unexpected registration time: %s", when)
			}
			return domain.DeviceToken{UserID: userID, Token: token, Platform: platform}, nil
		},
	}
	svc := &NotificationService{Tokens: tokens, Now: func() time.Time { return now }}

	if _, err := svc.RegisterDevice(context.Background(), 7, " dev-1 ", ""); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
}

func TestNotificationServiceRegisterDeviceValidation(t *testing.T) {
	svc := &NotificationService{Tokens: &stubDeviceTokensStore{t: t}}

	if _, err := svc.RegisterDevice(context.Background(), 7, "", "ios"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing token: expected validation error, got %v", err)
	}
	if _, err := svc.RegisterDevice(context.Background(), 7, "dev-1", "windows"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad platform: expected validation error, got %v", err)
	}
}

func TestNotificationServiceNotifyNewMessage(t *testing.T) {
	var deleted []string
	tokens := &stubDeviceTokensStore{
		t: t,
		listFunc: func(_ context.Context, userID int64) ([]domain.DeviceToken, error) {
			if userID != 2 {
				t.Fatalf("unexpected recipient: %d", userID)
			}
			return []domain.DeviceToken{
				{Token: "android-1", Platform: domain.PlatformAndroid},
				{Token: "ios-1", Platform: domain.PlatformIOS},
				{Token: "stale", Platform: domain.PlatformAndroid},
			}, nil
		},
		deleteFunc: func(_ context.Context, userID int64, token string) error {
			deleted = append(deleted, token)
			return nil
		},
	}
	sender := &recordingSender{errs: map[string]error{
		"stale": fmt.Errorf("%w: gone", notifications.ErrInvalidToken),
	}}
	svc := &NotificationService{Tokens: tokens, Sender: sender}

	err := svc.NotifyNewMessage(context.Background(), NewMessageNotification{MessageID: 10, RecipientID: 2, SenderUsername: "alice"})
	if err != nil {
		t.Fatalf("NotifyNewMessage: %v", err)
	}

	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(sender.sent))
	}
	if sender.sent["android-1"].Notification != nil {
		t.Fatalf("android push should be data-only")
	}
	if sender.sent["ios-1"].Notification == nil {
		t.Fatalf("ios push should carry an alert")
	}
	if got := sender.sent["android-1"].Data["message_id"]; got != "10" {
		t.Fatalf("unexpected message_id payload: %q", got)
	}
	if len(deleted) != 1 || deleted[0] != "stale" {
		t.Fatalf("expected stale token pruned, got %v", deleted)
	}
}

func TestNotificationServiceNotifyWithoutSenderIsNoop(t *testing.T) {
	svc := &NotificationService{Tokens: &stubDeviceTokensStore{t: t}}
	if err := svc.NotifyNewMessage(context.Background(), NewMessageNotification{RecipientID: 2}); err != nil {
		t.Fatalf("NotifyNewMessage: %v", err)
	}
}
