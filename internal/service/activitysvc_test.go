package service

import (
	"context"
	"errors"
	"testing"

	"RelayMessenger/internal/domain"
)

type activityStoreFunc func(context.Context, domain.ActivityEntry) error

func (f activityStoreFunc) InsertActivity(ctx context.Context, e domain.ActivityEntry) error {
	return f(ctx, e)
}

func TestActivityServiceRecordDefaultsStatus(t *testing.T) {
	var got domain.ActivityEntry
	svc := &ActivityService{Store: activityStoreFunc(func(_ context.Context, e domain.ActivityEntry) error {
		got = e
		return nil
	})}

	svc.Record(context.Background(), domain.ActivityEntry{Action: domain.ActionUserSignup})
	if got.Status != domain.ActivityStatusSuccess {
		t.Fatalf("unexpected status: %q", got.Status)
	}
}

func TestActivityServiceRecordSwallowsErrors(t *testing.T) {
	called := false
	svc := &ActivityService{Store: activityStoreFunc(func(context.Context, domain.ActivityEntry) error {
		called = true
		return errors.New("db down")
	})}

	svc.Record(context.Background(), domain.ActivityEntry{Action: domain.ActionFailedLogin, Status: domain.ActivityStatusFailed})
	if !called {
		t.Fatalf("store not called")
	}

	var nilSvc *ActivityService
	nilSvc.Record(context.Background(), domain.ActivityEntry{Action: domain.ActionUserLogin})
}
