package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

type captureTransport struct {
	req    *http.Request
	body   []byte
	status int
	reply  string
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.req = req
	t.body, _ = io.ReadAll(req.Body)
	_ = req.Body.Close()
	status := t.status
	if status == 0 {
		status = http.StatusOK
	}
	reply := t.reply
	if reply == "" {
		reply = `{}`
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(reply)),
		Header:     make(http.Header),
	}, nil
}

func testSender(rt http.RoundTripper) *FCMSender {
	return &FCMSender{
		projectID:   "pid",
		tokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token"}),
		client:      &http.Client{Transport: rt},
	}
}

func TestFCMSenderSend_AlertIncludesAPNSHeaders(t *testing.T) {
	rt := &captureTransport{}
	sender := testSender(rt)

	err := sender.Send(context.Background(), "fcm-token-1", Message{
		Data: map[string]string{"type": "new_message", "sender": "alice"},
		Notification: &Notification{
			Title: "New message",
			Body:  "alice sent you a message.",
		},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if got := rt.req.Header.Get("Authorization"); got != "Bearer token" {
		t.Fatalf("unexpected authorization header: %q", got)
	}
	if !strings.HasSuffix(rt.req.URL.Path, "/v1/projects/pid/messages:send") {
		t.Fatalf("unexpected url: %s", rt.req.URL)
	}

	var payload map[string]any
	if err := json.Unmarshal(rt.body, &payload); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	message, _ := payload["message"].(map[string]any)
	if message == nil {
		t.Fatalf("missing message payload")
	}
	if message["token"] != "fcm-token-1" {
		t.Fatalf("unexpected token: %v", message["token"])
	}
	notification, _ := message["notification"].(map[string]any)
	if notification == nil || notification["title"] != "New message" {
		t.Fatalf("unexpected notification payload: %v", message["notification"])
	}
	apns, _ := message["apns"].(map[string]any)
	headers, _ := apns["headers"].(map[string]any)
	if headers["apns-push-type"] != "alert" || headers["apns-priority"] != "10" {
		t.Fatalf("unexpected apns headers: %v", headers)
	}
}

func TestFCMSenderSend_DataOnlyOmitsNotification(t *testing.T) {
	rt := &captureTransport{}
	sender := testSender(rt)

	if err := sender.Send(context.Background(), "fcm-token-1", Message{Data: map[string]string{"type": "new_message"}}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	var payload map[string]map[string]any
	if err := json.Unmarshal(rt.body, &payload); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	if _, ok := payload["message"]["notification"]; ok {
		t.Fatalf("data-only message must not carry a notification")
	}
	if _, ok := payload["message"]["apns"]; ok {
		t.Fatalf("data-only message must not carry apns headers")
	}
}

func TestFCMSenderSend_UnregisteredTokenIsInvalid(t *testing.T) {
	rt := &captureTransport{
		status: http.StatusNotFound,
		reply:  `{"error":{"status":"NOT_FOUND","message":"Requested entity was not found.","details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`,
	}
	sender := testSender(rt)

	err := sender.Send(context.Background(), "stale", Message{Data: map[string]string{"type": "new_message"}})
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestFCMSenderSend_OtherErrors(t *testing.T) {
	rt := &captureTransport{
		status: http.StatusInternalServerError,
		reply:  `{"error":{"status":"INTERNAL","message":"boom"}}`,
	}
	sender := testSender(rt)

	err := sender.Send(context.Background(), "tok", Message{})
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected generic error, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error should carry fcm message: %v", err)
	}
}

func TestFCMSenderSend_RequiresToken(t *testing.T) {
	sender := testSender(&captureTransport{})
	if err := sender.Send(context.Background(), "  ", Message{}); err == nil {
		t.Fatalf("expected error for blank token")
	}
}
