package domain

import "time"

const (
	ActionUserSignup       = "user_signup"
	ActionUserLogin        = "user_login"
	ActionFailedLogin      = "failed_login_attempt"
	ActionUserLogout       = "user_logout"
	ActionSendMessage      = "send_message"
	ActionGetMessages      = "get_messages"
	ActionMarkMessageRead  = "mark_message_read"
	ActionViewConversation = "view_conversation"
	ActionRegisterDevice   = "register_device"
	ActionAdminLogin       = "admin_login"

	ActivityStatusSuccess = "success"
	ActivityStatusFailed  = "failed"
)

// ActivityEntry is one append-only audit record. UserID is nil for anonymous events.
type ActivityEntry struct {
	UserID  *int64
	Action  string
	Details string
	Origin  string
	Status  string
}

// ActivityRecord is a stored ActivityEntry as read back for review.
type ActivityRecord struct {
	ID        int64
	UserID    *int64
	Username  string
	Action    string
	Details   string
	Origin    string
	Status    string
	CreatedAt time.Time
}

// Overview holds headline counts for the admin console.
type Overview struct {
	Users          int64
	ActiveUsers    int64
	Messages       int64
	UnreadMessages int64
	LiveSessions   int64
	FailedLogins24 int64
}
