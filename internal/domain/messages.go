package domain

import "time"

// Message is immutable after creation except for the one-way unread -> read transition.
// IsRead is true exactly when ReadAt is set.
type Message struct {
	ID          int64
	SenderID    int64
	RecipientID int64
	Body        string
	IsRead      bool
	ReadAt      *time.Time
	CreatedAt   time.Time
}

// InboxMessage is an unread message annotated with the sender's username.
type InboxMessage struct {
	ID             int64
	SenderUsername string
	Body           string
	CreatedAt      time.Time
}

type ConversationMessage struct {
	ID             int64
	SenderID       int64
	SenderUsername string
	Body           string
	IsRead         bool
	IsOwnMessage   bool
	CreatedAt      time.Time
}

type ConversationPage struct {
	Messages []ConversationMessage
	Total    int
	HasMore  bool
}
