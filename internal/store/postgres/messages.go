package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RelayMessenger/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type MessagesStore struct {
	db DB
}

func NewMessagesStore(db DB) *MessagesStore {
	return &MessagesStore{db: db}
}

const messageColumns = `id, sender_id, recipient_id, body, is_read, read_at, created_at`

func scanMessage(row scanner) (domain.Message, error) {
	var (
		m      domain.Message
		readTS pgtype.Timestamptz
	)
	if err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.IsRead, &readTS, &m.CreatedAt); err != nil {
		return domain.Message{}, err
	}
	m.ReadAt = timestamptzPtr(readTS)
	return m, nil
}

func (s *MessagesStore) CreateMessage(ctx context.Context, senderID, recipientID int64, body string) (domain.Message, error) {
	const q = `
		INSERT INTO messages (sender_id, recipient_id, body)
		VALUES ($1, $2, $3)
		RETURNING ` + messageColumns

	m, err := scanMessage(s.db.QueryRow(ctx, q, senderID, recipientID, body))
	if err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

func (s *MessagesStore) ListUnread(ctx context.Context, recipientID int64) ([]domain.InboxMessage, error) {
	const q = `
		SELECT m.id, u.username, m.body, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.recipient_id = $1 AND NOT m.is_read
		ORDER BY m.created_at DESC, m.id DESC
	`

	rows, err := s.db.Query(ctx, q, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	defer rows.Close()

	out := []domain.InboxMessage{}
	for rows.Next() {
		var m domain.InboxMessage
		if err := rows.Scan(&m.ID, &m.SenderUsername, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan unread: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	return out, nil
}

// MarkRead flips the message to read in one statement. An already-read
// message keeps its original read_at. A message that does not exist or is
// addressed to someone else yields domain.ErrNotFound.
func (s *MessagesStore) MarkRead(ctx context.Context, messageID, recipientID int64, when time.Time) (domain.Message, error) {
	const q = `
		UPDATE messages
		SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2
		RETURNING ` + messageColumns

	m, err := scanMessage(s.db.QueryRow(ctx, q, messageID, recipientID, when))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, domain.ErrNotFound
		}
		return domain.Message{}, fmt.Errorf("mark read: %w", err)
	}
	return m, nil
}

const conversationWhere = `
		WHERE (m.sender_id = $1 AND m.recipient_id = $2)
		   OR (m.sender_id = $2 AND m.recipient_id = $1)
`

func (s *MessagesStore) ListConversation(ctx context.Context, userID, otherID int64) ([]domain.ConversationMessage, error) {
	const q = `
		SELECT m.id, m.sender_id, u.username, m.body, m.is_read, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
	` + conversationWhere + `
		ORDER BY m.created_at ASC, m.id ASC
	`

	rows, err := s.db.Query(ctx, q, userID, otherID)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return collectConversation(rows, userID)
}

// ConversationPage returns the limit most recent messages after skipping
// offset, ordered oldest first. Count and page are read from one snapshot.
func (s *MessagesStore) ConversationPage(ctx context.Context, userID, otherID int64, limit, offset int) (domain.ConversationPage, error) {
	const countQ = `
		SELECT count(*)
		FROM messages m
	` + conversationWhere

	const pageQ = `
		SELECT m.id, m.sender_id, u.username, m.body, m.is_read, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
	` + conversationWhere + `
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $3 OFFSET $4
	`

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return domain.ConversationPage{}, fmt.Errorf("begin conversation page: %w", err)
	}

	var total int
	if err := tx.QueryRow(ctx, countQ, userID, otherID).Scan(&total); err != nil {
		_ = tx.Rollback(ctx)
		return domain.ConversationPage{}, fmt.Errorf("count conversation: %w", err)
	}

	rows, err := tx.Query(ctx, pageQ, userID, otherID, limit, offset)
	if err != nil {
		_ = tx.Rollback(ctx)
		return domain.ConversationPage{}, fmt.Errorf("conversation page: %w", err)
	}
	msgs, err := collectConversation(rows, userID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return domain.ConversationPage{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ConversationPage{}, fmt.Errorf("commit conversation page: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return domain.ConversationPage{
		Messages: msgs,
		Total:    total,
		HasMore:  offset+limit < total,
	}, nil
}

func collectConversation(rows pgx.Rows, viewerID int64) ([]domain.ConversationMessage, error) {
	defer rows.Close()

	out := []domain.ConversationMessage{}
	for rows.Next() {
		var m domain.ConversationMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderUsername, &m.Body, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		m.IsOwnMessage = m.SenderID == viewerID
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return out, nil
}
