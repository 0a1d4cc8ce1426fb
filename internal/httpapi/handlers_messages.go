package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"RelayMessenger/internal/domain"
	"RelayMessenger/internal/service"

	"github.com/go-chi/chi/v5"
)

type sendMessageRequest struct {
	Token     string `json:"token"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type sendMessageResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	MessageID int64  `json:"message_id"`
}

type inboxMessageResponse struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type conversationMessageResponse struct {
	ID           int64  `json:"id"`
	Sender       string `json:"sender"`
	Message      string `json:"message"`
	IsRead       bool   `json:"is_read"`
	IsOwnMessage *bool  `json:"is_own_message,omitempty"`
	Timestamp    string `json:"timestamp"`
}

type conversationPageResponse struct {
	Conversation  []conversationMessageResponse `json:"conversation"`
	TotalMessages int                           `json:"total_messages"`
	HasMore       bool                          `json:"has_more"`
}

func (a *api) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	m, err := a.messagesSvc.Send(r.Context(), u, req.Recipient, req.Message)
	if err != nil {
		a.logUnexpected("send message failed", err, u.ID)
		WriteDomainError(w, err)
		return
	}

	a.metrics.messageSent()
	a.record(r, &u.ID, domain.ActionSendMessage, "To: "+strings.TrimSpace(req.Recipient), domain.ActivityStatusSuccess)
	WriteJSON(w, http.StatusOK, sendMessageResponse{
		Status:    "success",
		Message:   "Message sent",
		MessageID: m.ID,
	})
}

func (a *api) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	msgs, err := a.messagesSvc.FetchUnread(r.Context(), u)
	if err != nil {
		a.logUnexpected("fetch unread failed", err, u.ID)
		WriteDomainError(w, err)
		return
	}

	out := make([]inboxMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, inboxMessageResponse{
			ID:        m.ID,
			Sender:    m.SenderUsername,
			Message:   m.Body,
			Timestamp: formatMillis(m.CreatedAt),
		})
	}

	a.record(r, &u.ID, domain.ActionGetMessages, "Count: "+strconv.Itoa(len(out)), domain.ActivityStatusSuccess)
	WriteJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (a *api) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id": "must be a positive integer"}))
		return
	}

	var req tokenOnlyRequest
	if _, err := decodeJSONAllowEmpty(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := a.messagesSvc.MarkRead(r.Context(), u, id); err != nil {
		a.logUnexpected("mark read failed", err, u.ID)
		WriteDomainError(w, err)
		return
	}

	a.record(r, &u.ID, domain.ActionMarkMessageRead, "Message: "+strconv.FormatInt(id, 10), domain.ActivityStatusSuccess)
	writeSuccess(w, http.StatusOK, "Message marked as read")
}

func (a *api) handleConversation(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	other := chi.URLParam(r, "username")

	msgs, err := a.messagesSvc.FetchConversation(r.Context(), u, other)
	if err != nil {
		a.logUnexpected("fetch conversation failed", err, u.ID)
		WriteDomainError(w, err)
		return
	}

	a.record(r, &u.ID, domain.ActionViewConversation, "With: "+other, domain.ActivityStatusSuccess)
	WriteJSON(w, http.StatusOK, map[string]any{"conversation": conversationResponse(msgs, false)})
}

func (a *api) handleConversationPage(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	other := chi.URLParam(r, "username")

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), service.DefaultConversationLimit)
	if err != nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"limit": "must be an integer"}))
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"offset": "must be an integer"}))
		return
	}

	page, err := a.messagesSvc.FetchConversationPage(r.Context(), u, other, limit, offset)
	if err != nil {
		a.logUnexpected("fetch conversation page failed", err, u.ID)
		WriteDomainError(w, err)
		return
	}

	a.record(r, &u.ID, domain.ActionViewConversation, "With: "+other, domain.ActivityStatusSuccess)
	WriteJSON(w, http.StatusOK, conversationPageResponse{
		Conversation:  conversationResponse(page.Messages, true),
		TotalMessages: page.Total,
		HasMore:       page.HasMore,
	})
}

func conversationResponse(msgs []domain.ConversationMessage, withOwnership bool) []conversationMessageResponse {
	out := make([]conversationMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		item := conversationMessageResponse{
			ID:        m.ID,
			Sender:    m.SenderUsername,
			Message:   m.Body,
			IsRead:    m.IsRead,
			Timestamp: formatMillis(m.CreatedAt),
		}
		if withOwnership {
			own := m.IsOwnMessage
			item.IsOwnMessage = &own
		}
		out = append(out, item)
	}
	return out
}

func intParam(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// logUnexpected logs errors that will surface as 500s.
func (a *api) logUnexpected(msg string, err error, userID int64) {
	if !isDomainError(err) {
		a.logger.Error(msg, "err", err, "user_id", userID)
	}
}
