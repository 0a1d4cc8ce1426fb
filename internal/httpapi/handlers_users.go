package httpapi

import (
	"net/http"

	"RelayMessenger/internal/domain"
)

type contactResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	JoinedAt string `json:"joined_at"`
}

type profileResponse struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	CreatedAt string  `json:"created_at"`
	LastLogin *string `json:"last_login"`
}

func (a *api) handleAllUsers(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	users, err := a.usersSvc.ListContacts(r.Context(), u)
	if err != nil {
		a.logger.Error("list users failed", "err", err)
		WriteDomainError(w, err)
		return
	}

	out := make([]contactResponse, 0, len(users))
	for _, c := range users {
		out = append(out, contactResponse{
			ID:       c.ID,
			Username: c.Username,
			Email:    c.Email,
			JoinedAt: formatMillis(c.CreatedAt),
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (a *api) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	u, err := a.usersSvc.Profile(r.Context(), caller)
	if err != nil {
		a.logger.Error("user profile failed", "err", err)
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"user": profileResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: formatMillis(u.CreatedAt),
		LastLogin: formatMillisPtr(u.LastLogin),
	}})
}
