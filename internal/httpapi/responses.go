package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"RelayMessenger/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, statusResponse{Status: "success", Message: message})
}

// writeInvalidCredentials is the single login failure body; it must not vary
// between unknown users, wrong passwords and disabled accounts.
func writeInvalidCredentials(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
}

func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteError(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrUsernameTaken):
		WriteError(w, http.StatusBadRequest, "username_taken", "username already exists")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusBadRequest, "email_taken", "email already exists")
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUserDisabled):
		writeInvalidCredentials(w)
	case errors.Is(err, domain.ErrSessionExpired):
		WriteError(w, http.StatusUnauthorized, "session_expired", "session expired")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing token")
	case errors.Is(err, domain.ErrRecipientNotFound):
		WriteError(w, http.StatusNotFound, "recipient_not_found", "recipient not found")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

var domainErrors = []error{
	domain.ErrValidation,
	domain.ErrUsernameTaken,
	domain.ErrEmailTaken,
	domain.ErrInvalidCredentials,
	domain.ErrUserDisabled,
	domain.ErrSessionExpired,
	domain.ErrUnauthorized,
	domain.ErrRecipientNotFound,
	domain.ErrNotFound,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func formatMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func formatMillisPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	out := formatMillis(*t)
	return &out
}
