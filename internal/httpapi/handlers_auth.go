package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"RelayMessenger/internal/domain"
)

type signupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	u, err := a.authSvc.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.record(r, &u.ID, domain.ActionUserSignup, "", domain.ActivityStatusSuccess)
	writeSuccess(w, http.StatusCreated, "User registered successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	u, token, err := a.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrUserDisabled) {
			a.metrics.loginResult("failed")
			a.record(r, nil, domain.ActionFailedLogin, "Username: "+strings.TrimSpace(req.Username), domain.ActivityStatusFailed)
			writeInvalidCredentials(w)
			return
		}
		if !errors.Is(err, domain.ErrValidation) {
			a.logger.Error("login failed", "err", err)
		}
		WriteDomainError(w, err)
		return
	}

	a.metrics.loginResult("success")
	a.record(r, &u.ID, domain.ActionUserLogin, "", domain.ActivityStatusSuccess)
	WriteJSON(w, http.StatusOK, loginResponse{
		Status:   "success",
		Message:  "Login successful",
		Token:    token,
		UserID:   u.ID,
		Username: u.Username,
	})
}

type tokenOnlyRequest struct {
	Token string `json:"token"`
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	token, tokOK := CurrentToken(r.Context())
	if !ok || !tokOK {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req tokenOnlyRequest
	if _, err := decodeJSONAllowEmpty(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := a.authSvc.Invalidate(r.Context(), token); err != nil {
		a.logger.Error("logout failed", "err", err, "user_id", u.ID)
		WriteDomainError(w, err)
		return
	}

	a.record(r, &u.ID, domain.ActionUserLogout, "", domain.ActivityStatusSuccess)
	writeSuccess(w, http.StatusOK, "Logged out")
}
