package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"

	"RelayMessenger/internal/auth"
	"RelayMessenger/internal/domain"
)

type authCtxKey int

const (
	authUserKey authCtxKey = iota
	authTokenKey
)

// requireAuth resolves the session token before the handler runs.
func (a *api) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		u, err := a.authSvc.Resolve(r.Context(), token)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authUserKey, u)
		ctx = context.WithValue(ctx, authTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestToken looks in the Authorization header, then the JSON body field
// "token", then the "token" query parameter. A body it reads is restored
// for the handler.
func requestToken(r *http.Request) string {
	if tok, ok := auth.BearerToken(r); ok {
		return tok
	}

	if r.Body != nil && r.Body != http.NoBody && r.Method != http.MethodGet {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err == nil && len(bytes.TrimSpace(raw)) > 0 {
			var env struct {
				Token string `json:"token"`
			}
			if json.Unmarshal(raw, &env) == nil && env.Token != "" {
				return env.Token
			}
		}
	}

	return r.URL.Query().Get("token")
}

func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(authUserKey).(domain.User)
	return u, ok
}

func CurrentToken(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(authTokenKey).(string)
	return s, ok
}

// clientIP expects middleware.RealIP to have rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
