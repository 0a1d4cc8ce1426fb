package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const AdminCookieName = "relay_admin"

// CookieCodec signs session tokens placed in browser cookies. With an empty
// secret tokens are stored as-is.
type CookieCodec struct {
	secret []byte
}

func NewCookieCodec(secret []byte) CookieCodec {
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	return CookieCodec{secret: secretCopy}
}

func (c CookieCodec) Encode(token string) string {
	if len(c.secret) == 0 {
		return token
	}
	return token + "." + base64.RawURLEncoding.EncodeToString(c.sign(token))
}

func (c CookieCodec) Decode(cookieValue string) (string, bool) {
	if len(c.secret) == 0 {
		return cookieValue, cookieValue != ""
	}

	token, sigB64, ok := strings.Cut(cookieValue, ".")
	if !ok || token == "" || sigB64 == "" {
		return "", false
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil || len(sig) != sha256.Size {
		return "", false
	}
	if subtle.ConstantTimeCompare(sig, c.sign(token)) != 1 {
		return "", false
	}
	return token, true
}

func (c CookieCodec) sign(token string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write([]byte(token))
	return mac.Sum(nil)
}

// SetAdminCookie writes a session cookie; ttl 0 makes it last for the browser session.
func SetAdminCookie(w http.ResponseWriter, value string, ttl time.Duration, secure bool) {
	c := &http.Cookie{
		Name:     AdminCookieName,
		Value:    value,
		Path:     "/admin",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
		c.Expires = time.Now().Add(ttl)
	}
	http.SetCookie(w, c)
}

func ClearAdminCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminCookieName,
		Value:    "",
		Path:     "/admin",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
