// Package client is a typed HTTP client for the relay API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

var ErrNoToken = errors.New("not logged in")

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay api: status %d", e.Status)
	}
	return fmt.Sprintf("relay api: %s (%d): %s", e.Code, e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Token() string { return c.token }

func (c *Client) SetToken(token string) { c.token = token }

type LoginResult struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type Contact struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	JoinedAt string `json:"joined_at"`
}

type Profile struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	CreatedAt string  `json:"created_at"`
	LastLogin *string `json:"last_login"`
}

type InboxMessage struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type ConversationMessage struct {
	ID           int64  `json:"id"`
	Sender       string `json:"sender"`
	Message      string `json:"message"`
	IsRead       bool   `json:"is_read"`
	IsOwnMessage bool   `json:"is_own_message"`
	Timestamp    string `json:"timestamp"`
}

type ConversationPage struct {
	Conversation  []ConversationMessage `json:"conversation"`
	TotalMessages int                   `json:"total_messages"`
	HasMore       bool                  `json:"has_more"`
}

type Health struct {
	Status string `json:"status"`
}

func (c *Client) Signup(ctx context.Context, username, password, email string) error {
	body := map[string]string{"username": username, "password": password}
	if email != "" {
		body["email"] = email
	}
	return c.do(ctx, http.MethodPost, "/signup", nil, body, false, nil)
}

// Login stores the returned session token on c.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", nil, body, false, &out); err != nil {
		return LoginResult{}, err
	}
	c.token = out.Token
	return out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/logout", nil, c.tokenBody(nil), true, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

func (c *Client) SendMessage(ctx context.Context, recipient, message string) (int64, error) {
	var out struct {
		MessageID int64 `json:"message_id"`
	}
	body := c.tokenBody(map[string]string{"recipient": recipient, "message": message})
	if err := c.do(ctx, http.MethodPost, "/send_message", nil, body, true, &out); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

func (c *Client) Unread(ctx context.Context) ([]InboxMessage, error) {
	var out struct {
		Messages []InboxMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/get_messages", nil, nil, true, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) MarkRead(ctx context.Context, id int64) error {
	path := "/mark_read/" + strconv.FormatInt(id, 10)
	return c.do(ctx, http.MethodPost, path, nil, c.tokenBody(nil), true, nil)
}

func (c *Client) Conversation(ctx context.Context, username string) ([]ConversationMessage, error) {
	var out struct {
		Conversation []ConversationMessage `json:"conversation"`
	}
	path := "/get_conversation/" + url.PathEscape(username)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, true, &out); err != nil {
		return nil, err
	}
	return out.Conversation, nil
}

func (c *Client) ConversationPage(ctx context.Context, username string, limit, offset int) (ConversationPage, error) {
	var out ConversationPage
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	path := "/get_conversation_v2/" + url.PathEscape(username)
	if err := c.do(ctx, http.MethodGet, path, q, nil, true, &out); err != nil {
		return ConversationPage{}, err
	}
	return out, nil
}

func (c *Client) Users(ctx context.Context) ([]Contact, error) {
	var out struct {
		Users []Contact `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/get_all_users", nil, nil, true, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var out struct {
		User Profile `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/get_user_profile", nil, nil, true, &out); err != nil {
		return Profile{}, err
	}
	return out.User, nil
}

func (c *Client) RegisterDevice(ctx context.Context, deviceToken, platform string) error {
	body := map[string]string{"device_token": deviceToken}
	if platform != "" {
		body["platform"] = platform
	}
	return c.do(ctx, http.MethodPost, "/register_device", nil, c.tokenBody(body), true, nil)
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, false, &out)
	return out, err
}

func (c *Client) tokenBody(body map[string]string) map[string]string {
	if body == nil {
		body = map[string]string{}
	}
	body["token"] = c.token
	return body
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, auth bool, out any) error {
	if auth && c.token == "" {
		return ErrNoToken
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &env) == nil && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
