// Package client talks to the messaging backend over HTTP and WebSocket.
// It is the Backend of the messenger view-model.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"estate-chat/auth"
	"estate-chat/domain"
	"estate-chat/domain/event"
	"estate-chat/errors"
	"estate-chat/messenger"
	"estate-chat/services"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

var _ messenger.Backend = (*Client)(nil)

// APIError is a non 2xx response of the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Message)
}

// Unwrap lets callers match the sentinel errors of the backend.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return errors.ErrNotFound
	case http.StatusConflict:
		return errors.ErrUserAlreadyExists
	case http.StatusUnauthorized:
		return errors.ErrUnauthenticated
	case http.StatusForbidden:
		return errors.ErrForbidden
	case http.StatusBadRequest:
		return errors.ErrInvalidRequest
	default:
		return nil
	}
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	log     *slog.Logger

	mu    sync.RWMutex
	token string
}

func New(baseURL string, log *slog.Logger, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
		log:     log,
	}, nil
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register creates the account and keeps its token for the next calls.
func (c *Client) Register(ctx context.Context, req auth.RegisterRequest) (services.Session, error) {
	var session services.Session
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, req, &session); err != nil {
		return services.Session{}, err
	}
	c.SetToken(session.Token)
	return session, nil
}

// Login keeps the issued token for the next calls.
func (c *Client) Login(ctx context.Context, req auth.LoginRequest) (services.Session, error) {
	var session services.Session
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &session); err != nil {
		return services.Session{}, err
	}
	c.SetToken(session.Token)
	return session, nil
}

// Session returns an empty user id without token or when the backend rejects it.
func (c *Client) Session(ctx context.Context) (string, error) {
	if c.Token() == "" {
		return "", nil
	}
	var resp struct {
		UserID string `json:"user_id"`
	}
	err := c.do(ctx, http.MethodGet, "/auth/session", nil, nil, &resp)
	if errors.Is(err, errors.ErrUnauthenticated) {
		return "", nil
	}
	return resp.UserID, err
}

func (c *Client) Inbox(ctx context.Context) ([]domain.Message, error) {
	var messages []domain.Message
	err := c.do(ctx, http.MethodGet, "/api/messages/inbox", nil, nil, &messages)
	return messages, err
}

func (c *Client) Thread(ctx context.Context, counterpartID string) ([]domain.Message, error) {
	var messages []domain.Message
	err := c.do(ctx, http.MethodGet, "/api/messages/thread/"+url.PathEscape(counterpartID), nil, nil, &messages)
	return messages, err
}

func (c *Client) Search(ctx context.Context, query string) ([]domain.Message, error) {
	var messages []domain.Message
	err := c.do(ctx, http.MethodGet, "/api/messages/search", url.Values{"q": {query}}, nil, &messages)
	return messages, err
}

func (c *Client) Insert(ctx context.Context, recipientID, content string) (domain.Message, error) {
	body := map[string]string{"recipient_id": recipientID, "content": content}
	var message domain.Message
	err := c.do(ctx, http.MethodPost, "/api/messages/", nil, body, &message)
	return message, err
}

func (c *Client) MarkThreadRead(ctx context.Context, senderID string) ([]uuid.UUID, error) {
	var resp struct {
		IDs []uuid.UUID `json:"ids"`
	}
	err := c.do(ctx, http.MethodPost, "/api/messages/read", nil, map[string]string{"sender_id": senderID}, &resp)
	return resp.IDs, err
}

func (c *Client) MarkRead(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := c.do(ctx, http.MethodPatch, "/api/messages/"+id.String()+"/read", nil, nil, &message)
	return message, err
}

// Profiles looks the ids up in batches the backend accepts.
func (c *Client) Profiles(ctx context.Context, ids []string) ([]domain.Profile, error) {
	var profiles []domain.Profile
	for _, batch := range lo.Chunk(lo.Uniq(lo.Compact(ids)), services.MaxProfileBatch) {
		var found []domain.Profile
		if err := c.do(ctx, http.MethodGet, "/api/profiles", url.Values{"id": batch}, nil, &found); err != nil {
			return nil, err
		}
		profiles = append(profiles, found...)
	}
	return profiles, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req services.ProfileRequest) (domain.Profile, error) {
	var profile domain.Profile
	err := c.do(ctx, http.MethodPut, "/api/profiles/me", nil, req, &profile)
	return profile, err
}

// Subscribe opens the realtime websocket. The returned channel is closed when
// ctx ends or the connection drops, the caller resubscribes if it needs to.
func (c *Client) Subscribe(ctx context.Context, types ...event.Type) (<-chan event.ChangeEvent, error) {
	query := url.Values{"token": {c.Token()}}
	if len(types) > 0 {
		query.Set("events", strings.Join(lo.Map(types, func(t event.Type, _ int) string { return string(t) }), ","))
	}
	target := c.websocketURL("/realtime", query)

	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, readError(resp)
		}
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}

	events := make(chan event.ChangeEvent)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var frame event.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				if ctx.Err() == nil {
					c.log.Debug("Realtime connection ended", "error", err)
				}
				return
			}
			e, err := event.FromFrame(frame)
			if err != nil {
				c.log.Debug("Skipping realtime frame", "error", err)
				continue
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (c *Client) websocketURL(path string, query url.Values) string {
	u := *c.baseURL
	u.Scheme = lo.Ternary(u.Scheme == "https", "wss", "ws")
	u.Path += path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return readError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}

func readError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}
