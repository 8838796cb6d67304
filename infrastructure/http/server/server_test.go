package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"estate-chat/domain"
	"estate-chat/domain/event"
	"estate-chat/internal"
	"estate-chat/internal/app"
	"estate-chat/services"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const password = "ComplexPass123!"

func testConfig(t *testing.T) internal.Config {
	return internal.Config{
		LogLevel:             "DEBUG",
		StorageDriver:        internal.StorageBadger,
		BadgerFilepath:       t.TempDir(),
		BlugeFilepath:        t.TempDir(),
		JwtSecret:            "server-test-secret-server-test-secret",
		AuthTokenDuration:    time.Hour,
		BufferSize:           100,
		ConnectionBufferSize: 10,
		SinkTimeout:          time.Second,
		RestartInterval:      50 * time.Millisecond,
		MetricInterval:       50 * time.Millisecond,
		RealtimePingInterval: time.Second,
		MaxContentLength:     200,
		CharReplacement:      "*",
		SearchLimit:          20,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	ctx, cancel := context.WithCancel(context.Background())
	a, err := app.New(ctx, testConfig(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	a.Start(ctx)
	srv := httptest.NewServer(a.Handler)
	t.Cleanup(func() {
		a.Stop()
		srv.Close()
		cancel()
		_ = a.Close()
	})
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body, out any) int {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func register(t *testing.T, srv *httptest.Server, email, name string) services.Session {
	var session services.Session
	status := call(t, srv, http.MethodPost, "/auth/register", "",
		map[string]string{"email": email, "password": password, "name": name}, &session)
	require.Equal(t, http.StatusCreated, status)
	return session
}

func TestServer_Auth(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	alice := register(t, srv, "alice@example.com", "Alice")
	req.NotEmpty(alice.Token)

	status := call(t, srv, http.MethodPost, "/auth/register", "",
		map[string]string{"email": "ALICE@example.com", "password": password}, nil)
	req.Equal(http.StatusConflict, status)

	var session services.Session
	status = call(t, srv, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "alice@example.com", "password": password}, &session)
	req.Equal(http.StatusOK, status)
	req.Equal(alice.UserID, session.UserID)

	status = call(t, srv, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "alice@example.com", "password": "WrongPass123!"}, nil)
	req.Equal(http.StatusUnauthorized, status)

	var current struct {
		UserID string `json:"user_id"`
	}
	req.Equal(http.StatusOK, call(t, srv, http.MethodGet, "/auth/session", session.Token, nil, &current))
	req.Equal(alice.UserID, current.UserID)

	req.Equal(http.StatusUnauthorized, call(t, srv, http.MethodGet, "/auth/session", "", nil, nil))
	req.Equal(http.StatusUnauthorized, call(t, srv, http.MethodGet, "/api/messages/inbox", "garbage", nil, nil))
}

func TestServer_Messages(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	alice := register(t, srv, "alice@example.com", "Alice")
	bob := register(t, srv, "bob@example.com", "Bob")
	carol := register(t, srv, "carol@example.com", "Carol")

	var first, second, other domain.Message
	req.Equal(http.StatusCreated, call(t, srv, http.MethodPost, "/api/messages", alice.Token,
		map[string]string{"recipient_id": bob.UserID, "content": "  Is the flat available?  "}, &first))
	req.Equal(http.StatusCreated, call(t, srv, http.MethodPost, "/api/messages", bob.Token,
		map[string]string{"recipient_id": alice.UserID, "content": "Yes it is"}, &second))
	req.Equal(http.StatusCreated, call(t, srv, http.MethodPost, "/api/messages", carol.Token,
		map[string]string{"recipient_id": bob.UserID, "content": "Hello Bob"}, &other))
	req.Equal("Is the flat available?", first.Content)
	req.Equal(alice.UserID, first.SenderID)

	req.Equal(http.StatusBadRequest, call(t, srv, http.MethodPost, "/api/messages", alice.Token,
		map[string]string{"recipient_id": bob.UserID, "content": "   "}, nil))
	req.Equal(http.StatusBadRequest, call(t, srv, http.MethodPost, "/api/messages", alice.Token,
		map[string]string{"content": "hi"}, nil))
	req.Equal(http.StatusBadRequest, call(t, srv, http.MethodPost, "/api/messages", alice.Token,
		map[string]string{"recipient_id": bob.UserID, "content": strings.Repeat("x", 201)}, nil))
	req.Equal(http.StatusBadRequest, call(t, srv, http.MethodPost, "/api/messages", alice.Token,
		map[string]string{"recipient_id": bob.UserID + ":x", "content": "hi"}, nil))

	var thread []domain.Message
	req.Equal(http.StatusOK, call(t, srv, http.MethodGet, "/api/messages/thread/"+bob.UserID, alice.Token, nil, &thread))
	req.Len(thread, 2)
	req.Equal([]uuid.UUID{first.ID, second.ID}, []uuid.UUID{thread[0].ID, thread[1].ID})

	var inbox []domain.Message
	req.Equal(http.StatusOK, call(t, srv, http.MethodGet, "/api/messages/inbox", bob.Token, nil, &inbox))
	req.Len(inbox, 3)
	req.Equal(other.ID, inbox[0].ID)

	// Only the recipient may mark a message read
	req.Equal(http.StatusForbidden, call(t, srv, http.MethodPatch,
		"/api/messages/"+first.ID.String()+"/read", alice.Token, nil, nil))
	req.Equal(http.StatusBadRequest, call(t, srv, http.MethodPatch,
		"/api/messages/not-a-uuid/read", bob.Token, nil, nil))

	var read domain.Message
	req.Equal(http.StatusOK, call(t, srv, http.MethodPatch,
		"/api/messages/"+first.ID.String()+"/read", bob.Token, nil, &read))
	req.NotNil(read.ReadAt)

	var ids struct {
		IDs []uuid.UUID `json:"ids"`
	}
	req.Equal(http.StatusOK, call(t, srv, http.MethodPost, "/api/messages/read", bob.Token,
		map[string]string{"sender_id": carol.UserID}, &ids))
	req.Equal([]uuid.UUID{other.ID}, ids.IDs)
	req.Equal(http.StatusOK, call(t, srv, http.MethodPost, "/api/messages/read", bob.Token,
		map[string]string{"sender_id": carol.UserID}, &ids))
	req.Empty(ids.IDs)

	req.Eventually(func() bool {
		var found []domain.Message
		status := call(t, srv, http.MethodGet, "/api/messages/search?q=flat", bob.Token, nil, &found)
		return status == http.StatusOK && len(found) == 1 && found[0].ID == first.ID
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServer_Profiles(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	alice := register(t, srv, "alice@example.com", "Alice")
	bob := register(t, srv, "bob@example.com", "")

	var profile domain.Profile
	req.Equal(http.StatusOK, call(t, srv, http.MethodPut, "/api/profiles/me", bob.Token,
		map[string]string{"name": "Bob", "avatar_url": "https://cdn.example.com/bob.png"}, &profile))
	req.Equal("Bob", *profile.Name)

	req.Equal(http.StatusBadRequest, call(t, srv, http.MethodPut, "/api/profiles/me", bob.Token,
		map[string]string{"avatar_url": "nope"}, nil))

	var profiles []domain.Profile
	req.Equal(http.StatusOK, call(t, srv, http.MethodGet,
		"/api/profiles?id="+alice.UserID+"&id="+bob.UserID+"&id=unknown", alice.Token, nil, &profiles))
	req.Len(profiles, 2)
}

func TestServer_Realtime(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	alice := register(t, srv, "alice@example.com", "Alice")
	bob := register(t, srv, "bob@example.com", "Bob")
	carol := register(t, srv, "carol@example.com", "Carol")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=bad", nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?events=INSERT&token="+bob.Token, nil)
	req.NoError(err)
	defer conn.Close()

	// Wait for the registration before sending
	var stats struct {
		ActiveConnections int `json:"active_connections"`
	}
	req.Eventually(func() bool {
		call(t, srv, http.MethodGet, "/debug/stats", "", nil, &stats)
		return stats.ActiveConnections == 1
	}, 2*time.Second, 20*time.Millisecond)

	// Not a participant, bob never sees it
	call(t, srv, http.MethodPost, "/api/messages", carol.Token,
		map[string]string{"recipient_id": alice.UserID, "content": "Private"}, nil)
	var sent domain.Message
	call(t, srv, http.MethodPost, "/api/messages", alice.Token,
		map[string]string{"recipient_id": bob.UserID, "content": "Visit on Monday?"}, &sent)

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var frame event.Frame
	req.NoError(conn.ReadJSON(&frame))
	req.Equal(event.MessagesTable, frame.Table)
	req.Equal(event.Insert, frame.Type)
	req.Equal(sent.ID, frame.Record.ID)
	req.Empty(frame.Origin)

	// UPDATE was not subscribed, the next frame is the following INSERT
	call(t, srv, http.MethodPatch, "/api/messages/"+sent.ID.String()+"/read", bob.Token, nil, nil)
	var reply domain.Message
	call(t, srv, http.MethodPost, "/api/messages", bob.Token,
		map[string]string{"recipient_id": alice.UserID, "content": "Yes"}, &reply)
	req.NoError(conn.ReadJSON(&frame))
	req.Equal(event.Insert, frame.Type)
	req.Equal(reply.ID, frame.Record.ID)
}
