package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/putto11262002/gymchat/core"
	"github.com/stretchr/testify/require"
)

type APIFixture struct {
	t      *testing.T
	app    *App
	server *httptest.Server
	ctx    context.Context
}

func NewAPIFixture(t *testing.T, configure ...func(*Config)) *APIFixture {
	config, err := (&DefaultConfigLoader{}).Load()
	require.NoError(t, err)
	config.Admins = []string{"admin"}
	config.RateLimit.MessagesPerSecond = 1000
	config.RateLimit.Burst = 1000
	for _, f := range configure {
		f(config)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app, err := New(ctx, config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	server := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		server.Close()
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		app.Shutdown(shutdownCtx)
	})

	return &APIFixture{t: t, app: app, server: server, ctx: ctx}
}

// do sends a JSON request and decodes a JSON response into out when out is not nil.
func (f *APIFixture) do(method, path, token string, body any, out any) *http.Response {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.server.URL+path, r)
	require.NoError(f.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 {
		require.NoError(f.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

// signup registers the user and signs them in.
func (f *APIFixture) signup(username string) (id, token string) {
	f.t.Helper()
	var created CreateUserResponse
	res := f.do(http.MethodPost, "/api/users", "", core.User{
		Username:    username,
		Password:    "password",
		DisplayName: strings.ToUpper(username[:1]) + username[1:],
	}, &created)
	require.Equal(f.t, http.StatusCreated, res.StatusCode)

	var session core.Session
	res = f.do(http.MethodPost, "/api/auth/signin", "", SigninPayload{
		Username: username, Password: "password",
	}, &session)
	require.Equal(f.t, http.StatusOK, res.StatusCode)
	return created.ID, session.Token
}

func (f *APIFixture) createRoom(adminToken, name string) string {
	f.t.Helper()
	var room CreateRoomResponse
	res := f.do(http.MethodPost, "/api/rooms", adminToken, CreateRoomPayload{Name: name}, &room)
	require.Equal(f.t, http.StatusCreated, res.StatusCode)
	return room.ID
}

func (f *APIFixture) join(token, roomID string) {
	f.t.Helper()
	res := f.do(http.MethodPost, "/api/rooms/"+roomID+"/members", token, nil, nil)
	require.Equal(f.t, http.StatusNoContent, res.StatusCode)
}

func (f *APIFixture) send(token, roomID, body string) string {
	f.t.Helper()
	var sent SendMessageResponse
	res := f.do(http.MethodPost, "/api/rooms/"+roomID+"/messages", token, SendMessagePayload{Body: body}, &sent)
	require.Equal(f.t, http.StatusCreated, res.StatusCode)
	return sent.ID
}

func (f *APIFixture) dialFeed(token, roomID string) (*websocket.Conn, *http.Response, error) {
	url := strings.Replace(f.server.URL, "http://", "ws://", 1) + "/ws?room=" + roomID
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, res, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		f.t.Cleanup(func() { conn.Close() })
	}
	return conn, res, err
}
