// Package client talks to a gymchat server over HTTP and the websocket
// change feed. A Client provides every backend interface a room session
// needs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/putto11262002/gymchat/pkg/roomsync"
)

// profileBatch is the largest id list sent in one profile request.
const profileBatch = 100

type Client struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
	actor roomsync.Actor
}

var (
	_ roomsync.SnapshotQuery = (*Client)(nil)
	_ roomsync.ChangeFeed    = (*Client)(nil)
	_ roomsync.WriteAPI      = (*Client)(nil)
	_ roomsync.Authenticator = (*Client)(nil)
	_ roomsync.ReadMarker    = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithToken signs the client in with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx answer of the server.
type APIError struct {
	StatusCode int
	Message    string
	err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gymchat: %d %s", e.StatusCode, e.Message)
}

// Unwrap returns roomsync.ErrUnauthenticated for 401, roomsync.ErrRejected
// for other client errors and nil for server errors.
func (e *APIError) Unwrap() error { return e.err }

func newAPIError(res *http.Response) *APIError {
	var body struct {
		Err string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	if err := json.Unmarshal(b, &body); err != nil || body.Err == "" {
		body.Err = strings.TrimSpace(string(b))
	}
	if body.Err == "" {
		body.Err = http.StatusText(res.StatusCode)
	}

	e := &APIError{StatusCode: res.StatusCode, Message: body.Err}
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		e.err = roomsync.ErrUnauthenticated
	case res.StatusCode >= 400 && res.StatusCode < 500:
		e.err = roomsync.ErrRejected
	}
	return e
}

// roomError reports a 404 of a room endpoint as roomsync.ErrRoomNotFound.
func roomError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		apiErr.err = roomsync.ErrRoomNotFound
	}
	return err
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

// do sends in as JSON and decodes the response into out when out is not nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return newAPIError(res)
	}
	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
