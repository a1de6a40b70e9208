package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/putto11262002/gymchat/pkg/roomsync"
)

const (
	// feedReadWait must exceed the server ping period.
	feedReadWait = 70 * time.Second
	writeWait    = 10 * time.Second
	feedBuffer   = 64
)

// ErrFeedClosed is the reason of a subscription the server ended.
var ErrFeedClosed = errors.New("change feed closed by server")

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Subscribe opens the change feed of roomID. The signed in user must be a
// member of the room.
func (c *Client) Subscribe(ctx context.Context, roomID string) (roomsync.Subscription, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.baseURL.Path + "/ws"
	u.RawQuery = url.Values{"room": {roomID}}.Encode()

	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, res, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if res != nil && res.StatusCode >= 300 {
			defer res.Body.Close()
			return nil, roomError(newAPIError(res))
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	sub := &feedSubscription{
		conn:   conn,
		events: make(chan roomsync.Notification, feedBuffer),
		done:   make(chan struct{}),
		logger: c.logger.With("room", roomID),
	}
	go sub.readLoop()
	return sub, nil
}

type feedSubscription struct {
	conn   *websocket.Conn
	events chan roomsync.Notification
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
	closed    bool
}

func (s *feedSubscription) Events() <-chan roomsync.Notification { return s.events }

func (s *feedSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *feedSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)

		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = s.conn.Close()
	})
	return err
}

func (s *feedSubscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.err == nil {
		s.err = err
	}
}

func (s *feedSubscription) readLoop() {
	defer close(s.events)

	s.conn.SetReadDeadline(time.Now().Add(feedReadWait))
	s.conn.SetPingHandler(func(data string) error {
		s.conn.SetReadDeadline(time.Now().Add(feedReadWait))
		err := s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				s.fail(ErrFeedClosed)
			} else {
				s.fail(fmt.Errorf("read feed: %w", err))
			}
			s.conn.Close()
			return
		}

		var f frame
		if err := json.Unmarshal(b, &f); err != nil || f.Type != "change" {
			s.logger.Warn("skipping malformed feed frame", "type", f.Type)
			continue
		}
		var n roomsync.Notification
		if err := json.Unmarshal(f.Payload, &n); err != nil {
			s.logger.Warn("skipping malformed notification", "error", err)
			continue
		}

		select {
		case s.events <- n:
		case <-s.done:
			return
		}
	}
}
