package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// CloseSlowConsumer is the close code sent to a connection whose buffer overflowed.
const CloseSlowConsumer = websocket.CloseTryAgainLater

type ConnIDGenerator interface {
	Generate(r *http.Request, conn *websocket.Conn) (int, error)
}

type AutoIncrementConnIDGenerator struct {
	counter int64
	mu      sync.Mutex
}

func (g *AutoIncrementConnIDGenerator) Generate(_ *http.Request, _ *websocket.Conn) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return int(g.counter), nil
}

// ErrManagerClosed is returned by Connect once Shutdown has started.
var ErrManagerClosed = errors.New("connection manager closed")

// ConnManager holds the change feed connections, grouped by room.
type ConnManager struct {
	conns   map[string]map[int]*Conn
	mu      sync.RWMutex
	closed  bool
	connWg  *sync.WaitGroup
	context context.Context
	logger  *slog.Logger
	idGen   ConnIDGenerator

	onConnectionOpened func(roomID string, id int)
	onConnectionClosed func(roomID string, id int)
	onSlowConsumer     func(roomID string, id int)

	upgrader        websocket.Upgrader
	WriteStreamSize int
}

var defaultUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ManagerOption func(*ConnManager)

func WithCheckOrigin(f func(r *http.Request) bool) ManagerOption {
	return func(m *ConnManager) {
		m.upgrader.CheckOrigin = f
	}
}

func WithWriteStreamSize(n int) ManagerOption {
	return func(m *ConnManager) {
		if n > 0 {
			m.WriteStreamSize = n
		}
	}
}

func WithConnIDGenerator(g ConnIDGenerator) ManagerOption {
	return func(m *ConnManager) {
		m.idGen = g
	}
}

func NewConnManager(context context.Context, wg *sync.WaitGroup, logger *slog.Logger, opts ...ManagerOption) *ConnManager {
	m := &ConnManager{
		connWg:             wg,
		conns:              make(map[string]map[int]*Conn),
		logger:             logger,
		context:            context,
		upgrader:           defaultUpgrader,
		idGen:              &AutoIncrementConnIDGenerator{},
		WriteStreamSize:    100,
		onConnectionOpened: func(string, int) {},
		onConnectionClosed: func(string, int) {},
		onSlowConsumer:     func(string, int) {},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *ConnManager) OnConnectionOpened(f func(string, int)) {
	m.onConnectionOpened = f
}

func (m *ConnManager) OnConnectionClosed(f func(string, int)) {
	m.onConnectionClosed = f
}

func (m *ConnManager) OnSlowConsumer(f func(string, int)) {
	m.onSlowConsumer = f
}

// Subscribers returns the number of open connections to the room.
func (m *ConnManager) Subscribers(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns[roomID])
}

func (m *ConnManager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Connect upgrades the request and subscribes the connection to the room.
// After Shutdown it answers 503 and returns ErrManagerClosed.
func (m *ConnManager) Connect(roomID, userID string, w http.ResponseWriter, r *http.Request) error {
	if m.isClosed() {
		http.Error(w, ErrManagerClosed.Error(), http.StatusServiceUnavailable)
		return ErrManagerClosed
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	id, err := m.idGen.Generate(r, conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("generating connection id: %w", err)
	}

	wsConn := &Conn{
		roomID:      roomID,
		userID:      userID,
		id:          id,
		conn:        conn,
		context:     m.context,
		writeStream: make(chan *Event, m.WriteStreamSize),
		ticker:      time.NewTicker(pingPeriod),
		logger: m.logger.With(slog.String("room", roomID),
			slog.String("user", userID), slog.Int("connection", id)),
		notifyDisconnect: func() {
			m.disconnect(roomID, id, websocket.CloseNormalClosure, "")
		},
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		wsConn.ticker.Stop()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return ErrManagerClosed
	}
	conns, ok := m.conns[roomID]
	if !ok {
		conns = make(map[int]*Conn)
		m.conns[roomID] = conns
	}
	conns[id] = wsConn
	// added under the lock so Shutdown cannot start waiting in between
	m.connWg.Add(2)
	m.mu.Unlock()

	go func() {
		defer m.connWg.Done()
		wsConn.readLoop()
	}()
	go func() {
		defer m.connWg.Done()
		wsConn.writeLoop()
	}()

	m.onConnectionOpened(roomID, id)
	return nil
}

// disconnect removes the connection and closes its write stream.
// It is a no-op when the connection is already gone.
func (m *ConnManager) disconnect(roomID string, id int, code int, reason string) {
	m.mu.Lock()
	conn, ok := m.conns[roomID][id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns[roomID], id)
	if len(m.conns[roomID]) == 0 {
		delete(m.conns, roomID)
	}
	conn.close(code, reason)
	m.mu.Unlock()

	m.onConnectionClosed(roomID, id)
}

// Publish sends e to every connection of the room without blocking.
// A connection whose buffer is full is disconnected; its client sees the
// subscription drop and reloads.
func (m *ConnManager) Publish(roomID string, e *Event) {
	var slow []int

	m.mu.RLock()
	for id, conn := range m.conns[roomID] {
		select {
		case conn.writeStream <- e:
		default:
			slow = append(slow, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range slow {
		m.logger.Warn("disconnecting slow consumer", slog.String("room", roomID), slog.Int("connection", id))
		m.onSlowConsumer(roomID, id)
		m.disconnect(roomID, id, CloseSlowConsumer, "slow consumer")
	}
}

// Shutdown refuses new connections, closes every open one and waits for
// their loops to exit.
func (m *ConnManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	type key struct {
		room string
		id   int
	}
	var all []key
	for room, conns := range m.conns {
		for id := range conns {
			all = append(all, key{room, id})
		}
	}
	m.mu.Unlock()

	for _, k := range all {
		m.disconnect(k.room, k.id, websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		m.connWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
