// Package events implements the client side of the raven event stream: one
// reconnecting WebSocket connection multiplexing named channels to sets of
// registered callbacks.
//
// Reconnection is a fixed one-second delay with unbounded retries and no
// jitter or backoff. That matches the platform's single-client scale; do
// not reuse the policy for anything that fans out.
package events

import (
	"context"
	"crypto/tls"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/raven-automation/ravenctl/internal/api"
	"github.com/raven-automation/ravenctl/internal/core"
)

// Control frame commands understood by the server.
const (
	CommandSubscribe   = "subscriptions.add"
	CommandUnsubscribe = "subscriptions.remove"
)

// reconnectDelay is the fixed wait before re-dialing after an unexpected
// close.
const reconnectDelay = time.Second

// ControlMessage is a client-to-server subscription control frame.
type ControlMessage struct {
	Command string   `json:"command"`
	Paths   []string `json:"paths"`
}

// Conn is the subset of a WebSocket connection the manager needs. Tests
// substitute an in-memory implementation.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a new event stream connection.
type Dialer func(ctx context.Context) (Conn, error)

// WebsocketDialer returns the production dialer targeting
// wss://<host>/api/events/ws.
func WebsocketDialer(host string, insecure bool) Dialer {
	return func(ctx context.Context) (Conn, error) {
		dialer := websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		}
		if insecure {
			dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		conn, _, err := dialer.DialContext(ctx, "wss://"+host+"/api/events/ws", nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Registration identifies one callback registration on one channel.
type Registration struct {
	Channel string
	ID      string
}

type callback struct {
	id string
	fn func(core.Event)
}

// Manager owns a single logical event stream connection, multiplexes named
// channels to callback sets, keeps the server's subscription table in sync,
// and auto-reconnects on unexpected closure. Dispatch is strictly
// sequential in receipt order: every callback for one event completes
// before the next frame is read.
type Manager struct {
	mu     sync.Mutex
	dial   Dialer
	logger zerolog.Logger

	subs   map[string][]callback
	conn   Conn
	active bool
	gen    int

	boundSession string
	retryDelay   time.Duration
}

// NewManager creates a manager in the disconnected state.
func NewManager(dial Dialer, logger zerolog.Logger) *Manager {
	return &Manager{
		dial:       dial,
		logger:     logger,
		subs:       make(map[string][]callback),
		retryDelay: reconnectDelay,
	}
}

// Connected reports whether a live connection exists.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Connect marks the manager active and establishes a connection, closing
// any existing socket first. On open, every currently registered channel is
// re-announced to the server, which is what restores subscriptions after a
// reconnect.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.active = true
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.establish(gen)
}

// Disconnect marks the manager inactive, suppressing reconnection, and
// closes the socket. An in-flight reconnect timer becomes a no-op.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.active = false
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()
}

func (m *Manager) establish(gen int) {
	conn, err := m.dial(context.Background())

	m.mu.Lock()
	if gen != m.gen || !m.active {
		// Superseded by a newer Connect or a Disconnect while dialing.
		m.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn().Err(err).Msg("event stream dial failed")
		m.scheduleReconnect(gen)
		return
	}

	m.conn = conn
	m.writeLocked(ControlMessage{Command: CommandSubscribe, Paths: m.channelNamesLocked()})
	m.mu.Unlock()

	m.logger.Debug().Msg("event stream connected")
	go m.readLoop(conn, gen)
}

func (m *Manager) readLoop(conn Conn, gen int) {
	for {
		var event core.Event
		if err := conn.ReadJSON(&event); err != nil {
			break
		}
		m.dispatch(event)
	}

	m.mu.Lock()
	if gen != m.gen || m.conn != conn {
		// A newer connection replaced this one; nothing to clean up.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	active := m.active
	m.mu.Unlock()

	if active {
		m.logger.Warn().Dur("retry_in", m.retryDelay).Msg("event stream closed unexpectedly")
		m.scheduleReconnect(gen)
	}
}

func (m *Manager) scheduleReconnect(gen int) {
	time.AfterFunc(m.retryDelay, func() {
		m.mu.Lock()
		retry := m.active && gen == m.gen
		m.mu.Unlock()
		if retry {
			m.Connect()
		}
	})
}

func (m *Manager) dispatch(event core.Event) {
	for _, channel := range event.Subscribers {
		m.mu.Lock()
		regs := make([]callback, len(m.subs[channel]))
		copy(regs, m.subs[channel])
		m.mu.Unlock()

		// Unknown channels have no registrations and fall through silently.
		for _, reg := range regs {
			reg.fn(event)
		}
	}
}

// Subscribe registers a callback under a channel and returns its
// registration for targeted removal. The first registration on a channel
// announces it to the server when the socket is open.
func (m *Manager) Subscribe(channel string, fn func(core.Event)) Registration {
	reg := Registration{Channel: channel, ID: uuid.NewString()}

	m.mu.Lock()
	first := len(m.subs[channel]) == 0
	m.subs[channel] = append(m.subs[channel], callback{id: reg.ID, fn: fn})
	if first && m.conn != nil {
		m.writeLocked(ControlMessage{Command: CommandSubscribe, Paths: []string{channel}})
	}
	m.mu.Unlock()

	return reg
}

// Unsubscribe removes exactly the named registrations. Channels whose
// registration set becomes empty are dropped from the table and announced
// to the server in one batched control frame.
func (m *Manager) Unsubscribe(regs ...Registration) {
	m.mu.Lock()
	var removed []string
	for _, reg := range regs {
		list, ok := m.subs[reg.Channel]
		if !ok {
			continue
		}
		kept := list[:0]
		for _, cb := range list {
			if cb.id != reg.ID {
				kept = append(kept, cb)
			}
		}
		if len(kept) == 0 {
			delete(m.subs, reg.Channel)
			removed = append(removed, reg.Channel)
		} else {
			m.subs[reg.Channel] = kept
		}
	}
	if len(removed) > 0 && m.conn != nil {
		m.writeLocked(ControlMessage{Command: CommandUnsubscribe, Paths: removed})
	}
	m.mu.Unlock()
}

// BindStore drives the manager from session store transitions: connect when
// a ready, session-bearing snapshot exists, reconnect when the session id
// changes, disconnect otherwise. The current snapshot is applied
// immediately; the returned function detaches the binding.
func (m *Manager) BindStore(store *api.Store) func() {
	apply := func(snap api.Snapshot) {
		if snap.Phase == api.PhaseReady && snap.Auth != nil {
			m.mu.Lock()
			changed := m.boundSession != snap.Auth.Session.ID
			m.boundSession = snap.Auth.Session.ID
			m.mu.Unlock()
			if changed {
				m.Connect()
			}
			return
		}

		m.mu.Lock()
		m.boundSession = ""
		m.mu.Unlock()
		m.Disconnect()
	}

	unsubscribe := store.Subscribe(apply)
	apply(store.Snapshot())
	return unsubscribe
}

// writeLocked sends a control frame on the current connection. Caller holds
// m.mu, which also serializes writers.
func (m *Manager) writeLocked(msg ControlMessage) {
	if msg.Paths == nil {
		msg.Paths = []string{}
	}
	if err := m.conn.WriteJSON(msg); err != nil {
		m.logger.Warn().Err(err).Str("command", msg.Command).Msg("control frame send failed")
	}
}

func (m *Manager) channelNamesLocked() []string {
	names := make([]string, 0, len(m.subs))
	for name := range m.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
