package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/raven-automation/ravenctl/internal/api"
	"github.com/raven-automation/ravenctl/internal/core"
)

type fakeConn struct {
	mu     sync.Mutex
	events chan core.Event
	frames []ControlMessage
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan core.Event, 16)}
}

func (c *fakeConn) ReadJSON(v any) error {
	ev, ok := <-c.events
	if !ok {
		return errors.New("connection closed")
	}
	*(v.(*core.Event)) = ev
	return nil
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, v.(ControlMessage))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

func (c *fakeConn) sentFrames() []ControlMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ControlMessage, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) push(ev core.Event) {
	c.events <- ev
}

// queueDialer hands out queued connections in order and fails once the
// queue is exhausted.
func queueDialer(conns chan Conn, dials *int32) Dialer {
	return func(ctx context.Context) (Conn, error) {
		atomic.AddInt32(dials, 1)
		select {
		case c := <-conns:
			return c, nil
		default:
			return nil, errors.New("no connection available")
		}
	}
}

func newTestManager(conns ...*fakeConn) (*Manager, *int32) {
	queue := make(chan Conn, len(conns))
	for _, c := range conns {
		queue <- c
	}
	var dials int32
	m := NewManager(queueDialer(queue, &dials), zerolog.Nop())
	m.retryDelay = 5 * time.Millisecond
	return m, &dials
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testEvent(channel string, subscribers ...string) core.Event {
	return core.Event{
		ID:          "ev-1",
		Source:      "test",
		Type:        "test.event",
		Channel:     core.EventChannel(channel),
		Data:        []byte(`{}`),
		Subscribers: subscribers,
	}
}

func TestConnectAnnouncesRegisteredChannels(t *testing.T) {
	conn := newFakeConn()
	m, _ := newTestManager(conn)

	m.Subscribe("global", func(core.Event) {})
	m.Subscribe("alerts", func(core.Event) {})
	m.Connect()
	defer m.Disconnect()

	frames := conn.sentFrames()
	if len(frames) != 1 {
		t.Fatalf("got %d control frames, want 1", len(frames))
	}
	if frames[0].Command != CommandSubscribe {
		t.Errorf("command = %q, want %q", frames[0].Command, CommandSubscribe)
	}
	if len(frames[0].Paths) != 2 || frames[0].Paths[0] != "alerts" || frames[0].Paths[1] != "global" {
		t.Errorf("paths = %v, want [alerts global]", frames[0].Paths)
	}
}

func TestSubscribeAnnouncesFirstRegistrationOnly(t *testing.T) {
	conn := newFakeConn()
	m, _ := newTestManager(conn)

	m.Connect()
	defer m.Disconnect()

	m.Subscribe("global", func(core.Event) {})
	m.Subscribe("global", func(core.Event) {})

	frames := conn.sentFrames()
	// Frame 0 is the empty announce from Connect.
	if len(frames) != 2 {
		t.Fatalf("got %d control frames, want 2", len(frames))
	}
	if len(frames[1].Paths) != 1 || frames[1].Paths[0] != "global" {
		t.Errorf("announce paths = %v, want [global]", frames[1].Paths)
	}
}

func TestDispatchBySubscribers(t *testing.T) {
	conn := newFakeConn()
	m, _ := newTestManager(conn)

	var mu sync.Mutex
	counts := map[string]int{}
	record := func(name string) func(core.Event) {
		return func(core.Event) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		}
	}

	m.Subscribe("global", record("global"))
	m.Subscribe("session", record("session"))
	m.Connect()
	defer m.Disconnect()

	conn.push(testEvent("global", "global"))

	waitUntil(t, "global callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts["global"] == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if counts["session"] != 0 {
		t.Errorf("session callback fired %d times, want 0", counts["session"])
	}
}

func TestDispatchInRegistrationOrder(t *testing.T) {
	conn := newFakeConn()
	m, _ := newTestManager(conn)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		m.Subscribe("global", func(core.Event) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		})
	}

	m.Connect()
	defer m.Disconnect()
	conn.push(testEvent("global", "global"))

	waitUntil(t, "all callbacks", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(order) != "[first second third]" {
		t.Errorf("dispatch order = %v, want [first second third]", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	conn := newFakeConn()
	m, _ := newTestManager(conn)

	var mu sync.Mutex
	counts := map[string]int{}
	record := func(name string) func(core.Event) {
		return func(core.Event) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		}
	}

	g1 := m.Subscribe("global", record("g1"))
	m.Subscribe("global", record("g2"))
	s1 := m.Subscribe("session", record("s1"))

	m.Connect()
	defer m.Disconnect()

	m.Unsubscribe(g1, s1)

	// Only the emptied channel is announced, in one batched frame.
	var removes []ControlMessage
	for _, f := range conn.sentFrames() {
		if f.Command == CommandUnsubscribe {
			removes = append(removes, f)
		}
	}
	if len(removes) != 1 {
		t.Fatalf("got %d remove frames, want 1", len(removes))
	}
	if len(removes[0].Paths) != 1 || removes[0].Paths[0] != "session" {
		t.Errorf("remove paths = %v, want [session]", removes[0].Paths)
	}

	conn.push(testEvent("global", "global"))
	waitUntil(t, "surviving callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts["g2"] == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if counts["g1"] != 0 {
		t.Errorf("removed callback fired %d times, want 0", counts["g1"])
	}
}

func TestReconnectRestoresSubscriptions(t *testing.T) {
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	m, dials := newTestManager(conn1, conn2)

	m.Subscribe("global", func(core.Event) {})
	m.Connect()
	defer m.Disconnect()

	// Server-side closure: the read loop errors out and the manager
	// re-dials after the fixed delay.
	conn1.Close()

	waitUntil(t, "resubscribe on new connection", func() bool {
		frames := conn2.sentFrames()
		return len(frames) == 1 && frames[0].Command == CommandSubscribe
	})

	frames := conn2.sentFrames()
	if len(frames[0].Paths) != 1 || frames[0].Paths[0] != "global" {
		t.Errorf("resubscribe paths = %v, want [global]", frames[0].Paths)
	}
	if got := atomic.LoadInt32(dials); got != 2 {
		t.Errorf("dial count = %d, want 2", got)
	}
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	conn := newFakeConn()
	m, dials := newTestManager(conn)

	m.Connect()
	m.Disconnect()

	time.Sleep(30 * time.Millisecond)

	if got := atomic.LoadInt32(dials); got != 1 {
		t.Errorf("dial count = %d after disconnect, want 1", got)
	}
	if m.Connected() {
		t.Error("manager reports connected after Disconnect")
	}
}

func TestConnectReplacesExistingConnection(t *testing.T) {
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	m, dials := newTestManager(conn1, conn2)

	m.Connect()
	m.Connect()
	defer m.Disconnect()

	conn1.mu.Lock()
	closed := conn1.closed
	conn1.mu.Unlock()
	if !closed {
		t.Error("previous connection not closed on reconnect")
	}
	if got := atomic.LoadInt32(dials); got != 2 {
		t.Errorf("dial count = %d, want 2", got)
	}
}

func TestBindStore(t *testing.T) {
	sessionID := "sess-1"
	failing := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"session":{"id":%q,"last_request":"2026-01-01T00:00:00Z","user_id":null},"user":null}`, sessionID)
	}))
	defer srv.Close()

	transport, err := api.NewTransportURL(srv.URL, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTransportURL: %v", err)
	}
	store := api.NewStore(transport, zerolog.Nop())
	store.Bootstrap(context.Background())

	conns := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	m, dials := newTestManager(conns...)

	unbind := m.BindStore(store)
	defer unbind()
	defer m.Disconnect()

	if got := atomic.LoadInt32(dials); got != 1 {
		t.Fatalf("dial count = %d after binding a ready store, want 1", got)
	}

	// Same session: no reconnect.
	store.Reload(context.Background())
	if got := atomic.LoadInt32(dials); got != 1 {
		t.Errorf("dial count = %d after same-session reload, want 1", got)
	}

	// New session: reconnect.
	sessionID = "sess-2"
	store.Reload(context.Background())
	if got := atomic.LoadInt32(dials); got != 2 {
		t.Errorf("dial count = %d after session change, want 2", got)
	}

	// Store failure: disconnect and stay down.
	failing = true
	store.Reload(context.Background())
	if m.Connected() {
		t.Error("manager still connected after the store lost its session")
	}
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(dials); got != 2 {
		t.Errorf("dial count = %d after store failure, want 2", got)
	}
}
