package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-vtt/internal/auth"
	"github.com/pixil98/go-vtt/internal/game"
	"github.com/pixil98/go-vtt/internal/messaging"
	"github.com/pixil98/go-vtt/internal/session"
	"github.com/pixil98/go-vtt/internal/storage"
)

type mapStorer[T storage.ValidatingSpec] map[storage.Identifier]T

func (m mapStorer[T]) Get(id storage.Identifier) T {
	return m[id]
}

func (m mapStorer[T]) GetAll() map[storage.Identifier]T {
	return m
}

type dispatchedEvent struct {
	connId string
	event  string
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []dispatchedEvent
	snapshots  []string
	fail       bool
}

func (d *fakeDispatcher) Dispatch(_ context.Context, connId, event string, _ json.RawMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, dispatchedEvent{connId: connId, event: event})
	if d.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func (d *fakeDispatcher) SendJoinSnapshot(connId string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshots = append(d.snapshots, connId)
	return nil
}

func (d *fakeDispatcher) events() []dispatchedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchedEvent(nil), d.dispatched...)
}

type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]func([]byte)
	unsubbed int
}

func (s *fakeSubscriber) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = map[string]func([]byte){}
	}
	s.handlers[subject] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubbed++
	}, nil
}

func (s *fakeSubscriber) handlerFor(subject string) func([]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers[subject]
}

var gatewayTestKey = []byte("0123456789abcdef0123456789abcdef")

type gatewayFixture struct {
	tokens     *auth.Tokens
	registry   *session.Registry
	dispatcher *fakeDispatcher
	subscriber *fakeSubscriber
	srv        *httptest.Server
}

func newGatewayFixture(t *testing.T, opts ...session.RegistryOpt) *gatewayFixture {
	t.Helper()

	f := &gatewayFixture{
		tokens:     auth.NewTokens(gatewayTestKey, time.Hour),
		registry:   session.NewRegistry(opts...),
		dispatcher: &fakeDispatcher{},
		subscriber: &fakeSubscriber{},
	}

	rooms := mapStorer[*game.Room]{
		"room-1": &game.Room{Name: "Big Game", Creator: "alice"},
	}
	locations := mapStorer[*game.Location]{
		"loc-1": &game.Location{Name: "Keep", RoomId: "room-1"},
	}
	players := mapStorer[*game.Player]{
		"alice": &game.Player{Name: "Alice"},
		"bob":   &game.Player{Name: "Bob"},
	}

	handler := NewHandler(f.tokens, f.registry, f.dispatcher, f.subscriber, rooms, locations, players)
	f.srv = httptest.NewServer(handler)
	t.Cleanup(f.srv.Close)

	return f
}

func (f *gatewayFixture) wsURL(token string) string {
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func (f *gatewayFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServeHTTPRejectsBadRequests(t *testing.T) {
	f := newGatewayFixture(t)

	badRoom, err := f.tokens.Generate("alice", game.RoleDirector, "room-9", "loc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	badLocation, err := f.tokens.Generate("alice", game.RoleDirector, "room-1", "loc-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	badPlayer, err := f.tokens.Generate("mallory", game.RoleDirector, "room-1", "loc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string]struct {
		token   string
		expCode int
	}{
		"missing token":    {token: "", expCode: http.StatusBadRequest},
		"garbage token":    {token: "garbage", expCode: http.StatusForbidden},
		"unknown room":     {token: badRoom, expCode: http.StatusForbidden},
		"unknown location": {token: badLocation, expCode: http.StatusForbidden},
		"unknown player":   {token: badPlayer, expCode: http.StatusForbidden},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			url := f.srv.URL + "/ws"
			if tt.token != "" {
				url += "?token=" + tt.token
			}

			resp, err := http.Get(url)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer resp.Body.Close()

			testutil.AssertEqual(t, "status", resp.StatusCode, tt.expCode)
			testutil.AssertEqual(t, "registered sessions", f.registry.Count(), 0)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newGatewayFixture(t)

	token, err := f.tokens.Generate("alice", game.RoleDirector, "room-1", "loc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn := f.dial(t, token)

	waitFor(t, "session registration", func() bool { return f.registry.Count() == 1 })

	// The registered context carries the claims and the creator flag.
	entries := f.registry.Enumerate(func(*session.Context) bool { return true })
	sc := entries[0].Context
	testutil.AssertEqual(t, "player", sc.Player.Name, "Alice")
	testutil.AssertEqual(t, "role", sc.Role, game.RoleDirector)
	testutil.AssertEqual(t, "room", sc.RoomId, storage.Identifier("room-1"))
	testutil.AssertEqual(t, "location", sc.LocationId, storage.Identifier("loc-1"))
	testutil.AssertEqual(t, "creator", sc.Creator, true)

	// The join snapshot was requested for this connection.
	waitFor(t, "join snapshot", func() bool {
		f.dispatcher.mu.Lock()
		defer f.dispatcher.mu.Unlock()
		return len(f.dispatcher.snapshots) == 1 && f.dispatcher.snapshots[0] == sc.ConnId
	})

	// Inbound frames are dispatched under the connection id.
	frame, err := json.Marshal(&messaging.Envelope{Event: "Floor.Create", Data: json.RawMessage(`{"name":"Dungeon"}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "dispatch", func() bool {
		evs := f.dispatcher.events()
		return len(evs) == 1 && evs[0].connId == sc.ConnId && evs[0].event == "Floor.Create"
	})

	// Published subject traffic is pumped to the socket.
	handler := f.subscriber.handlerFor(messaging.ClientSubject(sc.ConnId))
	if handler == nil {
		t.Fatal("no subscription for the connection subject")
	}
	handler([]byte(`{"event":"Floor.Remove","data":"\"Dungeon\""}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var env messaging.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "pumped event", env.Event, "Floor.Remove")

	// Closing the socket tears the session down.
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, "session removal", func() bool { return f.registry.Count() == 0 })
	waitFor(t, "unsubscribe", func() bool {
		f.subscriber.mu.Lock()
		defer f.subscriber.mu.Unlock()
		return f.subscriber.unsubbed == 1
	})
}

func TestDispatchErrorKeepsConnection(t *testing.T) {
	f := newGatewayFixture(t)
	f.dispatcher.fail = true

	token, err := f.tokens.Generate("bob", game.RoleParticipant, "room-1", "loc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn := f.dial(t, token)
	waitFor(t, "session registration", func() bool { return f.registry.Count() == 1 })

	frame, err := json.Marshal(&messaging.Envelope{Event: "Floor.Remove", Data: json.RawMessage(`"Dungeon"`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two failing events in a row; the connection survives both and no
	// error frame comes back.
	for i := 0; i < 2; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	waitFor(t, "dispatches", func() bool { return len(f.dispatcher.events()) == 2 })

	testutil.AssertEqual(t, "registered sessions", f.registry.Count(), 1)
}

func TestIdleExpiryClosesConnection(t *testing.T) {
	f := newGatewayFixture(t, session.WithIdleTimeout(10*time.Millisecond))

	token, err := f.tokens.Generate("bob", game.RoleParticipant, "room-1", "loc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn := f.dial(t, token)
	waitFor(t, "session registration", func() bool { return f.registry.Count() == 1 })

	// Let the session go idle past the timeout, then run the sweep.
	time.Sleep(25 * time.Millisecond)
	if err := f.registry.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "registered sessions", f.registry.Count(), 0)

	// The socket dies with the session; a client cannot linger connected
	// without a session context behind it.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after expiry closed the connection")
	}

	waitFor(t, "unsubscribe", func() bool {
		f.subscriber.mu.Lock()
		defer f.subscriber.mu.Unlock()
		return f.subscriber.unsubbed == 1
	})
}

func TestMalformedFrameIgnored(t *testing.T) {
	f := newGatewayFixture(t)

	token, err := f.tokens.Generate("bob", game.RoleParticipant, "room-1", "loc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn := f.dial(t, token)
	waitFor(t, "session registration", func() bool { return f.registry.Count() == 1 })

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A well-formed frame afterwards still goes through.
	frame, err := json.Marshal(&messaging.Envelope{Event: "Floor.Remove", Data: json.RawMessage(`"Dungeon"`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, "dispatch", func() bool { return len(f.dispatcher.events()) == 1 })
}
