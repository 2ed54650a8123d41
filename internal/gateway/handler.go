package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pixil98/go-vtt/internal/auth"
	"github.com/pixil98/go-vtt/internal/game"
	"github.com/pixil98/go-vtt/internal/messaging"
	"github.com/pixil98/go-vtt/internal/session"
	"github.com/pixil98/go-vtt/internal/storage"
)

// outboundBuffer bounds the per-connection delivery queue. Frames beyond it
// are dropped; delivery is best-effort.
const outboundBuffer = 64

// Dispatcher routes one inbound event for a connection.
type Dispatcher interface {
	Dispatch(ctx context.Context, connId string, event string, data json.RawMessage) error
	SendJoinSnapshot(connId string) error
}

// Subscriber creates subject subscriptions for connection delivery.
type Subscriber interface {
	Subscribe(subject string, handler func(data []byte)) (func(), error)
}

// Handler upgrades websocket connections, authenticates their join token,
// binds them to a session and pumps frames in both directions. It owns the
// registry's registration lifecycle; everything downstream only reads it.
type Handler struct {
	upgrader   websocket.Upgrader
	tokens     *auth.Tokens
	registry   *session.Registry
	dispatcher Dispatcher
	subscriber Subscriber

	rooms     storage.Storer[*game.Room]
	locations storage.Storer[*game.Location]
	players   storage.Storer[*game.Player]
}

func NewHandler(tokens *auth.Tokens, registry *session.Registry, dispatcher Dispatcher, subscriber Subscriber,
	rooms storage.Storer[*game.Room], locations storage.Storer[*game.Location], players storage.Storer[*game.Player]) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		tokens:     tokens,
		registry:   registry,
		dispatcher: dispatcher,
		subscriber: subscriber,
		rooms:      rooms,
		locations:  locations,
		players:    players,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	claims, err := h.tokens.Validate(tokenString)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	sc, ok := h.sessionFromClaims(claims)
	if !ok {
		http.Error(w, "unknown room, location or player", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "player", claims.Player, "error", err)
		return
	}

	if err := h.runSession(r.Context(), conn, sc); err != nil {
		slog.Warn("session ended", "conn", sc.ConnId, "player", sc.Player.Name, "error", err)
	}
}

// sessionFromClaims resolves the token's references against the campaign
// definitions and builds the session context.
func (h *Handler) sessionFromClaims(claims *auth.Claims) (*session.Context, bool) {
	room := h.rooms.Get(storage.Identifier(claims.Room))
	if room == nil {
		return nil, false
	}

	location := h.locations.Get(storage.Identifier(claims.Location))
	if location == nil || location.RoomId != claims.Room {
		return nil, false
	}

	player := h.players.Get(storage.Identifier(claims.Player))
	if player == nil {
		return nil, false
	}

	return &session.Context{
		ConnId:     uuid.NewString(),
		Player:     *player,
		Role:       claims.Role,
		RoomId:     storage.Identifier(claims.Room),
		LocationId: storage.Identifier(claims.Location),
		Creator:    room.Creator == claims.Player,
	}, true
}

func (h *Handler) runSession(ctx context.Context, conn *websocket.Conn, sc *session.Context) error {
	defer conn.Close()

	if err := h.registry.Register(sc); err != nil {
		return err
	}
	defer h.registry.Unregister(sc.ConnId)
	expired := h.registry.Expired(sc.ConnId)

	msgs := make(chan []byte, outboundBuffer)
	unsubscribe, err := h.subscriber.Subscribe(messaging.ClientSubject(sc.ConnId), func(data []byte) {
		select {
		case msgs <- data:
		default:
			slog.Warn("dropping frame for slow consumer", "conn", sc.ConnId)
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	// Single writer goroutine; gorilla connections do not allow concurrent
	// writes.
	done := make(chan struct{})
	defer close(done)
	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-done:
				return
			case data := <-msgs:
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	// If the idle sweep expires the session, close the socket so the read
	// loop unblocks and the connection tears down with it.
	go func() {
		select {
		case <-done:
		case <-expired:
			conn.Close()
		}
	}()

	if err := h.dispatcher.SendJoinSnapshot(sc.ConnId); err != nil {
		return err
	}

	slog.InfoContext(ctx, "session joined",
		"conn", sc.ConnId, "player", sc.Player.Name,
		"room", sc.RoomId, "location", sc.LocationId, "role", sc.Role.String())

	for {
		select {
		case err := <-writeErr:
			return err
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-expired:
				// Expiry closed the socket underneath the read loop.
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		var env messaging.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			slog.Warn("malformed frame", "conn", sc.ConnId, "error", err)
			continue
		}

		h.registry.Touch(sc.ConnId)

		if err := h.dispatcher.Dispatch(ctx, sc.ConnId, env.Event, env.Data); err != nil {
			// No error frame goes back to the client; the failure is a
			// connection-level diagnostic only.
			slog.ErrorContext(ctx, "event failed",
				"conn", sc.ConnId, "event", env.Event, "error", err)
		}
	}
}
