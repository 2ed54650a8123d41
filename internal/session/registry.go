package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pixil98/go-vtt/internal/game"
	"github.com/pixil98/go-vtt/internal/storage"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrSessionExists  = errors.New("session already registered")
)

// Context is the live binding of a connection to a player, role, room and
// active location. The role is fixed for the life of the session.
type Context struct {
	ConnId     string
	Player     game.Player
	Role       game.Role
	RoomId     storage.Identifier
	LocationId storage.Identifier

	// Creator reports whether the player owns the room. Set at join time
	// from the room definition.
	Creator bool
}

// Entry pairs a connection id with its session context.
type Entry struct {
	ConnId  string
	Context *Context
}

// Predicate selects sessions during enumeration.
type Predicate func(*Context) bool

// SameLocation matches sessions viewing the same location as ref.
func SameLocation(ref *Context) Predicate {
	return func(c *Context) bool {
		return c.RoomId == ref.RoomId && c.LocationId == ref.LocationId
	}
}

// SameRoom matches sessions in the same room as ref.
func SameRoom(ref *Context) Predicate {
	return func(c *Context) bool {
		return c.RoomId == ref.RoomId
	}
}

// Exclude wraps a predicate to skip one connection.
func Exclude(connId string, pred Predicate) Predicate {
	return func(c *Context) bool {
		return c.ConnId != connId && pred(c)
	}
}

type record struct {
	ctx        *Context
	lastActive time.Time
	gone       chan struct{}
}

// Registry is the process-wide mapping from connection id to session
// context. Handlers only read it; registration and removal belong to the
// connection lifecycle.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*record

	idleAfter time.Duration
}

type RegistryOpt func(*Registry)

// WithIdleTimeout expires sessions with no inbound activity for d on each
// driver tick. Zero disables the sweep.
func WithIdleTimeout(d time.Duration) RegistryOpt {
	return func(r *Registry) {
		r.idleAfter = d
	}
}

func NewRegistry(opts ...RegistryOpt) *Registry {
	r := &Registry{
		sessions: map[string]*record{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a session for a newly authenticated connection.
func (r *Registry) Register(ctx *Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[ctx.ConnId]; exists {
		return ErrSessionExists
	}

	r.sessions[ctx.ConnId] = &record{
		ctx:        ctx,
		lastActive: time.Now(),
		gone:       make(chan struct{}),
	}
	return nil
}

// Unregister drops the session for a closed connection, if present.
func (r *Registry) Unregister(connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remove(connId)
}

// remove deletes a session and signals its Expired channel. Callers must
// hold the write lock.
func (r *Registry) remove(connId string) {
	if rec, ok := r.sessions[connId]; ok {
		close(rec.gone)
		delete(r.sessions, connId)
	}
}

// Expired returns a channel that is closed when the session is removed,
// whether by Unregister or the idle sweep. The connection owner watches it
// so an expired session always tears its socket down with it. Unknown
// connections get an already-closed channel.
func (r *Registry) Expired(connId string) <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[connId]
	if !ok {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return rec.gone
}

// Resolve returns the session context for a connection.
func (r *Registry) Resolve(connId string) (*Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[connId]
	if !ok {
		return nil, ErrUnknownSession
	}
	return rec.ctx, nil
}

// Touch resets the session's idle timer.
func (r *Registry) Touch(connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.sessions[connId]; ok {
		rec.lastActive = time.Now()
	}
}

// Enumerate returns a call-time snapshot of all sessions matching pred.
// Registrations made after the call are not reflected.
func (r *Registry) Enumerate(pred Predicate) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []Entry
	for id, rec := range r.sessions {
		if pred(rec.ctx) {
			entries = append(entries, Entry{ConnId: id, Context: rec.ctx})
		}
	}
	return entries
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Tick expires idle sessions. Called periodically by the driver. Expiring
// a session closes its Expired channel.
func (r *Registry) Tick(ctx context.Context) error {
	if r.idleAfter <= 0 {
		return nil
	}

	cutoff := time.Now().Add(-r.idleAfter)

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.sessions {
		if rec.lastActive.Before(cutoff) {
			slog.InfoContext(ctx, "expiring idle session",
				"conn", id, "player", rec.ctx.Player.Name)
			r.remove(id)
		}
	}
	return nil
}
