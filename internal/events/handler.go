package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-vtt/internal/auth"
	"github.com/pixil98/go-vtt/internal/game"
	"github.com/pixil98/go-vtt/internal/messaging"
	"github.com/pixil98/go-vtt/internal/session"
	"github.com/pixil98/go-vtt/internal/storage"
)

// EntityStorer is the persistence boundary the handlers mutate through.
type EntityStorer interface {
	CreateFloor(roomId, locationId storage.Identifier, spec storage.FloorSpec) (*game.Floor, error)
	FindFloor(roomId, locationId storage.Identifier, name string) (*game.Floor, error)
	Floors(roomId, locationId storage.Identifier) ([]*game.Floor, error)
	DeleteFloor(roomId, locationId storage.Identifier, name string) error
	SetFloorVisibility(roomId, locationId storage.Identifier, name string, visible bool) error
}

// Handler executes the floor mutation operations: resolve the session,
// check the role gate, mutate the store, then fan the result out. The store
// mutation strictly precedes the fanout; a failed mutation produces none.
type Handler struct {
	registry *session.Registry
	gate     *auth.Gate
	store    EntityStorer
	fanout   *messaging.Fanout
}

func NewHandler(registry *session.Registry, gate *auth.Gate, store EntityStorer, fanout *messaging.Fanout) *Handler {
	return &Handler{
		registry: registry,
		gate:     gate,
		store:    store,
		fanout:   fanout,
	}
}

// Dispatch routes one inbound event to its handler. Unknown events fail
// before any session or store access.
func (h *Handler) Dispatch(ctx context.Context, connId string, event string, data json.RawMessage) error {
	kind, err := KindOf(event)
	if err != nil {
		return err
	}

	switch kind {
	case KindFloorCreate:
		return h.createFloor(ctx, connId, data)
	case KindFloorRemove:
		return h.removeFloor(ctx, connId, data)
	case KindFloorVisibleSet:
		return h.setFloorVisibility(ctx, connId, data)
	default:
		return fmt.Errorf("unhandled event: %s", kind.Event())
	}
}
