package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-vtt/internal/game"
	"github.com/pixil98/go-vtt/internal/session"
	"github.com/pixil98/go-vtt/internal/storage"
)

// FloorCreated is broadcast to every session viewing the location. The
// floor is rendered from each recipient's own viewpoint.
type FloorCreated struct {
	Floor   *game.FloorView `json:"floor"`
	Creator string          `json:"creator"`
}

// FloorVisibility is both the inbound payload for Floor.Visible.Set and the
// raw payload rebroadcast to the rest of the room.
type FloorVisibility struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}

func (h *Handler) createFloor(ctx context.Context, connId string, data json.RawMessage) error {
	sc, err := h.registry.Resolve(connId)
	if err != nil {
		return err
	}

	if !h.gate.Require(sc, game.RoleDirector, "create a new floor") {
		return nil
	}

	var spec storage.FloorSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("decoding floor spec: %w", err)
	}

	floor, err := h.store.CreateFloor(sc.RoomId, sc.LocationId, spec)
	if err != nil {
		return fmt.Errorf("creating floor %q: %w", spec.Name, err)
	}

	err = h.fanout.Broadcast(EventFloorCreate, session.SameLocation(sc), func(rc *session.Context) (any, error) {
		return &FloorCreated{
			Floor:   floor.Render(rc.Role, rc.Creator),
			Creator: sc.Player.Name,
		}, nil
	})
	if err != nil {
		slog.WarnContext(ctx, "floor create fanout", "floor", floor.Name, "error", err)
	}
	return nil
}

func (h *Handler) removeFloor(ctx context.Context, connId string, data json.RawMessage) error {
	sc, err := h.registry.Resolve(connId)
	if err != nil {
		return err
	}

	if !h.gate.Require(sc, game.RoleDirector, "remove a floor") {
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("decoding floor name: %w", err)
	}

	if err := h.store.DeleteFloor(sc.RoomId, sc.LocationId, name); err != nil {
		return fmt.Errorf("removing floor %q: %w", name, err)
	}

	// The actor already knows the outcome locally.
	err = h.fanout.BroadcastStatic(EventFloorRemove, session.Exclude(connId, session.SameRoom(sc)), name)
	if err != nil {
		slog.WarnContext(ctx, "floor remove fanout", "floor", name, "error", err)
	}
	return nil
}

func (h *Handler) setFloorVisibility(ctx context.Context, connId string, data json.RawMessage) error {
	sc, err := h.registry.Resolve(connId)
	if err != nil {
		return err
	}

	if !h.gate.Require(sc, game.RoleDirector, "toggle floor visibility") {
		return nil
	}

	var payload FloorVisibility
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decoding visibility payload: %w", err)
	}

	if err := h.store.SetFloorVisibility(sc.RoomId, sc.LocationId, payload.Name, payload.Visible); err != nil {
		return fmt.Errorf("setting visibility on floor %q: %w", payload.Name, err)
	}

	err = h.fanout.BroadcastStatic(EventFloorVisibleSet, session.Exclude(connId, session.SameRoom(sc)), &payload)
	if err != nil {
		slog.WarnContext(ctx, "floor visibility fanout", "floor", payload.Name, "error", err)
	}
	return nil
}

// SessionJoined is the initial snapshot delivered to a connection after it
// authenticates: the floors of its active location, rendered for it.
type SessionJoined struct {
	Room     string            `json:"room"`
	Location string            `json:"location"`
	Floors   []*game.FloorView `json:"floors"`
}

// SendJoinSnapshot delivers the Session.Joined snapshot to one connection.
func (h *Handler) SendJoinSnapshot(connId string) error {
	sc, err := h.registry.Resolve(connId)
	if err != nil {
		return err
	}

	floors, err := h.store.Floors(sc.RoomId, sc.LocationId)
	if err != nil {
		return fmt.Errorf("loading floors: %w", err)
	}

	snapshot := &SessionJoined{
		Room:     sc.RoomId.String(),
		Location: sc.LocationId.String(),
		Floors:   make([]*game.FloorView, 0, len(floors)),
	}
	for _, f := range floors {
		snapshot.Floors = append(snapshot.Floors, f.Render(sc.Role, sc.Creator))
	}

	return h.fanout.Send(EventSessionJoined, snapshot, connId)
}
