package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Floor is a named map layer owned by a location. Floors keep their creation
// order among siblings and carry a player-visibility flag the director can
// toggle. Each floor owns a set of drawing layers that live and die with it.
type Floor struct {
	Name          string  `json:"name"`
	PlayerVisible bool    `json:"player_visible"`
	Position      uint64  `json:"position"`
	Layers        []Layer `json:"layers"`
}

// Layer is a drawing surface owned by a floor. Director-only layers are
// never shown to participants.
type Layer struct {
	Name         string `json:"name"`
	DirectorOnly bool   `json:"director_only"`
}

// DefaultLayers returns the layer set every new floor starts with, in
// render order.
func DefaultLayers() []Layer {
	return []Layer{
		{Name: "map"},
		{Name: "grid"},
		{Name: "tokens"},
		{Name: "dm", DirectorOnly: true},
		{Name: "fow", DirectorOnly: true},
	}
}

// Validate satisfies storage.ValidatingSpec.
func (f *Floor) Validate() error {
	el := errors.NewErrorList()

	if f.Name == "" {
		el.Add(fmt.Errorf("floor name is required"))
	}

	seen := map[string]bool{}
	for i, l := range f.Layers {
		if l.Name == "" {
			el.Add(fmt.Errorf("layer %d: name is required", i))
		}
		if seen[l.Name] {
			el.Add(fmt.Errorf("duplicate layer name: %s", l.Name))
		}
		seen[l.Name] = true
	}

	return el.Err()
}

// FloorView is a floor as seen by one viewer. Director-only layers are
// omitted for viewers that are neither the director nor the room creator.
type FloorView struct {
	Name          string      `json:"name"`
	PlayerVisible bool        `json:"player_visible"`
	Position      uint64      `json:"position"`
	Layers        []LayerView `json:"layers"`
}

type LayerView struct {
	Name string `json:"name"`
}

// Render produces the floor representation for a single viewer. It is a
// pure function of the floor and the viewer's privileges.
func (f *Floor) Render(viewerRole Role, viewerIsCreator bool) *FloorView {
	privileged := viewerRole == RoleDirector || viewerIsCreator

	view := &FloorView{
		Name:          f.Name,
		PlayerVisible: f.PlayerVisible,
		Position:      f.Position,
		Layers:        make([]LayerView, 0, len(f.Layers)),
	}

	for _, l := range f.Layers {
		if l.DirectorOnly && !privileged {
			continue
		}
		view.Layers = append(view.Layers, LayerView{Name: l.Name})
	}

	return view
}
