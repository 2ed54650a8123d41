package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Player is a participant identity. Immutable for the lifetime of a session.
type Player struct {
	Name string `json:"name"`
}

// Validate satisfies storage.ValidatingSpec.
func (p *Player) Validate() error {
	el := errors.NewErrorList()

	if p.Name == "" {
		el.Add(fmt.Errorf("player name is required"))
	}

	return el.Err()
}
