package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Room is a collaborative session container. The creator is the player that
// owns the room and always sees unredacted floor data regardless of role.
type Room struct {
	Name    string `json:"name"`
	Creator string `json:"creator"` // player id
}

// Validate satisfies storage.ValidatingSpec.
func (r *Room) Validate() error {
	el := errors.NewErrorList()

	if r.Name == "" {
		el.Add(fmt.Errorf("room name is required"))
	}
	if r.Creator == "" {
		el.Add(fmt.Errorf("creator is required"))
	}

	return el.Err()
}
