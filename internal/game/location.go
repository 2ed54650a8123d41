package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Location is a sub-context of a room holding an ordered set of floors. A
// session views exactly one location at a time.
type Location struct {
	Name   string `json:"name"`
	RoomId string `json:"room_id"`
}

// Validate satisfies storage.ValidatingSpec. That room_id names a known
// room is checked against the room store at campaign load.
func (l *Location) Validate() error {
	el := errors.NewErrorList()

	if l.Name == "" {
		el.Add(fmt.Errorf("location name is required"))
	}
	if l.RoomId == "" {
		el.Add(fmt.Errorf("room_id is required"))
	}

	return el.Err()
}
