package events

import "fmt"

// Wire event names.
const (
	EventFloorCreate     = "Floor.Create"
	EventFloorRemove     = "Floor.Remove"
	EventFloorVisibleSet = "Floor.Visible.Set"
	EventSessionJoined   = "Session.Joined"
)

// Kind is the closed enumeration of inbound mutation operations. Dispatch
// switches on it exhaustively instead of routing by string.
type Kind int

const (
	KindFloorCreate Kind = iota
	KindFloorRemove
	KindFloorVisibleSet
)

// KindOf maps a wire event name to its kind.
func KindOf(event string) (Kind, error) {
	switch event {
	case EventFloorCreate:
		return KindFloorCreate, nil
	case EventFloorRemove:
		return KindFloorRemove, nil
	case EventFloorVisibleSet:
		return KindFloorVisibleSet, nil
	default:
		return 0, fmt.Errorf("unknown event: %s", event)
	}
}

func (k Kind) Event() string {
	switch k {
	case KindFloorCreate:
		return EventFloorCreate
	case KindFloorRemove:
		return EventFloorRemove
	case KindFloorVisibleSet:
		return EventFloorVisibleSet
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}
