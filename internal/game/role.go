package game

import "fmt"

// Role determines what a session is allowed to do within a room. It is
// assigned when the session joins and never changes for the life of the
// session.
type Role int

const (
	RoleParticipant Role = iota
	RoleDirector
)

func (r Role) String() string {
	switch r {
	case RoleDirector:
		return "director"
	case RoleParticipant:
		return "participant"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RoleDirector, RoleParticipant:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("unknown role: %d", int(r))
	}
}

func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "director":
		*r = RoleDirector
	case "participant":
		*r = RoleParticipant
	default:
		return fmt.Errorf("unknown role: %s", text)
	}
	return nil
}
