package auth

import (
	"log/slog"

	"github.com/pixil98/go-vtt/internal/game"
	"github.com/pixil98/go-vtt/internal/session"
)

// Gate guards mutating operations behind a role check. It is a pure role
// comparison, not an ACL; every handler calls it explicitly before touching
// the store.
type Gate struct {
	log *slog.Logger
}

func NewGate(log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{log: log}
}

// Require reports whether the session holds the required role. On mismatch
// it emits one warning naming the player and the attempted action; the
// caller must then abort with no mutation and no fanout.
func (g *Gate) Require(sc *session.Context, required game.Role, action string) bool {
	if sc.Role == required {
		return true
	}

	g.log.Warn(sc.Player.Name+" attempted to "+action,
		"player", sc.Player.Name,
		"role", sc.Role.String(),
		"action", action,
	)
	return false
}
