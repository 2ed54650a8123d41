package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-vtt/internal/session"
)

type SessionsConfig struct {
	IdleTimeout string `json:"idle_timeout"`
}

func (c *SessionsConfig) validate() error {
	el := errors.NewErrorList()

	if c.IdleTimeout != "" {
		d, err := time.ParseDuration(c.IdleTimeout)
		if err != nil {
			el.Add(fmt.Errorf("parsing idle_timeout: %w", err))
		} else if d < time.Minute {
			el.Add(fmt.Errorf("idle_timeout must be at least 1 minute"))
		}
	}

	return el.Err()
}

func (c *SessionsConfig) buildRegistry() (*session.Registry, error) {
	var opts []session.RegistryOpt
	if c.IdleTimeout != "" {
		d, err := time.ParseDuration(c.IdleTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing idle_timeout: %w", err)
		}
		opts = append(opts, session.WithIdleTimeout(d))
	}

	return session.NewRegistry(opts...), nil
}
