package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-vtt/internal/auth"
)

const defaultTokenTTL = 24 * time.Hour

type AuthConfig struct {
	// Secret signs join tokens. Load it from a secret manager in real
	// deployments; the config file is the lowest common denominator.
	Secret   string `json:"secret"`
	TokenTTL string `json:"token_ttl"`
}

func (c *AuthConfig) validate() error {
	el := errors.NewErrorList()

	if len(c.Secret) < 32 {
		el.Add(fmt.Errorf("secret must be at least 32 bytes"))
	}

	if c.TokenTTL != "" {
		if _, err := time.ParseDuration(c.TokenTTL); err != nil {
			el.Add(fmt.Errorf("parsing token_ttl: %w", err))
		}
	}

	return el.Err()
}

func (c *AuthConfig) buildTokens() (*auth.Tokens, error) {
	ttl := defaultTokenTTL
	if c.TokenTTL != "" {
		d, err := time.ParseDuration(c.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("parsing token_ttl: %w", err)
		}
		ttl = d
	}

	return auth.NewTokens([]byte(c.Secret), ttl), nil
}
