package command

import (
	"github.com/pixil98/go-errors"
)

type Config struct {
	Gateway  GatewayConfig  `json:"gateway"`
	Storage  StorageConfig  `json:"storage"`
	Nats     NatsConfig     `json:"nats"`
	Auth     AuthConfig     `json:"auth"`
	Sessions SessionsConfig `json:"sessions"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	el.Add(c.Gateway.validate())
	el.Add(c.Storage.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Auth.validate())
	el.Add(c.Sessions.validate())

	return el.Err()
}
