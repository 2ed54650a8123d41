package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

type GatewayConfig struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

func (c *GatewayConfig) validate() error {
	el := errors.NewErrorList()

	if c.Port == 0 {
		el.Add(fmt.Errorf("port must be set to a positive integer"))
	}

	return el.Err()
}

func (c *GatewayConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
