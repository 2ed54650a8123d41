package command

import (
	"fmt"

	"github.com/pixil98/go-service"
	"github.com/pixil98/go-vtt/internal/auth"
	"github.com/pixil98/go-vtt/internal/driver"
	"github.com/pixil98/go-vtt/internal/events"
	"github.com/pixil98/go-vtt/internal/gateway"
	"github.com/pixil98/go-vtt/internal/messaging"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	// Messaging backbone
	natsServer, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	// Campaign definitions and the live entity store
	campaign, err := cfg.Storage.buildCampaign()
	if err != nil {
		return nil, fmt.Errorf("loading campaign: %w", err)
	}
	entities, err := cfg.Storage.buildEntityStore()
	if err != nil {
		return nil, fmt.Errorf("opening entity store: %w", err)
	}

	// Session registry and the role gate
	registry, err := cfg.Sessions.buildRegistry()
	if err != nil {
		return nil, fmt.Errorf("creating session registry: %w", err)
	}
	gate := auth.NewGate(nil)

	tokens, err := cfg.Auth.buildTokens()
	if err != nil {
		return nil, fmt.Errorf("creating token signer: %w", err)
	}

	// Event handling and fanout
	fanout := messaging.NewFanout(registry, natsServer)
	handler := events.NewHandler(registry, gate, entities, fanout)

	// Websocket gateway
	wsHandler := gateway.NewHandler(tokens, registry, handler, natsServer,
		campaign.Rooms, campaign.Locations, campaign.Players)
	gatewayServer := gateway.NewServer(cfg.Gateway.addr(), wsHandler)

	// Periodic maintenance
	drv := driver.NewDriver([]driver.Manager{
		registry,
	})

	return service.WorkerList{
		"nats":    natsServer,
		"gateway": gatewayServer,
		"driver":  drv,
	}, nil
}
