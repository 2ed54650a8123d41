package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-vtt/internal/session"
)

// Envelope is the wire frame exchanged with clients: an event name and a
// JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Sender publishes raw bytes to a subject.
type Sender interface {
	Publish(subject string, data []byte) error
}

// ClientSubject returns the per-connection delivery subject.
func ClientSubject(connId string) string {
	return fmt.Sprintf("client-%s", connId)
}

// Fanout delivers events to the live connections selected by a registry
// predicate. Delivery is fire-and-forget: failures are reported to the
// caller but never retried, and a failed recipient does not stop the rest.
type Fanout struct {
	registry *session.Registry
	sender   Sender
}

func NewFanout(registry *session.Registry, sender Sender) *Fanout {
	return &Fanout{
		registry: registry,
		sender:   sender,
	}
}

// Send delivers one event to a single connection.
func (f *Fanout) Send(event string, payload any, connId string) error {
	data, err := envelope(event, payload)
	if err != nil {
		return err
	}
	return f.sender.Publish(ClientSubject(connId), data)
}

// Broadcast computes a payload per recipient and delivers it to every
// session matching pred, exactly once each.
func (f *Fanout) Broadcast(event string, pred session.Predicate, payloadFor func(*session.Context) (any, error)) error {
	var firstErr error
	for _, entry := range f.registry.Enumerate(pred) {
		payload, err := payloadFor(entry.Context)
		if err != nil {
			return fmt.Errorf("rendering payload for %s: %w", entry.ConnId, err)
		}

		data, err := envelope(event, payload)
		if err != nil {
			return err
		}

		if err := f.sender.Publish(ClientSubject(entry.ConnId), data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BroadcastStatic delivers the same payload to every session matching pred.
// The payload is encoded once and reused.
func (f *Fanout) BroadcastStatic(event string, pred session.Predicate, payload any) error {
	data, err := envelope(event, payload)
	if err != nil {
		return err
	}

	var firstErr error
	for _, entry := range f.registry.Enumerate(pred) {
		if err := f.sender.Publish(ClientSubject(entry.ConnId), data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func envelope(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}

	data, err := json.Marshal(&Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", event, err)
	}
	return data, nil
}
