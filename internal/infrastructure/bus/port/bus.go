package port

import (
	"context"
	"encoding/json"
)

// Envelope is the transient wire record carried by the fan-out bus. It is
// never stored; ServerID identifies the publishing instance so subscribers
// can discard their own echoes.
type Envelope struct {
	ServerID string          `json:"serverId"`
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
}

// Handler is invoked for every envelope received from the bus, including
// envelopes the receiving instance published itself.
type Handler func(env Envelope)

// Publisher broadcasts envelopes to every gateway instance. Publish is
// fire-and-forget with at-least-once semantics; a failure means remote
// instances will miss the event until the bus recovers, so callers must log
// it rather than abort local delivery.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// Subscriber delivers every broadcast envelope to the registered handler
// until the context is canceled.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) error
}

// Bus is the full broadcast surface a gateway instance needs.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}
