package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"go-chatrelay/internal/infrastructure/bus/port"
)

// Channel is the single broadcast channel shared by all gateway instances.
// Envelopes carry all routing data themselves, so one channel is enough.
const Channel = "MESSAGES"

// RedisBus implements the fan-out bus on Redis pub/sub. Delivery order is
// Redis's per-channel publish order; room-level message ordering does not
// depend on it.
type RedisBus struct {
	client   *redis.Client
	serverID string
	log      *zap.Logger
}

// NewRedisBus wraps an existing client. The client is shared with the cache
// adapter; Close is a no-op for the connection itself.
func NewRedisBus(client *redis.Client, serverID string, log *zap.Logger) *RedisBus {
	return &RedisBus{client: client, serverID: serverID, log: log}
}

var _ port.Bus = (*RedisBus)(nil)

// Publish serializes data into an envelope tagged with this instance's ID and
// broadcasts it. Errors are returned for observability but local delivery
// must never be gated on them.
func (b *RedisBus) Publish(ctx context.Context, eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("bus: marshal %s payload: %w", eventType, err)
	}
	env := port.Envelope{ServerID: b.serverID, Type: eventType, Data: raw}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("bus: marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, Channel, body).Err(); err != nil {
		return fmt.Errorf("bus: publish %s: %w", eventType, err)
	}
	return nil
}

// Subscribe blocks delivering envelopes to h until ctx is canceled. Malformed
// payloads are logged and skipped; they never tear the subscription down.
func (b *RedisBus) Subscribe(ctx context.Context, h port.Handler) error {
	sub := b.client.Subscribe(ctx, Channel)
	defer sub.Close()

	// Force the SUBSCRIBE handshake so a broken bus surfaces immediately.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("bus: subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("bus: subscription channel closed")
			}
			var env port.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("bus: dropping malformed envelope", zap.Error(err))
				continue
			}
			h(env)
		}
	}
}

func (b *RedisBus) Close() error { return nil }
