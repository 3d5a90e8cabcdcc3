package presence

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	busport "go-chatrelay/internal/infrastructure/bus/port"
	cacheport "go-chatrelay/internal/infrastructure/cache/port"
	chat "go-chatrelay/internal/pkg/chat/domain"
)

// ErrStoreUnavailable indicates the shared presence store is unreachable.
// Presence is best-effort, so callers degrade instead of failing the
// connection.
var ErrStoreUnavailable = errors.New("presence: store unavailable")

// Tracker maintains the fleet-wide set of currently-connected user IDs. The
// backing set is shared by every gateway instance, so what one instance
// writes all instances read; cross-instance notification of transitions goes
// over the fan-out bus.
//
// Presence is best-effort: callers must treat a failed operation as a
// degradation, never as a reason to refuse the connection.
type Tracker struct {
	store cacheport.Set
	bus   busport.Publisher
	log   *zap.Logger
}

func NewTracker(store cacheport.Set, bus busport.Publisher, log *zap.Logger) *Tracker {
	return &Tracker{store: store, bus: bus, log: log}
}

// MarkOnline records the user as connected. It is idempotent: re-marking an
// already-online user succeeds without a duplicate broadcast. A genuine
// offline→online transition publishes exactly one user.connected event.
func (t *Tracker) MarkOnline(ctx context.Context, userID, username string) error {
	added, err := t.store.SAdd(ctx, chat.OnlineUsersKey, userID)
	if err != nil {
		return fmt.Errorf("%w: mark online %s: %v", ErrStoreUnavailable, userID, err)
	}
	if added == 0 {
		return nil
	}
	t.announce(ctx, chat.EventUserConnected, chat.PresenceEvent{ID: userID, Username: username, Online: true})
	return nil
}

// MarkOffline records the user as disconnected; idempotent like MarkOnline.
func (t *Tracker) MarkOffline(ctx context.Context, userID, username string) error {
	removed, err := t.store.SRem(ctx, chat.OnlineUsersKey, userID)
	if err != nil {
		return fmt.Errorf("%w: mark offline %s: %v", ErrStoreUnavailable, userID, err)
	}
	if removed == 0 {
		return nil
	}
	t.announce(ctx, chat.EventUserDisconnected, chat.PresenceEvent{ID: userID, Username: username, Online: false})
	return nil
}

// IsOnline reports whether the user currently holds a connection anywhere in
// the fleet.
func (t *Tracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	online, err := t.store.SIsMember(ctx, chat.OnlineUsersKey, userID)
	if err != nil {
		return false, fmt.Errorf("%w: is online %s: %v", ErrStoreUnavailable, userID, err)
	}
	return online, nil
}

// ListOnline returns every currently-connected user ID.
func (t *Tracker) ListOnline(ctx context.Context) (map[string]struct{}, error) {
	ids, err := t.store.SMembers(ctx, chat.OnlineUsersKey)
	if err != nil {
		return nil, fmt.Errorf("%w: list online: %v", ErrStoreUnavailable, err)
	}
	online := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		online[id] = struct{}{}
	}
	return online, nil
}

// announce hands the transition to the bus. Publish failures lose remote
// visibility only, so they are logged instead of propagated.
func (t *Tracker) announce(ctx context.Context, eventType string, ev chat.PresenceEvent) {
	if err := t.bus.Publish(ctx, eventType, ev); err != nil {
		t.log.Warn("presence: bus publish failed", zap.String("event", eventType), zap.String("user", ev.ID), zap.Error(err))
	}
}
