package directory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	cacheport "go-chatrelay/internal/infrastructure/cache/port"
	chat "go-chatrelay/internal/pkg/chat/domain"
)

// Store is the slice of the shared store the directory needs: room names
// (plain keys), room memberships (sets) and user fields (hashes).
type Store interface {
	cacheport.KV
	cacheport.Set
	cacheport.Hash
}

// Directory reads the user/room lookup data every gateway instance shares:
// display names for the room-reveal event and per-user room membership for
// the room list. The account CRUD service owns the writes to user fields;
// this package only adds room memberships.
type Directory struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Directory {
	return &Directory{store: store, log: log}
}

// Username returns the display name for the user, or cacheport.ErrMiss when
// the directory has no entry.
func (d *Directory) Username(ctx context.Context, userID string) (string, error) {
	return d.store.HGet(ctx, chat.UserKey(userID), "username")
}

// DisplayNames resolves usernames for the given IDs, falling back to the raw
// ID when the directory has no entry. Lookup failures degrade the same way.
func (d *Directory) DisplayNames(ctx context.Context, userIDs ...string) []string {
	names := make([]string, len(userIDs))
	for i, id := range userIDs {
		name, err := d.Username(ctx, id)
		if err != nil {
			if !errors.Is(err, cacheport.ErrMiss) {
				d.log.Warn("directory: username lookup failed", zap.String("user", id), zap.Error(err))
			}
			names[i] = id
			continue
		}
		names[i] = name
	}
	return names
}

// RegisterPrivateRoom records the room in both participants' membership sets.
func (d *Directory) RegisterPrivateRoom(ctx context.Context, roomID, user1, user2 string) error {
	if _, err := d.store.SAdd(ctx, chat.UserRoomsKey(user1), roomID); err != nil {
		return fmt.Errorf("directory: register room for %s: %w", user1, err)
	}
	if _, err := d.store.SAdd(ctx, chat.UserRoomsKey(user2), roomID); err != nil {
		return fmt.Errorf("directory: register room for %s: %w", user2, err)
	}
	return nil
}

// RoomsOf returns the IDs of every room the user belongs to.
func (d *Directory) RoomsOf(ctx context.Context, userID string) ([]string, error) {
	return d.store.SMembers(ctx, chat.UserRoomsKey(userID))
}

// RoomName returns a named room's display name, or cacheport.ErrMiss for
// unnamed (private) rooms.
func (d *Directory) RoomName(ctx context.Context, roomID string) (string, error) {
	return d.store.Get(ctx, chat.RoomNameKey(roomID))
}

// HasCachedHistory reports whether the room's hot history key exists. The
// room list uses it to hide private rooms that have never carried a message.
func (d *Directory) HasCachedHistory(ctx context.Context, roomID string) (bool, error) {
	return d.store.Exists(ctx, chat.RoomKey(roomID))
}
