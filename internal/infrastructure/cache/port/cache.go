package port

import (
	"context"
	"time"
)

// The cache ports are deliberately small and composable: the history cache
// only needs the sorted-set surface, the presence tracker only the set
// surface, the user directory only the hash surface. The Redis adapter
// implements all of them; tests fake only the slice they touch.
//
// Values are stored as strings to keep the ports free of serialization
// concerns. All methods are context-aware so callers own timeouts.

// KV is the plain key/value surface.
type KV interface {
	// Get returns the value at key, or ErrMiss if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. Zero or negative ttl means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// SortedSet is the score-ordered surface backing per-room message history.
type SortedSet interface {
	// ZAdd inserts member with the given score.
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRevRange returns members from highest to lowest score, inclusive of
	// both offsets (Redis semantics: stop = offset+count-1).
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZCard returns the number of members at key.
	ZCard(ctx context.Context, key string) (int64, error)

	// Expire attaches a TTL to key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Set is the unordered-set surface backing presence and room membership.
// SAdd and SRem return how many members actually changed, so callers can
// tell a genuine transition from a re-mark.
type Set interface {
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SIsMember(ctx context.Context, key string, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Hash is the field/value surface backing the user directory.
type Hash interface {
	HSet(ctx context.Context, key string, field string, value string) error
	HGet(ctx context.Context, key string, field string) (string, error)
}

// Cache is the full surface exposed by the Redis adapter.
type Cache interface {
	KV
	SortedSet
	Set
	Hash

	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a key or hash-field miss in a typed way, so callers can
// distinguish misses from transport errors.
var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: miss" }
