package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	cacheport "go-chatrelay/internal/infrastructure/cache/port"
	chat "go-chatrelay/internal/pkg/chat/domain"
	repository "go-chatrelay/internal/pkg/chat/persistence/repository/port"
)

// GetHistoryInput selects a slice of a room's history, newest first.
type GetHistoryInput struct {
	RoomID string
	Offset int
	Size   int
}

// GetHistoryUseCase is the read path of the cache-aside message store. The
// hot cache is tried first; on a miss the latest Window messages are loaded
// from the durable store, the cache is repopulated with a TTL, and the
// requested slice is served from that window.
type GetHistoryUseCase struct {
	Repo  repository.MessageRepository
	Cache cacheport.SortedSet
	Log   *zap.Logger

	// Window bounds how much history a miss pulls from the durable store;
	// TTL bounds how long the repopulated entry may live.
	Window int
	TTL    time.Duration
}

func NewGetHistoryUseCase(repo repository.MessageRepository, cache cacheport.SortedSet, log *zap.Logger, window int, ttl time.Duration) *GetHistoryUseCase {
	if window <= 0 {
		window = 100
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &GetHistoryUseCase{Repo: repo, Cache: cache, Log: log, Window: window, TTL: ttl}
}

// Execute returns messages [Offset, Offset+Size) in reverse chronological
// order. A room with no history yields an empty slice, not an error.
func (uc *GetHistoryUseCase) Execute(ctx context.Context, in GetHistoryInput) ([]chat.Message, error) {
	if err := chat.ValidateRoomID(in.RoomID); err != nil {
		return nil, err
	}
	if in.Size <= 0 {
		in.Size = 50
	}
	if in.Offset < 0 {
		in.Offset = 0
	}

	if msgs, ok := uc.fromCache(ctx, in); ok {
		return msgs, nil
	}

	window, err := uc.Repo.FindByRoom(ctx, in.RoomID, uc.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(window) == 0 {
		return []chat.Message{}, nil
	}

	uc.repopulate(ctx, in.RoomID, window)

	if in.Offset >= len(window) {
		return []chat.Message{}, nil
	}
	end := in.Offset + in.Size
	if end > len(window) {
		end = len(window)
	}
	return window[in.Offset:end], nil
}

// fromCache serves the slice from the hot cache when it holds enough entries
// to satisfy the request. Cache errors degrade to a durable-store read.
func (uc *GetHistoryUseCase) fromCache(ctx context.Context, in GetHistoryInput) ([]chat.Message, bool) {
	key := chat.RoomKey(in.RoomID)

	card, err := uc.Cache.ZCard(ctx, key)
	if err != nil {
		uc.Log.Warn("history: cache unavailable, falling back to store", zap.String("room", in.RoomID), zap.Error(err))
		return nil, false
	}
	if card == 0 || card < int64(in.Offset+in.Size) {
		return nil, false
	}

	values, err := uc.Cache.ZRevRange(ctx, key, int64(in.Offset), int64(in.Offset+in.Size-1))
	if err != nil {
		uc.Log.Warn("history: cache read failed, falling back to store", zap.String("room", in.RoomID), zap.Error(err))
		return nil, false
	}

	msgs := make([]chat.Message, 0, len(values))
	for _, v := range values {
		var m chat.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			uc.Log.Warn("history: corrupt cache entry, falling back to store", zap.String("room", in.RoomID), zap.Error(err))
			return nil, false
		}
		msgs = append(msgs, m)
	}
	return msgs, true
}

// repopulate rewrites the room's cache window and attaches the TTL. This is
// an optimization only; failures are logged, never surfaced.
func (uc *GetHistoryUseCase) repopulate(ctx context.Context, roomID string, window []chat.Message) {
	key := chat.RoomKey(roomID)
	for _, m := range window {
		payload, err := json.Marshal(m)
		if err != nil {
			uc.Log.Warn("history: skipping cache repopulation entry", zap.String("room", roomID), zap.Error(err))
			continue
		}
		if err := uc.Cache.ZAdd(ctx, key, float64(m.Date), string(payload)); err != nil {
			uc.Log.Warn("history: cache repopulation failed", zap.String("room", roomID), zap.Error(err))
			return
		}
	}
	if err := uc.Cache.Expire(ctx, key, uc.TTL); err != nil {
		uc.Log.Warn("history: cache expire failed", zap.String("room", roomID), zap.Error(err))
	}
}
