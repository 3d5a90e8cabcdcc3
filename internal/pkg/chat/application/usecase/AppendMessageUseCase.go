package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	cacheport "go-chatrelay/internal/infrastructure/cache/port"
	chat "go-chatrelay/internal/pkg/chat/domain"
	repository "go-chatrelay/internal/pkg/chat/persistence/repository/port"
)

// AppendMessageUseCase is the write path of the cache-aside message store.
// The durable write commits first and assigns the canonical ID; only then is
// the message inserted into the hot cache, keyed by its timestamp. The cache
// must never contain a message the durable store does not have.
type AppendMessageUseCase struct {
	Repo  repository.MessageRepository
	Cache cacheport.SortedSet
	Log   *zap.Logger
}

func NewAppendMessageUseCase(repo repository.MessageRepository, cache cacheport.SortedSet, log *zap.Logger) *AppendMessageUseCase {
	return &AppendMessageUseCase{Repo: repo, Cache: cache, Log: log}
}

// Execute persists m and returns it with the durable ID attached. A durable
// failure is ErrPersistence and leaves the cache untouched; a cache failure
// after the commit is logged and swallowed, since the store remains the
// source of truth.
func (uc *AppendMessageUseCase) Execute(ctx context.Context, m chat.Message) (chat.Message, error) {
	id, err := uc.Repo.SaveMessage(ctx, m)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	m.ID = id

	payload, err := json.Marshal(m)
	if err != nil {
		uc.Log.Warn("append: skipping cache insert", zap.String("room", m.RoomID), zap.Error(err))
		return m, nil
	}
	if err := uc.Cache.ZAdd(ctx, chat.RoomKey(m.RoomID), float64(m.Date), string(payload)); err != nil {
		uc.Log.Warn("append: cache insert failed", zap.String("room", m.RoomID), zap.Error(err))
	}
	return m, nil
}
