package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cacheport "go-chatrelay/internal/infrastructure/cache/port"
	qport "go-chatrelay/internal/infrastructure/queue/port"
	"go-chatrelay/internal/pkg/chat/application/directory"
	"go-chatrelay/internal/pkg/chat/application/routing"
	"go-chatrelay/internal/pkg/chat/application/usecase"
	chat "go-chatrelay/internal/pkg/chat/domain"
)

// fakeServer captures handler registration so tests can invoke the handler
// directly, the way the worker loop would.
type fakeServer struct {
	handlers map[string]qport.Handler
}

func (f *fakeServer) Register(taskType string, h qport.Handler) {
	if f.handlers == nil {
		f.handlers = make(map[string]qport.Handler)
	}
	f.handlers[taskType] = h
}

func (f *fakeServer) Run(context.Context) error { return nil }

type taskRepo struct {
	byRoom  map[string][]chat.Message
	nextID  int
	saveErr error
}

func (f *taskRepo) SaveMessage(_ context.Context, m chat.Message) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	if f.byRoom == nil {
		f.byRoom = make(map[string][]chat.Message)
	}
	f.nextID++
	m.ID = fmt.Sprintf("m%d", f.nextID)
	f.byRoom[m.RoomID] = append(f.byRoom[m.RoomID], m)
	return m.ID, nil
}

func (f *taskRepo) FindByRoom(context.Context, string, int) ([]chat.Message, error) {
	return nil, nil
}

func (f *taskRepo) HasMessages(_ context.Context, roomID string) (bool, error) {
	return len(f.byRoom[roomID]) > 0, nil
}

type noopEmitter struct{}

func (noopEmitter) EmitToRoom(string, []byte) int { return 0 }
func (noopEmitter) EmitAll([]byte, string) int    { return 0 }

type noopBus struct{}

func (noopBus) Publish(context.Context, string, any) error { return nil }

type noopStore struct{}

func (noopStore) Get(context.Context, string) (string, error) { return "", cacheport.ErrMiss }
func (noopStore) Set(context.Context, string, string, time.Duration) error { return nil }
func (noopStore) Del(context.Context, ...string) (int64, error)            { return 0, nil }
func (noopStore) Exists(context.Context, string) (bool, error)             { return false, nil }
func (noopStore) SAdd(context.Context, string, ...string) (int64, error)   { return 0, nil }
func (noopStore) SRem(context.Context, string, ...string) (int64, error)   { return 0, nil }
func (noopStore) SIsMember(context.Context, string, string) (bool, error)  { return false, nil }
func (noopStore) SMembers(context.Context, string) ([]string, error)       { return nil, nil }
func (noopStore) HSet(context.Context, string, string, string) error       { return nil }
func (noopStore) HGet(context.Context, string, string) (string, error) {
	return "", cacheport.ErrMiss
}

type noopSortedSet struct{}

func (noopSortedSet) ZAdd(context.Context, string, float64, string) error { return nil }
func (noopSortedSet) ZRevRange(context.Context, string, int64, int64) ([]string, error) {
	return nil, nil
}
func (noopSortedSet) ZCard(context.Context, string) (int64, error)        { return 0, nil }
func (noopSortedSet) Expire(context.Context, string, time.Duration) error { return nil }

func newTaskHandler(t *testing.T, repo *taskRepo) qport.Handler {
	t.Helper()
	log := zap.NewNop()
	appendUC := usecase.NewAppendMessageUseCase(repo, noopSortedSet{}, log)
	dir := directory.New(noopStore{}, log)
	router := routing.NewMessageRouter(appendUC, repo, dir, noopBus{}, noopEmitter{}, log)

	srv := &fakeServer{}
	RegisterRouteMessageTask(srv, router, log)
	h, ok := srv.handlers[RouteMessageTaskType]
	require.True(t, ok)
	return h
}

func TestRouteMessageTask_PersistsValidPayload(t *testing.T) {
	req := require.New(t)
	repo := &taskRepo{}
	h := newTaskHandler(t, repo)

	payload, err := json.Marshal(RouteMessagePayload{From: "amy", RoomID: "0", Body: "hi", Date: 1000})
	req.NoError(err)

	req.NoError(h(context.Background(), qport.Task{Type: RouteMessageTaskType, Payload: payload}))
	req.Len(repo.byRoom["0"], 1)
}

func TestRouteMessageTask_MalformedPayloadIsNotRetried(t *testing.T) {
	req := require.New(t)
	h := newTaskHandler(t, &taskRepo{})

	err := h(context.Background(), qport.Task{Type: RouteMessageTaskType, Payload: []byte(`{broken`)})

	req.NoError(err, "a payload that cannot decode will never decode on retry")
}

func TestRouteMessageTask_RejectedMessageIsNotRetried(t *testing.T) {
	req := require.New(t)
	repo := &taskRepo{}
	h := newTaskHandler(t, repo)

	payload, err := json.Marshal(RouteMessagePayload{From: "", RoomID: "0", Body: "hi", Date: 1000})
	req.NoError(err)

	req.NoError(h(context.Background(), qport.Task{Type: RouteMessageTaskType, Payload: payload}))
	req.Empty(repo.byRoom)
}

func TestRouteMessageTask_PersistenceFailureRetries(t *testing.T) {
	req := require.New(t)
	repo := &taskRepo{saveErr: errors.New("connection refused")}
	h := newTaskHandler(t, repo)

	payload, err := json.Marshal(RouteMessagePayload{From: "amy", RoomID: "0", Body: "hi", Date: 1000})
	req.NoError(err)

	err = h(context.Background(), qport.Task{Type: RouteMessageTaskType, Payload: payload})

	req.ErrorIs(err, usecase.ErrPersistence)
}
