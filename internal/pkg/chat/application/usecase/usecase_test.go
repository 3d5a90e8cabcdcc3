package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	chat "go-chatrelay/internal/pkg/chat/domain"
)

// fakeRepo mimics the durable store: append-only per room, IDs assigned in
// commit order, newest-first reads with ties broken by commit order.
type fakeRepo struct {
	byRoom    map[string][]chat.Message
	nextID    int
	saveErr   error
	findErr   error
	findCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byRoom: make(map[string][]chat.Message)}
}

func (f *fakeRepo) SaveMessage(_ context.Context, m chat.Message) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.nextID++
	m.ID = fmt.Sprintf("m%d", f.nextID)
	f.byRoom[m.RoomID] = append(f.byRoom[m.RoomID], m)
	return m.ID, nil
}

func (f *fakeRepo) FindByRoom(_ context.Context, roomID string, limit int) ([]chat.Message, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	stored := f.byRoom[roomID]
	msgs := make([]chat.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		msgs = append(msgs, stored[i])
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Date > msgs[j].Date })
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeRepo) HasMessages(_ context.Context, roomID string) (bool, error) {
	return len(f.byRoom[roomID]) > 0, nil
}

type scoredMember struct {
	score  float64
	member string
	seq    int
}

// fakeSortedSet mimics the Redis sorted-set surface, including reverse-score
// range reads.
type fakeSortedSet struct {
	entries map[string][]scoredMember
	ttls    map[string]time.Duration
	seq     int
	addErr  error
	readErr error
}

func newFakeSortedSet() *fakeSortedSet {
	return &fakeSortedSet{entries: make(map[string][]scoredMember), ttls: make(map[string]time.Duration)}
}

func (f *fakeSortedSet) ZAdd(_ context.Context, key string, score float64, member string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.seq++
	f.entries[key] = append(f.entries[key], scoredMember{score: score, member: member, seq: f.seq})
	return nil
}

func (f *fakeSortedSet) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	all := append([]scoredMember(nil), f.entries[key]...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].seq > all[j].seq
	})
	if start >= int64(len(all)) {
		return nil, nil
	}
	if stop >= int64(len(all)) {
		stop = int64(len(all)) - 1
	}
	values := make([]string, 0, stop-start+1)
	for _, e := range all[start : stop+1] {
		values = append(values, e.member)
	}
	return values, nil
}

func (f *fakeSortedSet) ZCard(_ context.Context, key string) (int64, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return int64(len(f.entries[key])), nil
}

func (f *fakeSortedSet) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.ttls[key] = ttl
	return nil
}

func seedDurable(t *testing.T, repo *fakeRepo, roomID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := repo.SaveMessage(context.Background(), chat.Message{
			From: "u1", RoomID: roomID, Body: fmt.Sprintf("msg %d", i), Date: int64(i * 1000),
		})
		require.NoError(t, err)
	}
}

func TestAppendMessage_DurableCommitThenCache(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	cache := newFakeSortedSet()
	uc := NewAppendMessageUseCase(repo, cache, zap.NewNop())

	msg, err := uc.Execute(context.Background(), chat.Message{From: "u1", RoomID: "u1:u2", Body: "hi", Date: 1000})

	req.NoError(err)
	req.Equal("m1", msg.ID)
	req.Len(repo.byRoom["u1:u2"], 1)

	// The cached entry carries the durable ID and the timestamp as score.
	entries := cache.entries[chat.RoomKey("u1:u2")]
	req.Len(entries, 1)
	req.Equal(float64(1000), entries[0].score)
	var cached chat.Message
	req.NoError(json.Unmarshal([]byte(entries[0].member), &cached))
	req.Equal("m1", cached.ID)
}

func TestAppendMessage_PersistFailureLeavesCacheUntouched(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.saveErr = errors.New("connection refused")
	cache := newFakeSortedSet()
	uc := NewAppendMessageUseCase(repo, cache, zap.NewNop())

	_, err := uc.Execute(context.Background(), chat.Message{From: "u1", RoomID: "u1:u2", Body: "hi", Date: 1000})

	req.ErrorIs(err, ErrPersistence)
	req.Empty(cache.entries, "cache must never contain a message the durable store does not have")
}

func TestAppendMessage_CacheFailureIsSwallowed(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	cache := newFakeSortedSet()
	cache.addErr = errors.New("cache down")
	uc := NewAppendMessageUseCase(repo, cache, zap.NewNop())

	msg, err := uc.Execute(context.Background(), chat.Message{From: "u1", RoomID: "u1:u2", Body: "hi", Date: 1000})

	req.NoError(err, "cache is an optimization, not a gate")
	req.Equal("m1", msg.ID)
}

func TestGetHistory_CacheHitSkipsDurableStore(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	cache := newFakeSortedSet()
	appendUC := NewAppendMessageUseCase(repo, cache, zap.NewNop())
	historyUC := NewGetHistoryUseCase(repo, cache, zap.NewNop(), 100, time.Hour)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := appendUC.Execute(ctx, chat.Message{From: "u1", RoomID: "0", Body: fmt.Sprintf("msg %d", i), Date: int64(i * 1000)})
		req.NoError(err)
	}
	repo.findCalls = 0

	msgs, err := historyUC.Execute(ctx, GetHistoryInput{RoomID: "0", Offset: 0, Size: 2})

	req.NoError(err)
	req.Zero(repo.findCalls, "a warm cache must not touch the durable store")
	req.Len(msgs, 2)
	req.Equal("msg 3", msgs[0].Body)
	req.Equal("msg 2", msgs[1].Body)
}

func TestGetHistory_MissLoadsWindowOnce(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	cache := newFakeSortedSet()
	uc := NewGetHistoryUseCase(repo, cache, zap.NewNop(), 100, time.Hour)
	ctx := context.Background()

	// Given 100 durable messages and an empty cache
	seedDurable(t, repo, "0", 100)

	msgs, err := uc.Execute(ctx, GetHistoryInput{RoomID: "0", Offset: 0, Size: 20})

	// Then exactly one durable load happened and the slice is newest-first
	req.NoError(err)
	req.Equal(1, repo.findCalls)
	req.Len(msgs, 20)
	req.Equal("msg 100", msgs[0].Body)
	req.Equal("msg 81", msgs[19].Body)

	// And the cache was repopulated with the window plus a finite TTL
	req.Len(cache.entries[chat.RoomKey("0")], 100)
	req.Equal(time.Hour, cache.ttls[chat.RoomKey("0")])

	// And a second read is served from the cache
	more, err := uc.Execute(ctx, GetHistoryInput{RoomID: "0", Offset: 20, Size: 20})
	req.NoError(err)
	req.Equal(1, repo.findCalls)
	req.Equal("msg 80", more[0].Body)
}

func TestGetHistory_InsufficientCacheFallsBack(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	cache := newFakeSortedSet()
	uc := NewGetHistoryUseCase(repo, cache, zap.NewNop(), 100, time.Hour)
	ctx := context.Background()

	seedDurable(t, repo, "0", 5)
	// Cache holds a single stale entry, not enough for the request.
	req.NoError(cache.ZAdd(ctx, chat.RoomKey("0"), 1000, `{"roomId":"0","message":"msg 1","date":1000}`))

	msgs, err := uc.Execute(ctx, GetHistoryInput{RoomID: "0", Offset: 0, Size: 3})

	req.NoError(err)
	req.Equal(1, repo.findCalls)
	req.Len(msgs, 3)
	req.Equal("msg 5", msgs[0].Body)
}

func TestGetHistory_EmptyRoomIsNotAnError(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	cache := newFakeSortedSet()
	uc := NewGetHistoryUseCase(repo, cache, zap.NewNop(), 100, time.Hour)

	msgs, err := uc.Execute(context.Background(), GetHistoryInput{RoomID: "ghost-room", Offset: 0, Size: 20})

	req.NoError(err)
	req.Empty(msgs)
	req.Empty(cache.ttls, "nothing to cache for an empty room")
}

func TestGetHistory_CacheUnavailableDegradesToStore(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	cache := newFakeSortedSet()
	cache.readErr = errors.New("cache down")
	uc := NewGetHistoryUseCase(repo, cache, zap.NewNop(), 100, time.Hour)

	seedDurable(t, repo, "0", 3)

	msgs, err := uc.Execute(context.Background(), GetHistoryInput{RoomID: "0", Offset: 0, Size: 2})

	req.NoError(err)
	req.Len(msgs, 2)
	req.Equal("msg 3", msgs[0].Body)
}

func TestGetHistory_OffsetBeyondWindow(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	cache := newFakeSortedSet()
	uc := NewGetHistoryUseCase(repo, cache, zap.NewNop(), 100, time.Hour)

	seedDurable(t, repo, "0", 5)

	msgs, err := uc.Execute(context.Background(), GetHistoryInput{RoomID: "0", Offset: 50, Size: 10})

	req.NoError(err)
	req.Empty(msgs)
}

func TestGetHistory_RejectsMalformedRoomID(t *testing.T) {
	uc := NewGetHistoryUseCase(newFakeRepo(), newFakeSortedSet(), zap.NewNop(), 100, time.Hour)

	_, err := uc.Execute(context.Background(), GetHistoryInput{RoomID: "a:b:c", Offset: 0, Size: 10})

	var verr *chat.ValidationError
	require.ErrorAs(t, err, &verr)
}
