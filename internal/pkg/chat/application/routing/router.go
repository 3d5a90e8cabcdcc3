package routing

import (
	"context"

	"go.uber.org/zap"

	busport "go-chatrelay/internal/infrastructure/bus/port"
	"go-chatrelay/internal/pkg/chat/application/directory"
	"go-chatrelay/internal/pkg/chat/application/usecase"
	chat "go-chatrelay/internal/pkg/chat/domain"
	repository "go-chatrelay/internal/pkg/chat/persistence/repository/port"
)

// LocalEmitter is the local fan-out half of the connection gateway.
type LocalEmitter interface {
	EmitToRoom(roomID string, payload []byte) int
	EmitAll(payload []byte, excludeUserID string) int
}

// MessageRouter drives an inbound message through
// Received → Sanitized → Persisted → Delivered. Rejections happen only at the
// validation and persistence steps; once a message is durably accepted it is
// always delivered locally, and bus loss degrades remote delivery only.
type MessageRouter struct {
	append *usecase.AppendMessageUseCase
	repo   repository.MessageRepository
	dir    *directory.Directory
	bus    busport.Publisher
	local  LocalEmitter
	log    *zap.Logger
}

func NewMessageRouter(
	append *usecase.AppendMessageUseCase,
	repo repository.MessageRepository,
	dir *directory.Directory,
	bus busport.Publisher,
	local LocalEmitter,
	log *zap.Logger,
) *MessageRouter {
	return &MessageRouter{append: append, repo: repo, dir: dir, bus: bus, local: local, log: log}
}

// Route validates, persists and fans out one inbound message, returning the
// persisted message with its durable ID attached. On error nothing has been
// broadcast; the caller reports the failure to the sender only.
func (r *MessageRouter) Route(ctx context.Context, from, roomID, body string, date int64) (chat.Message, error) {
	msg, err := chat.NewMessage(from, roomID, body, date)
	if err != nil {
		return chat.Message{}, err
	}

	// The reveal is gated on the room having had zero prior durable
	// messages, checked before this append commits. A check failure skips
	// the reveal rather than rejecting the message.
	reveal := false
	if chat.IsPrivateRoomID(msg.RoomID) {
		had, err := r.repo.HasMessages(ctx, msg.RoomID)
		if err != nil {
			r.log.Warn("route: reveal check failed", zap.String("room", msg.RoomID), zap.Error(err))
		} else {
			reveal = !had
		}
	}

	msg, err = r.append.Execute(ctx, msg)
	if err != nil {
		return chat.Message{}, err
	}

	if reveal {
		r.revealRoom(ctx, msg)
	}
	r.deliver(ctx, msg)
	return msg, nil
}

// deliver emits the persisted message to local subscribers and publishes it
// for every other instance. Local delivery never waits on the bus.
func (r *MessageRouter) deliver(ctx context.Context, msg chat.Message) {
	frame, err := EncodeFrame(chat.EventMessage, msg)
	if err != nil {
		r.log.Error("route: encode message frame", zap.String("room", msg.RoomID), zap.Error(err))
		return
	}
	delivered := r.local.EmitToRoom(msg.RoomID, frame)

	if err := r.bus.Publish(ctx, chat.EventMessage, msg); err != nil {
		// Remote subscribers silently miss this message until the bus
		// recovers; that partial delivery must stay observable.
		r.log.Error("route: bus publish failed, remote delivery lost",
			zap.String("room", msg.RoomID), zap.String("id", msg.ID),
			zap.Int("local_delivered", delivered), zap.Error(err))
	}
}

// revealRoom announces a just-materialized private room so clients that have
// never seen it can add it to their lists.
func (r *MessageRouter) revealRoom(ctx context.Context, msg chat.Message) {
	a, b, err := chat.SplitPrivateRoom(msg.RoomID)
	if err != nil {
		return
	}
	ev := chat.RoomRevealEvent{
		ID:    msg.RoomID,
		Names: r.dir.DisplayNames(ctx, a, b),
	}

	frame, err := EncodeFrame(chat.EventShowRoom, ev)
	if err != nil {
		r.log.Error("route: encode reveal frame", zap.String("room", msg.RoomID), zap.Error(err))
		return
	}
	// The sender's client materialized the room when it sent the message.
	r.local.EmitAll(frame, msg.From)

	if err := r.bus.Publish(ctx, chat.EventShowRoom, ev); err != nil {
		r.log.Error("route: reveal publish failed", zap.String("room", msg.RoomID), zap.Error(err))
	}
}
