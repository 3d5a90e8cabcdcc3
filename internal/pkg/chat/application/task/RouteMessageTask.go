package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	qport "go-chatrelay/internal/infrastructure/queue/port"
	"go-chatrelay/internal/pkg/chat/application/routing"
	chat "go-chatrelay/internal/pkg/chat/domain"
)

// RouteMessageTaskType is the queue task name for routing a message accepted
// over HTTP. The socket path routes inline; the HTTP path enqueues so the
// request returns as soon as the message is accepted.
const RouteMessageTaskType = "chat:route_message"

// RouteMessagePayload is the JSON payload transported via the queue, kept
// decoupled from the domain type.
type RouteMessagePayload struct {
	From   string `json:"from"`
	RoomID string `json:"roomId"`
	Body   string `json:"message"`
	Date   int64  `json:"date"`
}

// RegisterRouteMessageTask binds the routing handler to the worker server.
// Retries give the task at-least-once semantics, so a retried delivery may
// reach clients more than once; the router's persistence step is what must
// stay ahead of any fan-out.
func RegisterRouteMessageTask(srv qport.Server, router *routing.MessageRouter, log *zap.Logger) {
	srv.Register(RouteMessageTaskType, func(ctx context.Context, t qport.Task) error {
		var p RouteMessagePayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			log.Error("route task: malformed payload", zap.Error(err))
			return nil // retrying cannot fix a malformed payload
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if _, err := router.Route(ctx, p.From, p.RoomID, p.Body, p.Date); err != nil {
			var verr *chat.ValidationError
			if errors.As(err, &verr) {
				log.Warn("route task: rejected message", zap.String("room", p.RoomID), zap.Error(err))
				return nil
			}
			return err
		}
		return nil
	})
}
