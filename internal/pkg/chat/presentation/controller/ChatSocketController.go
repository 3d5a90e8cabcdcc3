package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	cacheport "go-chatrelay/internal/infrastructure/cache/port"
	"go-chatrelay/internal/infrastructure/realtime"
	"go-chatrelay/internal/pkg/chat/application/directory"
	"go-chatrelay/internal/pkg/chat/application/routing"
	chat "go-chatrelay/internal/pkg/chat/domain"
	"go-chatrelay/internal/pkg/presence"
)

// ChatSocketController is the connection gateway's websocket endpoint: it
// owns live connections, their authenticated identity and their room
// subscriptions, and feeds inbound frames to the message router.
type ChatSocketController struct {
	registry        *realtime.Registry
	router          *routing.MessageRouter
	tracker         *presence.Tracker
	dir             *directory.Directory
	log             *zap.Logger
	inflightTimeout time.Duration
}

func NewChatSocketController(
	registry *realtime.Registry,
	router *routing.MessageRouter,
	tracker *presence.Tracker,
	dir *directory.Directory,
	log *zap.Logger,
) *ChatSocketController {
	return &ChatSocketController{
		registry:        registry,
		router:          router,
		tracker:         tracker,
		dir:             dir,
		log:             log,
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy belongs to the fronting auth layer.
		return true
	},
}

type inboundFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Body   string `json:"message,omitempty"`
	Date   int64  `json:"date,omitempty"`
}

type ackPayload struct {
	RoomID string `json:"roomId,omitempty"`
}

type errorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades the connection and processes frames until the client
// disconnects. The authenticated user ID must already be resolved by the
// session layer in front of this endpoint; connections without one are
// refused.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authenticated user_id is required"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}

		conn := realtime.NewConnection(userID, ws)
		conn.Start()
		ctl.registry.Attach(conn)

		username := ctl.username(c.Request.Context(), userID)
		ctl.markOnline(c.Request.Context(), conn, userID, username)

		defer func() {
			ctl.registry.Detach(conn)
			ctl.markOffline(context.Background(), conn, userID, username)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.ack(conn, "connected", "")

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				ctl.replyError(conn, "read_error", err.Error())
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "room.join":
				ctl.handleJoin(conn, frame)
			case "room.leave":
				ctl.handleLeave(conn, frame)
			case chat.EventMessage:
				ctl.handleMessage(c.Request.Context(), conn, frame)
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

// handleJoin adds a local subscription. Authorization happened upstream; the
// gateway only validates shape.
func (ctl *ChatSocketController) handleJoin(conn *realtime.Connection, frame inboundFrame) {
	if err := chat.ValidateRoomID(frame.RoomID); err != nil {
		ctl.replyError(conn, "bad_request", err.Error())
		return
	}
	ctl.registry.Join(frame.RoomID, conn)
	ctl.ack(conn, "joined", frame.RoomID)
}

func (ctl *ChatSocketController) handleLeave(conn *realtime.Connection, frame inboundFrame) {
	if frame.RoomID == "" {
		ctl.replyError(conn, "bad_request", "roomId is required")
		return
	}
	ctl.registry.Leave(frame.RoomID, conn)
	ctl.ack(conn, "left", frame.RoomID)
}

// handleMessage routes one inbound message. The sender identity always comes
// from the authenticated connection, never from the frame. A disconnect
// mid-write must not cancel the persist, so routing runs on its own timeout
// rather than the request context.
func (ctl *ChatSocketController) handleMessage(_ context.Context, conn *realtime.Connection, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), ctl.inflightTimeout)
	defer cancel()

	if _, err := ctl.router.Route(ctx, conn.UserID(), frame.RoomID, frame.Body, frame.Date); err != nil {
		ctl.routeError(conn, err)
	}
}

func (ctl *ChatSocketController) routeError(conn *realtime.Connection, err error) {
	var verr *chat.ValidationError
	switch {
	case errors.As(err, &verr):
		ctl.replyError(conn, "bad_request", verr.Error())
	default:
		// Persistence failure: rejected, reported to the sender only.
		ctl.replyError(conn, "persist_failure", "message could not be stored")
	}
}

// markOnline records presence and announces the transition to local peers.
// Presence is best-effort: an unreachable store degrades, the connection
// proceeds.
func (ctl *ChatSocketController) markOnline(ctx context.Context, conn *realtime.Connection, userID, username string) {
	if err := ctl.tracker.MarkOnline(ctx, userID, username); err != nil {
		ctl.log.Warn("gateway: presence degraded on connect", zap.String("user", userID), zap.Error(err))
	}
	ctl.emitPresence(conn, chat.EventUserConnected, chat.PresenceEvent{ID: userID, Username: username, Online: true})
}

func (ctl *ChatSocketController) markOffline(ctx context.Context, conn *realtime.Connection, userID, username string) {
	// A replacement session may have attached before this one tore down; the
	// user is still connected here and must stay marked online. A replacement
	// on another instance still races the shared set (last write wins), same
	// as any two instances observing one user.
	if ctl.registry.Connected(userID) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := ctl.tracker.MarkOffline(ctx, userID, username); err != nil {
		ctl.log.Warn("gateway: presence degraded on disconnect", zap.String("user", userID), zap.Error(err))
	}
	ctl.emitPresence(conn, chat.EventUserDisconnected, chat.PresenceEvent{ID: userID, Username: username, Online: false})
}

func (ctl *ChatSocketController) emitPresence(conn *realtime.Connection, eventType string, ev chat.PresenceEvent) {
	frame, err := routing.EncodeFrame(eventType, ev)
	if err != nil {
		ctl.log.Error("gateway: encode presence frame", zap.Error(err))
		return
	}
	ctl.registry.EmitAll(frame, conn.UserID())
}

func (ctl *ChatSocketController) username(ctx context.Context, userID string) string {
	name, err := ctl.dir.Username(ctx, userID)
	if err != nil {
		if !errors.Is(err, cacheport.ErrMiss) {
			ctl.log.Warn("gateway: username lookup failed", zap.String("user", userID), zap.Error(err))
		}
		return userID
	}
	return name
}

func (ctl *ChatSocketController) ack(conn *realtime.Connection, ackType, roomID string) {
	if frame, err := routing.EncodeFrame(ackType, ackPayload{RoomID: roomID}); err == nil {
		_ = conn.Send(frame)
	}
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, code, message string) {
	if frame, err := routing.EncodeFrame("error", errorPayload{Code: code, Error: message}); err == nil {
		_ = conn.Send(frame)
	}
}
