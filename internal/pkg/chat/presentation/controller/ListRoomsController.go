package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cacheport "go-chatrelay/internal/infrastructure/cache/port"
	"go-chatrelay/internal/pkg/chat/application/directory"
	chat "go-chatrelay/internal/pkg/chat/domain"
)

// ListRoomsController returns the user's rooms with display names. Private
// rooms that have never carried a message are hidden until the first-message
// reveal (one controller per endpoint).
type ListRoomsController struct {
	Dir *directory.Directory
	Log *zap.Logger
}

func NewListRoomsController(dir *directory.Directory, log *zap.Logger) *ListRoomsController {
	return &ListRoomsController{Dir: dir, Log: log}
}

type roomView struct {
	ID    string   `json:"id"`
	Names []string `json:"names"`
}

func (h *ListRoomsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		roomIDs, err := h.Dir.RoomsOf(ctx, userID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room membership store unavailable"})
			return
		}

		rooms := make([]roomView, 0, len(roomIDs))
		for _, roomID := range roomIDs {
			view, ok := h.describeRoom(ctx, roomID)
			if !ok {
				continue
			}
			rooms = append(rooms, view)
		}
		c.JSON(http.StatusOK, rooms)
	}
}

// describeRoom resolves a room's display names. Named rooms use their stored
// name; private rooms use both participants' usernames, and are skipped while
// empty so undiscovered conversations stay hidden.
func (h *ListRoomsController) describeRoom(ctx context.Context, roomID string) (roomView, bool) {
	name, err := h.Dir.RoomName(ctx, roomID)
	if err == nil {
		return roomView{ID: roomID, Names: []string{name}}, true
	}
	if !errors.Is(err, cacheport.ErrMiss) {
		h.Log.Warn("rooms: name lookup failed", zap.String("room", roomID), zap.Error(err))
		return roomView{}, false
	}

	a, b, err := chat.SplitPrivateRoom(roomID)
	if err != nil {
		return roomView{}, false
	}

	hasHistory, err := h.Dir.HasCachedHistory(ctx, roomID)
	if err != nil || !hasHistory {
		return roomView{}, false
	}
	return roomView{ID: roomID, Names: h.Dir.DisplayNames(ctx, a, b)}, true
}
