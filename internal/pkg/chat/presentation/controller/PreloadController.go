package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	cacheport "go-chatrelay/internal/infrastructure/cache/port"
	"go-chatrelay/internal/pkg/chat/application/directory"
	"go-chatrelay/internal/pkg/chat/application/usecase"
	chat "go-chatrelay/internal/pkg/chat/domain"
)

// PreloadController serves a room's name and its latest messages in one
// round trip, primarily so clients have general-room content before joining
// anything (one controller per endpoint).
type PreloadController struct {
	UC  *usecase.GetHistoryUseCase
	Dir *directory.Directory
}

func NewPreloadController(uc *usecase.GetHistoryUseCase, dir *directory.Directory) *PreloadController {
	return &PreloadController{UC: uc, Dir: dir}
}

func (h *PreloadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		name, err := h.Dir.RoomName(ctx, roomID)
		if err != nil {
			if !errors.Is(err, cacheport.ErrMiss) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room store unavailable"})
				return
			}
			name = ""
			if roomID == chat.GeneralRoomID {
				name = "General"
			}
		}

		msgs, err := h.UC.Execute(ctx, usecase.GetHistoryInput{RoomID: roomID, Offset: 0, Size: 20})
		if err != nil {
			var verr *chat.ValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":       roomID,
			"name":     name,
			"messages": msgs,
		})
	}
}
