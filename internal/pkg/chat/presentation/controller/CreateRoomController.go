package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-chatrelay/internal/pkg/chat/application/directory"
	chat "go-chatrelay/internal/pkg/chat/domain"
)

// CreateRoomController resolves the canonical private room for two users and
// records it in both users' room sets (one controller per endpoint).
type CreateRoomController struct {
	Dir *directory.Directory
}

func NewCreateRoomController(dir *directory.Directory) *CreateRoomController {
	return &CreateRoomController{Dir: dir}
}

type createRoomRequest struct {
	User1 string `json:"user1" binding:"required"`
	User2 string `json:"user2" binding:"required"`
}

func (h *CreateRoomController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		roomID, err := chat.ResolvePrivateRoom(req.User1, req.User2)
		if err != nil {
			var verr *chat.ValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.Dir.RegisterPrivateRoom(ctx, roomID, req.User1, req.User2); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room membership store unavailable"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":    roomID,
			"names": h.Dir.DisplayNames(ctx, req.User1, req.User2),
		})
	}
}
