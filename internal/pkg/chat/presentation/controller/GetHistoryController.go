package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-chatrelay/internal/pkg/chat/application/usecase"
	chat "go-chatrelay/internal/pkg/chat/domain"
)

// GetHistoryController serves paginated room history from the cache-aside
// read path (one controller per endpoint).
type GetHistoryController struct {
	UC *usecase.GetHistoryUseCase
}

func NewGetHistoryController(uc *usecase.GetHistoryUseCase) *GetHistoryController {
	return &GetHistoryController{UC: uc}
}

func (h *GetHistoryController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")

		offset := 0
		size := 50
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}
		if v := c.Query("size"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				size = n
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, usecase.GetHistoryInput{RoomID: roomID, Offset: offset, Size: size})
		if err != nil {
			var verr *chat.ValidationError
			status := http.StatusInternalServerError
			if errors.As(err, &verr) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"roomId":   roomID,
			"messages": msgs,
			"offset":   offset,
			"size":     size,
			"count":    len(msgs),
		})
	}
}
