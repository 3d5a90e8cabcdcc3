package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	queueport "go-chatrelay/internal/infrastructure/queue/port"
	"go-chatrelay/internal/pkg/chat/application/task"
)

// SendMessageController accepts a message over HTTP and enqueues it for the
// routing worker, returning as soon as the message is accepted (one
// controller per endpoint).
type SendMessageController struct {
	Q queueport.Client
}

func NewSendMessageController(client queueport.Client) *SendMessageController {
	return &SendMessageController{Q: client}
}

type sendMessageRequest struct {
	From string `json:"from" binding:"required"`
	Body string `json:"message" binding:"required"`
	Date int64  `json:"date"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		if roomID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Date <= 0 {
			req.Date = time.Now().UnixMilli()
		}

		payload := task.RouteMessagePayload{
			From:   req.From,
			RoomID: roomID,
			Body:   req.Body,
			Date:   req.Date,
		}
		b, err := json.Marshal(payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode task payload"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		opts := queueport.EnqueueOption{Queue: "chat", MaxRetry: 20}
		id, err := h.Q.Enqueue(ctx, queueport.Task{Type: task.RouteMessageTaskType, Payload: b}, opts)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue message"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status": "queued",
			"taskId": id,
			"roomId": roomID,
		})
	}
}
