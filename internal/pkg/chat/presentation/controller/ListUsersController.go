package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	repository "go-chatrelay/internal/pkg/chat/persistence/repository/port"
	"go-chatrelay/internal/pkg/presence"
)

// ListUsersController returns every known user with their fleet-wide online
// flag (one controller per endpoint).
type ListUsersController struct {
	Repo    repository.UserRepository
	Tracker *presence.Tracker
	Log     *zap.Logger
}

func NewListUsersController(repo repository.UserRepository, tracker *presence.Tracker, log *zap.Logger) *ListUsersController {
	return &ListUsersController{Repo: repo, Tracker: tracker, Log: log}
}

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

func (h *ListUsersController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		users, err := h.Repo.ListUsers(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch users"})
			return
		}

		// Presence degrades to "everyone offline" rather than failing the
		// listing.
		online, err := h.Tracker.ListOnline(ctx)
		if err != nil {
			h.Log.Warn("users: presence degraded", zap.Error(err))
			online = map[string]struct{}{}
		}

		views := lo.Map(users, func(u repository.User, _ int) userView {
			_, isOnline := online[u.ID]
			return userView{ID: u.ID, Username: u.Username, Online: isOnline}
		})
		c.JSON(http.StatusOK, views)
	}
}
