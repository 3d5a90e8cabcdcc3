package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	queueport "go-chatrelay/internal/infrastructure/queue/port"
	"go-chatrelay/internal/infrastructure/realtime"
	"go-chatrelay/internal/pkg/chat/application/directory"
	"go-chatrelay/internal/pkg/chat/application/routing"
	"go-chatrelay/internal/pkg/chat/application/usecase"
	"go-chatrelay/internal/pkg/chat/presentation/controller"
	repository "go-chatrelay/internal/pkg/chat/persistence/repository/port"
	"go-chatrelay/internal/pkg/presence"
)

// Deps carries the wired application services the chat endpoints need.
type Deps struct {
	Registry *realtime.Registry
	Router   *routing.MessageRouter
	Tracker  *presence.Tracker
	Dir      *directory.Directory
	History  *usecase.GetHistoryUseCase
	Users    repository.UserRepository
	Queue    queueport.Client
	Log      *zap.Logger
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router
// group. It constructs per-endpoint controllers and binds them directly to
// routes.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	socketCtl := controller.NewChatSocketController(d.Registry, d.Router, d.Tracker, d.Dir, d.Log)
	historyCtl := controller.NewGetHistoryController(d.History)
	preloadCtl := controller.NewPreloadController(d.History, d.Dir)
	sendCtl := controller.NewSendMessageController(d.Queue)
	createRoomCtl := controller.NewCreateRoomController(d.Dir)
	listRoomsCtl := controller.NewListRoomsController(d.Dir, d.Log)
	listUsersCtl := controller.NewListUsersController(d.Users, d.Tracker, d.Log)

	// GET /api/v1/chat/ws -> websocket endpoint for realtime chat
	g.GET("/chat/ws", socketCtl.Handle())

	// GET /api/v1/room/:roomId/preload -> room name + latest messages
	g.GET("/room/:roomId/preload", preloadCtl.Handle())

	// GET /api/v1/room/:roomId/messages -> paginated history, newest first
	g.GET("/room/:roomId/messages", historyCtl.Handle())

	// POST /api/v1/room/:roomId/messages -> enqueue a message for routing
	g.POST("/room/:roomId/messages", sendCtl.Handle())

	// POST /api/v1/room -> resolve + register a private room
	g.POST("/room", createRoomCtl.Handle())

	// GET /api/v1/rooms/:userId -> the user's visible rooms
	g.GET("/rooms/:userId", listRoomsCtl.Handle())

	// GET /api/v1/users -> all users with online flags
	g.GET("/users", listUsersCtl.Handle())
}
