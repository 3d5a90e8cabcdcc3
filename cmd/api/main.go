package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	v1 "go-chatrelay/cmd/api/router/v1"
	"go-chatrelay/internal/config"
	busadapter "go-chatrelay/internal/infrastructure/bus/adapter"
	cacheadapter "go-chatrelay/internal/infrastructure/cache/adapter"
	"go-chatrelay/internal/infrastructure/database"
	queueadapter "go-chatrelay/internal/infrastructure/queue/adapter"
	"go-chatrelay/internal/infrastructure/realtime"
	"go-chatrelay/internal/pkg/chat/application/directory"
	"go-chatrelay/internal/pkg/chat/application/routing"
	"go-chatrelay/internal/pkg/chat/application/task"
	"go-chatrelay/internal/pkg/chat/application/usecase"
	httpHandler "go-chatrelay/internal/pkg/chat/presentation/http"
	repoadapter "go-chatrelay/internal/pkg/chat/persistence/repository/adapter"
	"go-chatrelay/internal/pkg/presence"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Info(".env file not loaded", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	log = log.With(zap.String("server_id", cfg.ServerID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := database.Connect(connectCtx, cfg.DBURL)
	cancel()
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	cache, err := cacheadapter.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer cache.Close()

	bus := busadapter.NewRedisBus(cache.Client(), cfg.ServerID, log)

	// Wire the core: durable store -> cache-aside use cases -> router.
	msgRepo := repoadapter.NewPgMessageRepository(pool)
	userRepo := repoadapter.NewPgUserRepository(pool)
	dir := directory.New(cache, log)
	tracker := presence.NewTracker(cache, bus, log)
	registry := realtime.NewRegistry()
	defer registry.Close()

	appendUC := usecase.NewAppendMessageUseCase(msgRepo, cache, log)
	historyUC := usecase.NewGetHistoryUseCase(msgRepo, cache, log,
		cfg.HistoryWindow, time.Duration(cfg.HistoryTTLSeconds)*time.Second)
	msgRouter := routing.NewMessageRouter(appendUC, msgRepo, dir, bus, registry, log)

	// Fan-out subscriber: relays every remote instance's events to local
	// connections, discarding self-echoes.
	dispatcher := routing.NewDispatcher(cfg.ServerID, registry, log)
	go func() {
		for {
			err := bus.Subscribe(ctx, dispatcher.Handle)
			if ctx.Err() != nil {
				return
			}
			log.Error("bus subscription lost, retrying", zap.Error(err))
			time.Sleep(time.Second)
		}
	}()

	// Background routing worker for the HTTP send path.
	queueClient, err := queueadapter.NewAsynqClient(cfg.RedisURL)
	if err != nil {
		log.Fatal("failed to create queue client", zap.Error(err))
	}
	defer queueClient.Close()

	queueServer, err := queueadapter.NewAsynqServer(cfg.RedisURL, 10, log)
	if err != nil {
		log.Fatal("failed to create queue server", zap.Error(err))
	}
	task.RegisterRouteMessageTask(queueServer, msgRouter, log)
	go func() {
		if err := queueServer.Run(ctx); err != nil {
			log.Error("queue server stopped", zap.Error(err))
		}
	}()

	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	v1.RegisterRoutes(r, httpHandler.Deps{
		Registry: registry,
		Router:   msgRouter,
		Tracker:  tracker,
		Dir:      dir,
		History:  historyUC,
		Users:    userRepo,
		Queue:    queueClient,
		Log:      log,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway listening", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}
