package main

// @title           Chat Relay API
// @version         1.0
// @description     Room-scoped real-time chat over WebSocket with Redis fan-out and write-behind persistence
// @host            localhost:8080
// @BasePath        /
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/internal/api/routes"
	"chat-relay/internal/auth"
	"chat-relay/internal/config"
	"chat-relay/internal/database"
	"chat-relay/internal/repositories/kafka"
	"chat-relay/internal/repositories/postgres"
	"chat-relay/internal/services"
	"chat-relay/internal/websocket"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)
	slog.Info("Starting chat relay")

	redisClient, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepository(db)
	roomRepo := postgres.NewRoomRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	redisService := services.NewRedisService(redisClient)
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpirationTime, userRepo)

	var sink services.MessageSink = messageRepo
	var stream *kafka.MessageStream
	if len(cfg.Kafka.Brokers) > 0 {
		if cfg.Kafka.Client == "sarama" {
			stream, err = kafka.NewSaramaMessageStream(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				slog.Error("Failed to create Kafka producer", "error", err)
				os.Exit(1)
			}
		} else {
			stream = kafka.NewMessageStream(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		}
		sink = services.NewMirroredSink(messageRepo, logger, stream)
		slog.Info("Mirroring messages to Kafka", "client", cfg.Kafka.Client, "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	queue := services.NewMessageQueue(sink, services.MessageQueueConfig{
		CommitInterval: cfg.Queue.CommitInterval,
		CommitTimeout:  cfg.Queue.CommitTimeout,
	}, logger)

	relay := websocket.NewRelay(tokens, roomRepo, websocket.NewRedisBroker(redisService), queue, websocket.NewRegistry(), websocket.RelayConfig{
		Client: websocket.ClientConfig{
			PollTimeout:    cfg.WebSocket.PollTimeout,
			WriteWait:      cfg.WebSocket.WriteWait,
			PongWait:       cfg.WebSocket.PongWait,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)

	router := routes.NewRouter(routes.Dependencies{
		AuthService:    auth.NewAuthService(userRepo, tokens),
		Tokens:         tokens,
		RoomService:    services.NewRoomService(roomRepo, messageRepo),
		Relay:          relay,
		Queue:          queue,
		RateLimiter:    redisService,
		Health:         redisService,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting requests; hijacked sockets are not covered by this.
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if err := relay.Shutdown(ctx); err != nil {
		slog.Error("Timed out closing WebSocket connections", "error", err)
	}

	// Drain runs after the relay so no connection can enqueue behind it.
	if err := queue.Shutdown(ctx); err != nil {
		slog.Error("Timed out draining message queue", "pending", queue.Len(), "error", err)
	}

	if stream != nil {
		if err := stream.Close(); err != nil {
			slog.Warn("Failed to close Kafka writer", "error", err)
		}
	}
	if err := redisClient.Close(); err != nil {
		slog.Warn("Failed to close Redis client", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	slog.Info("Server stopped")
}
