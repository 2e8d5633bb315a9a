package main

import (
	"context"
	"errors"
	"log"
	"log/slog"

	"chat-relay/internal/auth"
	"chat-relay/internal/config"
	"chat-relay/internal/database"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories/postgres"
	"chat-relay/internal/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	slog.SetDefault(config.NewLogger(cfg.Log))

	slog.Info("Starting database seeding...")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate schema: ", err)
	}

	ctx := context.Background()
	userRepo := postgres.NewUserRepository(db)
	roomRepo := postgres.NewRoomRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpirationTime, userRepo)
	authService := auth.NewAuthService(userRepo, tokens)
	roomService := services.NewRoomService(roomRepo, messageRepo)

	slog.Info("Creating initial users...")
	for _, username := range []string{"admin", "alice", "bob", "charlie"} {
		user, err := authService.Register(ctx, models.RegisterRequest{Username: username, Password: "123456"})
		switch {
		case errors.Is(err, auth.ErrUserAlreadyExists):
			slog.Info("User already exists", "username", username)
		case err != nil:
			log.Fatal("Failed to create user: ", err)
		default:
			slog.Info("Created user", "username", username, "id", user.ID)
		}
	}

	admin, err := userRepo.FindByUsername(ctx, "admin")
	if err != nil {
		log.Fatal("Failed to load admin user: ", err)
	}

	slog.Info("Creating initial rooms...")
	var general *models.RoomResponse
	for _, name := range []string{"general", "random", "development"} {
		room, err := roomService.CreateRoom(ctx, name, admin.ID)
		if errors.Is(err, services.ErrRoomAlreadyExist) {
			slog.Info("Room already exists", "name", name)
			continue
		}
		if err != nil {
			log.Fatal("Failed to create room: ", err)
		}
		if name == "general" {
			general = room
		}
	}

	// Sample history only for a freshly created general room.
	if general != nil {
		if err := seedSampleMessages(ctx, userRepo, messageRepo, general.ID); err != nil {
			slog.Warn("Failed to seed sample messages", "error", err)
		}
	}

	slog.Info("Database seeding completed successfully!")
}

func seedSampleMessages(ctx context.Context, users *postgres.UserRepository, messages *postgres.MessageRepository, roomID uint) error {
	samples := []struct {
		username string
		content  string
	}{
		{"admin", "Welcome to the general room!"},
		{"alice", "Hi everyone! Excited to be here."},
		{"bob", "Hello! Looking forward to working together."},
	}

	for _, s := range samples {
		user, err := users.FindByUsername(ctx, s.username)
		if err != nil {
			return err
		}
		if err := messages.Commit(ctx, roomID, user.ID, s.content); err != nil {
			return err
		}
	}
	slog.Info("Sample messages created", "roomID", roomID, "count", len(samples))
	return nil
}
