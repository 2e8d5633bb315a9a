package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"chat-relay/internal/config"
	"chat-relay/internal/database"
	"chat-relay/internal/services"
)

const schemaVersion = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	slog.SetDefault(config.NewLogger(cfg.Log))

	slog.Info("Starting database migration...")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	slog.Info("Database connection established")

	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate schema: ", err)
	}

	// The migration marker is informational; a missing Redis does not fail the run.
	redisClient, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		slog.Warn("Skipping migration state, Redis unavailable", "error", err)
	} else {
		defer redisClient.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		redisService := services.NewRedisService(redisClient)
		if previous, err := redisService.GetMigrationState(ctx); err == nil && len(previous) > 0 {
			slog.Info("Previous migration state", "version", previous["version"], "status", previous["status"])
		}
		if err := redisService.SetMigrationState(ctx, schemaVersion, "ready"); err != nil {
			slog.Warn("Failed to record migration state", "error", err)
		}
	}

	slog.Info("Database migration completed successfully!", "version", schemaVersion)
}
