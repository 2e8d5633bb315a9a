package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	Queue     QueueConfig
	Kafka     KafkaConfig
	Log       LogConfig
}

var (
	ConfigInstance *Config
	once           sync.Once
	loadErr        error
)

type ServerConfig struct {
	Host           string
	Port           string `validate:"required"`
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URI      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the postgres connection string, preferring DATABASE_URL when set.
func (d DatabaseConfig) DSN() string {
	if d.URI != "" {
		return d.URI
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	URI          string `validate:"required"`
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int `validate:"min=1"`
	MinIdleConns int
}

type JWTConfig struct {
	Secret         string        `validate:"required"`
	ExpirationTime time.Duration `validate:"gt=0"`
}

type WebSocketConfig struct {
	PollTimeout    time.Duration `validate:"gt=0"`
	WriteWait      time.Duration `validate:"gt=0"`
	PongWait       time.Duration `validate:"gt=0"`
	MaxMessageSize int64         `validate:"gt=0"`
}

type QueueConfig struct {
	CommitInterval time.Duration
	CommitTimeout  time.Duration `validate:"gt=0"`
}

// KafkaConfig enables mirroring of persisted messages to a topic when Brokers
// is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string `validate:"required_with=Brokers"`
	Client  string `validate:"oneof=kafka-go sarama"`
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("NOTIFY_HOST", "")
	v.SetDefault("NOTIFY_PORT", "8080")
	v.SetDefault("NOTIFY_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("NOTIFY_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("NOTIFY_IDLE_TIMEOUT", 120*time.Second)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")
	v.SetDefault("NOTIFY_JWT_SECRET", "secret")
	v.SetDefault("NOTIFY_JWT_EXPIRE", "30m")
	v.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 100)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "password")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_DB", "postgres")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("WS_POLL_TIMEOUT", time.Second)
	v.SetDefault("WS_WRITE_WAIT", 10*time.Second)
	v.SetDefault("WS_PONG_WAIT", 60*time.Second)
	v.SetDefault("WS_MAX_MESSAGE_SIZE", 4096)
	v.SetDefault("QUEUE_COMMIT_INTERVAL", 100*time.Millisecond)
	v.SetDefault("QUEUE_COMMIT_TIMEOUT", 5*time.Second)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "chat.messages")
	v.SetDefault("KAFKA_CLIENT", "kafka-go")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// LoadConfig reads the process configuration once. A .env file in the working
// directory is loaded first when present; real environment variables win.
func LoadConfig() (*Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file found, using environment variables")
		}
		ConfigInstance, loadErr = Load(viper.New())
	})

	return ConfigInstance, loadErr
}

// Load builds a Config from v, which must not have been configured by the caller
// beyond overrides via v.Set. Tests use it to bypass the process-wide singleton.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("NOTIFY_HOST"),
			Port:           v.GetString("NOTIFY_PORT"),
			ReadTimeout:    v.GetDuration("NOTIFY_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("NOTIFY_WRITE_TIMEOUT"),
			IdleTimeout:    v.GetDuration("NOTIFY_IDLE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			URI:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		Redis: RedisConfig{
			URI:          v.GetString("REDIS_URL"),
			MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("NOTIFY_JWT_SECRET"),
			ExpirationTime: v.GetDuration("NOTIFY_JWT_EXPIRE"),
		},
		WebSocket: WebSocketConfig{
			PollTimeout:    v.GetDuration("WS_POLL_TIMEOUT"),
			WriteWait:      v.GetDuration("WS_WRITE_WAIT"),
			PongWait:       v.GetDuration("WS_PONG_WAIT"),
			MaxMessageSize: v.GetInt64("WS_MAX_MESSAGE_SIZE"),
		},
		Queue: QueueConfig{
			CommitInterval: v.GetDuration("QUEUE_COMMIT_INTERVAL"),
			CommitTimeout:  v.GetDuration("QUEUE_COMMIT_TIMEOUT"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
			Client:  strings.ToLower(v.GetString("KAFKA_CLIENT")),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
