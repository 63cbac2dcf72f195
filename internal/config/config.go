package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"

	BusRedis = "redis"
	BusLocal = "local"
)

// Config holds application configuration loaded from environment
type Config struct {
	Server  ServerConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Round   RoundConfig
	Storage string // mongo or memory
	Bus     string // redis or local
	Log     LogConfig
}

type ServerConfig struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Disabled skips Redis entirely: no round cache, local event bus
	Disabled bool
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// RoundConfig tunes the countdown monitor
type RoundConfig struct {
	TickInterval time.Duration
	PollInterval time.Duration
}

type LogConfig struct {
	Level string
}

// Load reads configuration from environment, with optional .env file
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSAllowedOrigins: splitTrim(getEnv("CORS_ALLOWED_ORIGINS", "*"), ","),
			CORSAllowedMethods: splitTrim(getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"), ","),
			CORSAllowedHeaders: splitTrim(getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"), ","),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "planningpoker"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimPrefix(getEnv("REDIS_ADDR", "localhost:6379"), "redis://"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Disabled: getEnvBool("REDIS_DISABLED", false),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-me-in-production"),
			TTL:    time.Duration(getEnvInt("JWT_EXPIRE_HOURS", 24)) * time.Hour,
		},
		Round: RoundConfig{
			TickInterval: getEnvDuration("ROUND_TICK_INTERVAL", time.Second),
			PollInterval: getEnvDuration("ROUND_POLL_INTERVAL", 5*time.Second),
		},
		Storage: strings.ToLower(getEnv("STORAGE_BACKEND", StorageMongo)),
		Bus:     strings.ToLower(getEnv("EVENT_BUS", BusRedis)),
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.Storage)
	}
	switch c.Bus {
	case BusRedis, BusLocal:
	default:
		return fmt.Errorf("config: unknown EVENT_BUS %q", c.Bus)
	}
	if c.Bus == BusRedis && c.Redis.Disabled {
		return fmt.Errorf("config: EVENT_BUS=redis needs Redis")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("config: JWT_EXPIRE_HOURS must be positive")
	}
	if c.Round.TickInterval <= 0 || c.Round.PollInterval <= 0 {
		return fmt.Errorf("config: round intervals must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
