package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string
	LogMode string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	JWTSecret string
	JWTLeeway time.Duration

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	LastSeenTTL   time.Duration

	WS WSConfig
}

// WSConfig tunes the realtime socket layer.
type WSConfig struct {
	AllowedOrigins   []string
	SendBufferSize   int
	MaxInflight      int64
	MaxMessageBytes  int64
	PongWait         time.Duration
	WriteWait        time.Duration
	MessageRateLimit int
	HandshakeLimit   int
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		LogMode:       getEnv("LOG_MODE", "development"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "socialhub"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		JWTLeeway:     getEnvAsDuration("JWT_LEEWAY", 30*time.Second),
		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		LastSeenTTL:   getEnvAsDuration("PRESENCE_LAST_SEEN_TTL", 30*24*time.Hour),
		WS: WSConfig{
			AllowedOrigins:   getEnvAsList("WS_ALLOWED_ORIGINS", nil),
			SendBufferSize:   getEnvAsInt("WS_SEND_BUFFER", 256),
			MaxInflight:      int64(getEnvAsInt("WS_MAX_INFLIGHT", 16)),
			MaxMessageBytes:  int64(getEnvAsInt("WS_MAX_MESSAGE_BYTES", 64*1024)),
			PongWait:         getEnvAsDuration("WS_PONG_WAIT", 60*time.Second),
			WriteWait:        getEnvAsDuration("WS_WRITE_WAIT", 10*time.Second),
			MessageRateLimit: getEnvAsInt("WS_MESSAGE_RATE_LIMIT", 60),
			HandshakeLimit:   getEnvAsInt("WS_HANDSHAKE_LIMIT", 30),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
