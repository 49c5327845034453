package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Request     RequestConfig
	Chat        ChatConfig
	Cleanup     CleanupConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// RedisConfig holds Redis configuration for chat rate limiting
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds identity verification configuration
type AuthConfig struct {
	// CredentialsFile points at a Firebase service-account JSON file.
	// Empty means application-default credentials.
	CredentialsFile string
	ProjectID       string
	// AllowAnonymous keeps verification failures non-fatal on public
	// endpoints; the caller is treated as anonymous instead.
	AllowAnonymous bool
}

// RequestConfig bounds request creation and discovery
type RequestConfig struct {
	MinTTL          time.Duration
	MaxTTL          time.Duration
	DefaultTTL      time.Duration
	MinRadiusKm     float64
	MaxRadiusKm     float64
	DefaultRadiusKm float64
	MaxItemLen      int
	MaxPlatformLen  int
	MaxGeoRanges    int
	NearbyLimit     int
}

// ChatConfig bounds the message log and its delivery
type ChatConfig struct {
	MaxMessageLength int
	PageSize         int
	RateLimit        int
	RateLimitWindow  time.Duration
}

// CleanupConfig drives the expiry sweep
type CleanupConfig struct {
	Interval    time.Duration
	BatchSize   int
	InlineBatch int
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "poolorder"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			AllowAnonymous:  getEnvAsBool("AUTH_ALLOW_ANONYMOUS", true),
		},
		Request: RequestConfig{
			MinTTL:          getEnvAsDuration("REQUEST_MIN_TTL", 5*time.Minute),
			MaxTTL:          getEnvAsDuration("REQUEST_MAX_TTL", 240*time.Minute),
			DefaultTTL:      getEnvAsDuration("REQUEST_DEFAULT_TTL", 60*time.Minute),
			MinRadiusKm:     getEnvAsFloat("REQUEST_MIN_RADIUS_KM", 0.5),
			MaxRadiusKm:     getEnvAsFloat("REQUEST_MAX_RADIUS_KM", 10),
			DefaultRadiusKm: getEnvAsFloat("REQUEST_DEFAULT_RADIUS_KM", 1),
			MaxItemLen:      getEnvAsInt("REQUEST_MAX_ITEM_LEN", 120),
			MaxPlatformLen:  getEnvAsInt("REQUEST_MAX_PLATFORM_LEN", 60),
			MaxGeoRanges:    getEnvAsInt("REQUEST_MAX_GEO_RANGES", 9),
			NearbyLimit:     getEnvAsInt("REQUEST_NEARBY_LIMIT", 100),
		},
		Chat: ChatConfig{
			MaxMessageLength: getEnvAsInt("CHAT_MAX_MESSAGE_LENGTH", 400),
			PageSize:         getEnvAsInt("CHAT_PAGE_SIZE", 50),
			RateLimit:        getEnvAsInt("CHAT_RATE_LIMIT", 30),
			RateLimitWindow:  getEnvAsDuration("CHAT_RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		Cleanup: CleanupConfig{
			Interval:    getEnvAsDuration("CLEANUP_INTERVAL", 5*time.Minute),
			BatchSize:   getEnvAsInt("CLEANUP_BATCH_SIZE", 50),
			InlineBatch: getEnvAsInt("CLEANUP_INLINE_BATCH", 100),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Request.MinTTL <= 0 || config.Request.MaxTTL < config.Request.MinTTL {
		return fmt.Errorf("invalid request TTL bounds: min=%s max=%s", config.Request.MinTTL, config.Request.MaxTTL)
	}
	if config.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("chat max message length must be positive")
	}
	if config.Cleanup.BatchSize <= 0 {
		return fmt.Errorf("cleanup batch size must be positive")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
