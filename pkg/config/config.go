package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration for the web front
	Server struct {
		Port            string
		Env             string
		Timeout         time.Duration
		ShutdownTimeout time.Duration
		BaseURL         string
	}

	// Backend is the REST API the front-end consumes
	Backend struct {
		URL               string
		Timeout           time.Duration
		ValidateResponses bool
		FailureThreshold  uint
		SuccessThreshold  uint
		RetryTimeout      time.Duration
		HealthPath        string
	}

	// Session persistence configuration
	Session struct {
		// Store is one of memory, redis, postgres
		Store      string
		CookieName string
		TTL        time.Duration
		Secure     bool
		RedisURL   string
		KeyPrefix  string
		// File is the session file used by the terminal client
		File string
	}

	// Database configuration for the postgres session store
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
		// SessionSecretKey names the secret used to sign session cookies
		SessionSecretKey string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Audio playback configuration
	Audio struct {
		// PlayerCommand plays a local audio file in the terminal client
		PlayerCommand []string
		// URLTTL bounds how long an unreleased audio URL stays servable
		URLTTL         time.Duration
		MaxURLs        int
		CleanupPeriod  time.Duration
		RequestTimeout time.Duration
	}

	// Observability configuration
	Observability struct {
		ServiceName   string
		TracingEnable bool
		MetricsPath   string
	}

	// GRPC health endpoint
	GRPC struct {
		Enabled bool
		Port    string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment without touching the singleton
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "3000")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port)

	cfg.Backend.URL = strings.TrimRight(getEnvString("API_URL", "http://localhost:8000"), "/")
	cfg.Backend.Timeout = getEnvDuration("API_TIMEOUT", 60*time.Second)
	cfg.Backend.ValidateResponses = getEnvBool("API_VALIDATE_RESPONSES", false)
	cfg.Backend.FailureThreshold = uint(getEnvInt("API_BREAKER_FAILURES", 5))
	cfg.Backend.SuccessThreshold = uint(getEnvInt("API_BREAKER_SUCCESSES", 2))
	cfg.Backend.RetryTimeout = getEnvDuration("API_BREAKER_RETRY", 30*time.Second)
	cfg.Backend.HealthPath = getEnvString("API_HEALTH_PATH", "/health")

	cfg.Session.Store = getEnvString("SESSION_STORE", "memory")
	cfg.Session.CookieName = getEnvString("SESSION_COOKIE", "clone_session")
	cfg.Session.TTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.Session.Secure = getEnvBool("SESSION_SECURE", cfg.Server.Env == "production")
	cfg.Session.RedisURL = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Session.KeyPrefix = getEnvString("SESSION_KEY_PREFIX", "clone:session:")
	cfg.Session.File = getEnvString("SESSION_FILE", defaultSessionFile())

	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "clone-frontend")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.SessionSecretKey = getEnvString("SESSION_SECRET_KEY", "session-secret")

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Audio.PlayerCommand = getEnvStringSlice("AUDIO_PLAYER", []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"})
	cfg.Audio.URLTTL = getEnvDuration("AUDIO_URL_TTL", 10*time.Minute)
	cfg.Audio.MaxURLs = getEnvInt("AUDIO_MAX_URLS", 500)
	cfg.Audio.CleanupPeriod = getEnvDuration("AUDIO_CLEANUP_PERIOD", time.Minute)
	cfg.Audio.RequestTimeout = getEnvDuration("AUDIO_REQUEST_TIMEOUT", 60*time.Second)

	cfg.Observability.ServiceName = getEnvString("OTEL_SERVICE_NAME", "clone-frontend")
	cfg.Observability.TracingEnable = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.MetricsPath = getEnvString("METRICS_PATH", "/metrics")

	cfg.GRPC.Enabled = getEnvBool("GRPC_ENABLED", false)
	cfg.GRPC.Port = getEnvString("GRPC_PORT", "9090")

	return cfg
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".clonechat-session.json"
	}
	return dir + string(os.PathSeparator) + "clonechat" + string(os.PathSeparator) + "session.json"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
