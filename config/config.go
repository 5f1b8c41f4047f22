package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete routing core configuration
type Config struct {
	Router        RouterConfig
	Health        HealthConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Providers     ProvidersConfig
	Observability ObservabilityConfig
	Environment   string
}

// RouterConfig holds selection and failure isolation settings
type RouterConfig struct {
	// DefaultStrategy is used when a selection call does not force one;
	// empty means composite scoring
	DefaultStrategy string

	// ScoringPreset selects the composite scoring weights
	ScoringPreset string

	// VirtualNodes is the consistent hash ring positions per instance
	VirtualNodes int

	// FailureThreshold opens the circuit breaker
	FailureThreshold int

	// ResetTimeout is the breaker cool-down
	ResetTimeout time.Duration

	// MaxConsecutiveFailures gates availability before the breaker opens
	MaxConsecutiveFailures int

	// LatencyWindow is the per-instance latency sample capacity
	LatencyWindow int

	// CredentialKey is the hex-encoded 32-byte AES key for credential
	// encryption at rest; empty disables persistence of credentials
	CredentialKey string
}

// HealthConfig holds health monitor settings
type HealthConfig struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	CheckPath     string
	ProbeRetries  int
	DrainPoll     time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence
// over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// RedisConfig holds the optional Redis-backed provider store settings
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// ProvidersConfig holds per-type provider defaults
type ProvidersConfig struct {
	OpenAI OpenAIConfig
	Local  LocalConfig
}

// OpenAIConfig holds OpenAI provider defaults
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// LocalConfig holds the local provider toggle
type LocalConfig struct {
	Enabled bool
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a Config by loading environment variables
func New() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Router: RouterConfig{
			DefaultStrategy:        getEnv("ROUTER_DEFAULT_STRATEGY", ""),
			ScoringPreset:          getEnv("ROUTER_SCORING_PRESET", "balanced"),
			VirtualNodes:           getEnvAsInt("ROUTER_VIRTUAL_NODES", 100),
			FailureThreshold:       getEnvAsInt("ROUTER_FAILURE_THRESHOLD", 5),
			ResetTimeout:           getEnvAsDuration("ROUTER_RESET_TIMEOUT", 60*time.Second),
			MaxConsecutiveFailures: getEnvAsInt("ROUTER_MAX_CONSECUTIVE_FAILURES", 3),
			LatencyWindow:          getEnvAsInt("ROUTER_LATENCY_WINDOW", 100),
			CredentialKey:          getEnv("ROUTER_CREDENTIAL_KEY", ""),
		},
		Health: HealthConfig{
			CheckInterval: getEnvAsDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
			CheckTimeout:  getEnvAsDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			CheckPath:     getEnv("HEALTH_CHECK_PATH", "/health"),
			ProbeRetries:  getEnvAsInt("HEALTH_PROBE_RETRIES", 0),
			DrainPoll:     getEnvAsDuration("HEALTH_DRAIN_POLL", 100*time.Millisecond),
		},
		Database: loadDatabaseConfig(),
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			},
			Local: LocalConfig{
				Enabled: getEnvAsBool("LOCAL_PROVIDER_ENABLED", true),
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration fields are consistent
func (c *Config) Validate() error {
	if c.Router.FailureThreshold <= 0 {
		return fmt.Errorf("router failure threshold must be positive")
	}
	if c.Router.VirtualNodes <= 0 {
		return fmt.Errorf("router virtual node count must be positive")
	}
	if c.Router.CredentialKey != "" {
		key, err := hex.DecodeString(c.Router.CredentialKey)
		if err != nil {
			return fmt.Errorf("credential key must be hex encoded: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("credential key must decode to 32 bytes, got %d", len(key))
		}
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	if c.IsProduction() && c.Providers.OpenAI.APIKey == "" && !c.Providers.Local.Enabled {
		return fmt.Errorf("at least one provider must be configured in production")
	}
	return nil
}

// CredentialKeyBytes decodes the configured credential key. Returns nil
// when no key is configured.
func (c *RouterConfig) CredentialKeyBytes() []byte {
	if c.CredentialKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.CredentialKey)
	if err != nil {
		return nil
	}
	return key
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds
// from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses
// ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "router"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "router"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
