package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "a-very-secret-key-should-be-longer-and-random"

// Config holds the ledger server configuration.
type Config struct {
	DatabaseURL        string
	DatabaseMaxConns   int32 // Zero keeps the pgx default
	Port               string
	IsProduction       bool
	EnableDBCheck      bool
	MigrationsPath     string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string
	RateLimit          string        // Formatted ulule rate, e.g. "120-M"
	RedisURL           string        // Empty keeps rate limit counters in memory
	MutationTimeout    time.Duration // Upper bound for one balance operation
	ReportTimezone     *time.Location
}

// AgentConfig holds the conductor agent configuration.
type AgentConfig struct {
	Port                string
	IsProduction        bool
	LedgerServerURL     string
	AgentToken          string // Bearer token presented to the ledger server
	ConductorID         string
	QueueDBPath         string
	QueueMaxLength      int
	SyncInterval        time.Duration
	SyncMaxAttempts     int
	SyncBackoffBase     time.Duration
	SyncBackoffMax      time.Duration
	ConnectivityTimeout time.Duration
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PGSQL_MAX_CONNS", 0)
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("MIGRATIONS_PATH", "file://migrations")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_ISSUER", "fare-collection-app")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("RATE_LIMIT", "120-M")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("MUTATION_TIMEOUT", "5s")
	viper.SetDefault("REPORT_TIMEZONE", "UTC")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.DatabaseMaxConns = viper.GetInt32("PGSQL_MAX_CONNS")

	cfg.Port = viper.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")
	cfg.MigrationsPath = viper.GetString("MIGRATIONS_PATH")

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "" || cfg.JWTSecret == defaultJWTSecret {
		cfg.JWTSecret = defaultJWTSecret // !! CHANGE IN PRODUCTION !!
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}
	cfg.JWTIssuer = viper.GetString("JWT_ISSUER")

	cfg.CORSAllowedOrigins = splitList(viper.GetString("CORS_ALLOWED_ORIGINS"))
	cfg.RateLimit = viper.GetString("RATE_LIMIT")
	cfg.RedisURL = viper.GetString("REDIS_URL")
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set. Rate limit counters are kept per process.")
	}

	cfg.MutationTimeout = durationOrDefault("MUTATION_TIMEOUT", 5*time.Second)

	tzName := viper.GetString("REPORT_TIMEZONE")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Printf("Warning: Invalid value for REPORT_TIMEZONE ('%s'). Defaulting to UTC.\n", tzName)
		loc = time.UTC
	}
	cfg.ReportTimezone = loc

	return cfg, nil
}

// LoadAgentConfig loads the conductor agent configuration from environment variables and .env file if present.
func LoadAgentConfig() (*AgentConfig, error) {
	_ = godotenv.Load()

	viper.SetDefault("AGENT_PORT", "8090")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("LEDGER_SERVER_URL", "http://localhost:8080")
	viper.SetDefault("AGENT_TOKEN", "")
	viper.SetDefault("AGENT_CONDUCTOR_ID", "")
	viper.SetDefault("QUEUE_DB_PATH", "offline_queue.db")
	viper.SetDefault("QUEUE_MAX_LENGTH", 5000)
	viper.SetDefault("SYNC_INTERVAL", "30s")
	viper.SetDefault("SYNC_MAX_ATTEMPTS", 10)
	viper.SetDefault("SYNC_BACKOFF_BASE", "2s")
	viper.SetDefault("SYNC_BACKOFF_MAX", "5m")
	viper.SetDefault("CONNECTIVITY_TIMEOUT", "3s")

	viper.AutomaticEnv()

	cfg := &AgentConfig{
		Port:            viper.GetString("AGENT_PORT"),
		IsProduction:    viper.GetBool("IS_PRODUCTION"),
		LedgerServerURL: strings.TrimRight(viper.GetString("LEDGER_SERVER_URL"), "/"),
		AgentToken:      viper.GetString("AGENT_TOKEN"),
		ConductorID:     viper.GetString("AGENT_CONDUCTOR_ID"),
		QueueDBPath:     viper.GetString("QUEUE_DB_PATH"),
		QueueMaxLength:  viper.GetInt("QUEUE_MAX_LENGTH"),
		SyncMaxAttempts: viper.GetInt("SYNC_MAX_ATTEMPTS"),
	}

	if cfg.AgentToken == "" {
		log.Println("Warning: AGENT_TOKEN not set. The ledger server will reject replays.")
	}
	if cfg.ConductorID == "" {
		log.Println("Warning: AGENT_CONDUCTOR_ID not set. Operations will be rejected until it is configured.")
	}
	if cfg.QueueMaxLength <= 0 {
		cfg.QueueMaxLength = 5000
		log.Printf("Warning: QUEUE_MAX_LENGTH must be positive. Defaulting to %d.\n", cfg.QueueMaxLength)
	}
	if cfg.SyncMaxAttempts <= 0 {
		cfg.SyncMaxAttempts = 10
		log.Printf("Warning: SYNC_MAX_ATTEMPTS must be positive. Defaulting to %d.\n", cfg.SyncMaxAttempts)
	}

	cfg.SyncInterval = durationOrDefault("SYNC_INTERVAL", 30*time.Second)
	cfg.SyncBackoffBase = durationOrDefault("SYNC_BACKOFF_BASE", 2*time.Second)
	cfg.SyncBackoffMax = durationOrDefault("SYNC_BACKOFF_MAX", 5*time.Minute)
	cfg.ConnectivityTimeout = durationOrDefault("CONNECTIVITY_TIMEOUT", 3*time.Second)

	return cfg, nil
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback.String())
		}
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
