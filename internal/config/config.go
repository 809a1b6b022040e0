// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/atspro/atspro/internal/datastore"
)

// Event drivers.
const (
	EventsNone    = "none"
	EventsAMQP    = "amqp"
	EventsRedis   = "redis"
	EventsWebhook = "webhook"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Optional rotated log file, written in addition to stdout
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`
	LogCompress   bool   `env:"LOG_COMPRESS" envDefault:"true"`

	// Server timeouts. Analyses wait on the scoring oracle, so writes get
	// more room than reads.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Local store (file, memory, redis, postgres)
	StoragePrefix string `env:"STORAGE_PREFIX" envDefault:"ats_db"`
	LocalStore    string `env:"LOCAL_STORE" envDefault:"file"`
	LocalStoreDir string `env:"LOCAL_STORE_DIR" envDefault:"data"`
	RedisURL      string `env:"REDIS_URL"`
	DatabaseURL   string `env:"DATABASE_URL"`
	KVTable       string `env:"KV_TABLE" envDefault:"kv_entries"`

	// Remote document Data API. Placeholder values leave it disabled.
	DataAPIEndpoint string        `env:"DATA_API_ENDPOINT" envDefault:"https://data.mongodb-api.com/app/YOUR_APP_ID/endpoint/data/v1"`
	DataAPIKey      string        `env:"DATA_API_KEY" envDefault:"YOUR_GENERATED_API_KEY"`
	DataAPISource   string        `env:"DATA_API_SOURCE" envDefault:"Cluster0"`
	DataAPIDatabase string        `env:"DATA_API_DATABASE" envDefault:"ATS_PRO_DB"`
	DataAPITimeout  time.Duration `env:"DATA_API_TIMEOUT" envDefault:"10s"`

	// Scoring oracle
	OracleDriver  string `env:"ORACLE_DRIVER" envDefault:"genai"`
	GoogleAPIKey  string `env:"GOOGLE_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`

	// Credentials stored as plaintext (default), argon2 or bcrypt
	CredentialScheme string `env:"CREDENTIAL_SCHEME" envDefault:"plaintext"`

	// Upload size limit in bytes (default 5MB)
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"5242880"`

	// Original upload archive (S3-compatible). Disabled without a bucket.
	ArchiveBucket    string `env:"ARCHIVE_BUCKET"`
	ArchiveEndpoint  string `env:"ARCHIVE_ENDPOINT"`
	ArchiveRegion    string `env:"ARCHIVE_REGION" envDefault:"auto"`
	ArchiveAccessKey string `env:"ARCHIVE_ACCESS_KEY"`
	ArchiveSecretKey string `env:"ARCHIVE_SECRET_KEY"`

	// Status events
	EventsDriver string `env:"EVENTS_DRIVER" envDefault:"none"`
	RabbitMQURL  string `env:"RABBITMQ_URL"`

	// Webhook delivery of status events. Insecure mode allows http and
	// private addresses for local receivers.
	WebhookURL           string `env:"WEBHOOK_URL"`
	WebhookSecret        string `env:"WEBHOOK_SECRET"`
	WebhookAllowInsecure bool   `env:"WEBHOOK_ALLOW_INSECURE" envDefault:"false"`

	// Status timeline consumer. Reads the Redis event stream.
	TimelineEnabled bool `env:"TIMELINE_ENABLED" envDefault:"false"`

	// Rate limiting. Buckets live in Redis when REDIS_URL is set, in process otherwise.
	RateLimitEnabled   bool `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	AnalysisRatePerMin int  `env:"ANALYSIS_RATE_PER_MINUTE" envDefault:"10"`
	AnalysisBurst      int  `env:"ANALYSIS_BURST" envDefault:"3"`
	LoginRatePerMin    int  `env:"LOGIN_RATE_PER_MINUTE" envDefault:"20"`
	LoginBurst         int  `env:"LOGIN_BURST" envDefault:"5"`

	// Metrics exposition: "memory" (default) or "prometheus"
	MetricsBackend string `env:"METRICS_BACKEND" envDefault:"memory"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// RemoteConfig returns the Data API settings.
func (c *Config) RemoteConfig() datastore.RemoteConfig {
	return datastore.RemoteConfig{
		Endpoint:   c.DataAPIEndpoint,
		APIKey:     c.DataAPIKey,
		DataSource: c.DataAPISource,
		Database:   c.DataAPIDatabase,
	}
}

// ArchiveEnabled reports whether uploads are archived.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.LocalStore {
	case "file", "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when LOCAL_STORE=redis")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when LOCAL_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown LOCAL_STORE %q", c.LocalStore)
	}

	switch c.OracleDriver {
	case "genai", "agent":
	default:
		return fmt.Errorf("unknown ORACLE_DRIVER %q", c.OracleDriver)
	}

	switch c.CredentialScheme {
	case "plaintext", "argon2", "bcrypt":
	default:
		return fmt.Errorf("unknown CREDENTIAL_SCHEME %q", c.CredentialScheme)
	}

	switch c.MetricsBackend {
	case "memory", "prometheus":
	default:
		return fmt.Errorf("unknown METRICS_BACKEND %q", c.MetricsBackend)
	}

	switch c.EventsDriver {
	case EventsNone:
	case EventsAMQP:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when EVENTS_DRIVER=amqp")
		}
	case EventsRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when EVENTS_DRIVER=redis")
		}
	case EventsWebhook:
		if c.WebhookURL == "" || c.WebhookSecret == "" {
			return fmt.Errorf("WEBHOOK_URL and WEBHOOK_SECRET are required when EVENTS_DRIVER=webhook")
		}
	default:
		return fmt.Errorf("unknown EVENTS_DRIVER %q", c.EventsDriver)
	}

	if c.IsProduction() && c.WebhookAllowInsecure {
		return fmt.Errorf("WEBHOOK_ALLOW_INSECURE is not allowed in production")
	}

	if c.TimelineEnabled && c.EventsDriver != EventsRedis {
		return fmt.Errorf("TIMELINE_ENABLED requires EVENTS_DRIVER=redis")
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
