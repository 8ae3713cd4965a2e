// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"storehub/backend/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health service; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment ("development", "production").
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DBDriver is "pgx" (Postgres) or "sqlite".
	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AutoMigrate applies pending migrations at server startup.
	AutoMigrate bool `mapstructure:"AUTO_MIGRATE"`

	// JWTSecret is the HS256 signing key, or "file:/path" to read it from disk. Required.
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`
	JWTAudience   string `mapstructure:"JWT_AUDIENCE"`
	JWTAccessTTL  string `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	CookieSecure      bool   `mapstructure:"COOKIE_SECURE"`
	CookieDomain      string `mapstructure:"COOKIE_DOMAIN"`
	AccessCookieName  string `mapstructure:"ACCESS_COOKIE_NAME"`
	RefreshCookieName string `mapstructure:"REFRESH_COOKIE_NAME"`
	// RefreshCookiePath scopes the refresh cookie to the auth endpoints.
	RefreshCookiePath string `mapstructure:"REFRESH_COOKIE_PATH"`

	// RolePermissionsFile is an optional YAML file overriding the built-in role table.
	RolePermissionsFile string `mapstructure:"ROLE_PERMISSIONS_FILE"`
	// AuthzEngine is "static" or "opa".
	AuthzEngine     string `mapstructure:"AUTHZ_ENGINE"`
	AuthzPolicyFile string `mapstructure:"AUTHZ_POLICY_FILE"`

	// KafkaBrokers is a comma-separated list; when set, audit events are also published to Kafka.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of cmd/worker, which archives published audit events.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// AuditDBSink writes audit events to audit_logs from the server. Disable it when cmd/worker archives them.
	AuditDBSink bool `mapstructure:"AUDIT_DB_SINK"`

	// OTLPEndpoint enables OpenTelemetry export when non-empty (e.g. localhost:4317).
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// SessionCleanupSchedule is a cron spec for deleting expired sessions; empty disables the job.
	SessionCleanupSchedule string `mapstructure:"SESSION_CLEANUP_SCHEDULE"`

	LoginRatePerMinute int `mapstructure:"LOGIN_RATE_PER_MINUTE"`
	LoginRateBurst     int `mapstructure:"LOGIN_RATE_BURST"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. A missing or short JWT_SECRET is an error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "pgx")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "storehub-auth")
	v.SetDefault("JWT_AUDIENCE", "storehub-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("ACCESS_COOKIE_NAME", "access_token")
	v.SetDefault("REFRESH_COOKIE_NAME", "refresh_token")
	v.SetDefault("REFRESH_COOKIE_PATH", "/api/auth")
	v.SetDefault("ROLE_PERMISSIONS_FILE", "")
	v.SetDefault("AUTHZ_ENGINE", "static")
	v.SetDefault("AUTHZ_POLICY_FILE", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "storehub-audit")
	v.SetDefault("KAFKA_GROUP_ID", "storehub-audit-archiver")
	v.SetDefault("AUDIT_DB_SINK", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "storehub-backend")
	v.SetDefault("SESSION_CLEANUP_SCHEDULE", "@every 1h")
	v.SetDefault("LOGIN_RATE_PER_MINUTE", 10)
	v.SetDefault("LOGIN_RATE_BURST", 5)
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if _, err := security.LoadSecret(c.JWTSecret); err != nil {
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes: %w", security.MinSecretLength, err)
	}
	switch c.DBDriver {
	case "pgx", "sqlite":
	default:
		return fmt.Errorf("config: DB_DRIVER must be pgx or sqlite, got %q", c.DBDriver)
	}
	switch c.AuthzEngine {
	case "static", "opa":
	default:
		return fmt.Errorf("config: AUTHZ_ENGINE must be static or opa, got %q", c.AuthzEngine)
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	accessTTL, err := parseTTL("JWT_ACCESS_TTL", c.JWTAccessTTL, defaultAccessTTL)
	if err != nil {
		return err
	}
	refreshTTL, err := parseTTL("JWT_REFRESH_TTL", c.JWTRefreshTTL, defaultRefreshTTL)
	if err != nil {
		return err
	}
	if accessTTL >= refreshTTL {
		return errors.New("config: JWT_ACCESS_TTL must be shorter than JWT_REFRESH_TTL")
	}
	if !c.AuditDBSink && len(c.KafkaBrokersList()) == 0 {
		return errors.New("config: AUDIT_DB_SINK=false requires KAFKA_BROKERS")
	}
	if c.Env == "production" && !c.CookieSecure {
		return errors.New("config: COOKIE_SECURE must be true when APP_ENV=production")
	}
	return nil
}

// SigningKey returns the resolved JWT signing key.
func (c *Config) SigningKey() ([]byte, error) {
	return security.LoadSecret(c.JWTSecret)
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 168 * time.Hour
)

// AccessTTL returns the parsed JWT_ACCESS_TTL, or 15m if unset. Validate rejects malformed values.
func (c *Config) AccessTTL() time.Duration {
	d, err := parseTTL("JWT_ACCESS_TTL", c.JWTAccessTTL, defaultAccessTTL)
	if err != nil {
		return defaultAccessTTL
	}
	return d
}

// RefreshTTL returns the parsed JWT_REFRESH_TTL, or 168h if unset. Validate rejects malformed values.
func (c *Config) RefreshTTL() time.Duration {
	d, err := parseTTL("JWT_REFRESH_TTL", c.JWTRefreshTTL, defaultRefreshTTL)
	if err != nil {
		return defaultRefreshTTL
	}
	return d
}

func parseTTL(key, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %q", key, raw)
	}
	return d, nil
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka audit sink.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
