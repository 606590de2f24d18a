package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Identity  IdentityConfig  `yaml:"identity"`
	Storage   StorageConfig   `yaml:"storage"`
	Artifact  ArtifactConfig  `yaml:"artifact"`
	Email     EmailConfig     `yaml:"email"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP and health endpoint settings
type ServerConfig struct {
	Host                   string `yaml:"host" env:"SERVER_HOST"`
	Port                   int    `yaml:"port" env:"SERVER_PORT"`
	HealthPort             int    `yaml:"health_port" env:"HEALTH_PORT"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig selects and configures the asset store.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" env:"DB_DRIVER"` // "postgres", "sqlite" or "memory"
	Host         string `yaml:"host" env:"DB_HOST"`
	Port         int    `yaml:"port" env:"DB_PORT"`
	User         string `yaml:"user" env:"DB_USER"`
	Password     string `yaml:"password" env:"DB_PASSWORD"`
	Database     string `yaml:"database" env:"DB_NAME"`
	SSLMode      string `yaml:"ssl_mode" env:"DB_SSL_MODE"`
	Path         string `yaml:"path" env:"DB_PATH"` // sqlite file
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE"`
}

// IdentityConfig chooses how callers are identified.
type IdentityConfig struct {
	Provider  string         `yaml:"provider" env:"IDENTITY_PROVIDER"` // "jwt" or "firebase"
	JWTSecret string         `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer string         `yaml:"jwt_issuer"`
	AdminRole string         `yaml:"admin_role"`
	Firebase  FirebaseConfig `yaml:"firebase"`
	APIKeys   []APIKeyConfig `yaml:"api_keys"`
}

type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id" env:"FIREBASE_PROJECT_ID"`
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// APIKeyConfig registers a machine caller. SecretHash is a bcrypt hash.
type APIKeyConfig struct {
	ID         string `yaml:"id"`
	SecretHash string `yaml:"secret_hash"`
	Principal  string `yaml:"principal"`
	Admin      bool   `yaml:"admin"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	Dir                   string `yaml:"dir" env:"STORAGE_DIR"`
	BaseURL               string `yaml:"base_url" env:"STORAGE_BASE_URL"` // Server base URL for download links
	DownloadExpiryMinutes int    `yaml:"download_expiry_minutes"`
}

// ArtifactConfig controls the scannable code and its printable document.
type ArtifactConfig struct {
	// DetailURLTemplate is the address encoded in the code; "{id}" is
	// replaced by the asset id.
	DetailURLTemplate  string `yaml:"detail_url_template" env:"ARTIFACT_DETAIL_URL_TEMPLATE"`
	QRSize             int    `yaml:"qr_size"`
	CacheEnabled       bool   `yaml:"cache_enabled"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int    `yaml:"rate_limit_burst"`
	// CacheDir holds rendered codes. It must lie outside storage.dir, which
	// the public file route serves.
	CacheDir string `yaml:"cache_dir" env:"ARTIFACT_CACHE_DIR"`
}

// EmailConfig contains notification delivery settings
type EmailConfig struct {
	Provider        string   `yaml:"provider" env:"EMAIL_PROVIDER"` // "smtp", "sendgrid" or "none"
	SMTPHost        string   `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort        int      `yaml:"smtp_port" env:"SMTP_PORT"`
	SMTPUser        string   `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword    string   `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	SendGridAPIKey  string   `yaml:"sendgrid_api_key" env:"SENDGRID_API_KEY"`
	From            string   `yaml:"from" env:"EMAIL_FROM"`
	FromName        string   `yaml:"from_name"`
	AdminRecipients []string `yaml:"admin_recipients" env:"EMAIL_ADMIN_RECIPIENTS" envSeparator:","`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" env:"LOG_FORMAT"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ExpirePendingRequests  string `yaml:"expire_pending_requests"`
	AuditCustody           string `yaml:"audit_custody"`
	PendingRequestTTLHours int    `yaml:"pending_request_ttl_hours" env:"PENDING_REQUEST_TTL_HOURS"`
	SystemCallerID         string `yaml:"system_caller_id"`
}

// TelemetryConfig enables OTLP tracing when an endpoint is set.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads configuration from a YAML file, applies environment overrides
// and validates the result.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.HealthPort < 0 || c.Server.HealthPort > 65535 {
		return fmt.Errorf("invalid health port: %d", c.Server.HealthPort)
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}

	c.Database.Driver = strings.ToLower(c.Database.Driver)
	switch c.Database.Driver {
	case "", "postgres":
		c.Database.Driver = "postgres"
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	c.Identity.Provider = strings.ToLower(c.Identity.Provider)
	switch c.Identity.Provider {
	case "", "jwt":
		c.Identity.Provider = "jwt"
		if c.Identity.JWTSecret == "" {
			return fmt.Errorf("JWT secret is required")
		}
		if len(c.Identity.JWTSecret) < 32 {
			return fmt.Errorf("JWT secret must be at least 32 characters")
		}
	case "firebase":
		if c.Identity.Firebase.ProjectID == "" {
			return fmt.Errorf("firebase project id is required")
		}
	default:
		return fmt.Errorf("unknown identity provider %q", c.Identity.Provider)
	}
	if c.Identity.AdminRole == "" {
		c.Identity.AdminRole = "admin"
	}
	for i, k := range c.Identity.APIKeys {
		if k.ID == "" || k.SecretHash == "" {
			return fmt.Errorf("api key %d needs id and secret_hash", i)
		}
		if strings.Contains(k.ID, ".") {
			return fmt.Errorf("api key id %q must not contain '.'", k.ID)
		}
		if k.Principal == "" {
			c.Identity.APIKeys[i].Principal = "apikey:" + k.ID
		}
	}

	if c.Storage.Dir == "" {
		return fmt.Errorf("storage directory is required")
	}
	if c.Storage.BaseURL == "" {
		c.Storage.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Storage.DownloadExpiryMinutes == 0 {
		c.Storage.DownloadExpiryMinutes = 15
	}

	if c.Artifact.DetailURLTemplate == "" {
		c.Artifact.DetailURLTemplate = strings.TrimRight(c.Storage.BaseURL, "/") + "/assets/{id}/"
	}
	if !strings.Contains(c.Artifact.DetailURLTemplate, "{id}") {
		return fmt.Errorf("artifact detail_url_template must contain {id}")
	}
	if c.Artifact.QRSize == 0 {
		c.Artifact.QRSize = 256
	}
	if c.Artifact.QRSize < 64 || c.Artifact.QRSize > 2048 {
		return fmt.Errorf("artifact qr_size must be between 64 and 2048")
	}
	if c.Artifact.CacheDir == "" {
		c.Artifact.CacheDir = filepath.Clean(c.Storage.Dir) + "-artifact-cache"
	}
	if within(c.Storage.Dir, c.Artifact.CacheDir) {
		return fmt.Errorf("artifact cache_dir must be outside storage dir %q", c.Storage.Dir)
	}
	if c.Artifact.RateLimitPerMinute == 0 {
		c.Artifact.RateLimitPerMinute = 60
	}
	if c.Artifact.RateLimitBurst == 0 {
		c.Artifact.RateLimitBurst = 10
	}

	c.Email.Provider = strings.ToLower(c.Email.Provider)
	switch c.Email.Provider {
	case "", "none":
		c.Email.Provider = "none"
	case "smtp":
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required")
		}
		if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.Email.SMTPPort)
		}
	case "sendgrid":
		if c.Email.SendGridAPIKey == "" {
			return fmt.Errorf("sendgrid api key is required")
		}
	default:
		return fmt.Errorf("unknown email provider %q", c.Email.Provider)
	}
	if c.Email.Provider != "none" && c.Email.From == "" {
		return fmt.Errorf("email from address is required")
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "Asset Custody"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Scheduler.ExpirePendingRequests == "" {
		c.Scheduler.ExpirePendingRequests = "0 0 * * * *" // hourly
	}
	if c.Scheduler.AuditCustody == "" {
		c.Scheduler.AuditCustody = "0 30 3 * * *" // 3:30 AM UTC
	}
	if c.Scheduler.PendingRequestTTLHours == 0 {
		c.Scheduler.PendingRequestTTLHours = 72
	}
	if c.Scheduler.SystemCallerID == "" {
		c.Scheduler.SystemCallerID = "system:scheduler"
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "custody-backend"
	}
	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetHealthAddress returns the gRPC health listen address; empty disables it.
func (c *Config) GetHealthAddress() string {
	if c.Server.HealthPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HealthPort)
}

func (c *Config) PendingRequestTTL() time.Duration {
	return time.Duration(c.Scheduler.PendingRequestTTLHours) * time.Hour
}

func (c *Config) DownloadExpiry() time.Duration {
	return time.Duration(c.Storage.DownloadExpiryMinutes) * time.Minute
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
