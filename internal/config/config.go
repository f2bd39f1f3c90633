package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"parkwise/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig          `yaml:"app"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Backup        BackupConfig       `yaml:"backup"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Logging       LoggingConfig      `yaml:"logging"`
	API           APIConfig          `yaml:"api"`
	Notifications NotificationConfig `yaml:"notifications"`
	Google        GoogleConfig       `yaml:"google"`
	Reports       ReportsConfig      `yaml:"reports"`
	Worker        WorkerConfig       `yaml:"worker"`
	Bootstrap     BootstrapConfig    `yaml:"bootstrap"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	CORS      APICORSConfig      `yaml:"cors"`
}

type APIHTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// APIRateLimitConfig limits requests per client. Requests per Window go to the
// shared Redis counter; RPS/Burst drive the in-process token bucket.
type APIRateLimitConfig struct {
	Enabled  bool    `yaml:"enabled"`
	RPS      float64 `yaml:"rps"`
	Burst    int     `yaml:"burst"`
	Requests int     `yaml:"requests"`
	Window   int     `yaml:"window_seconds"`
}

type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout_ms"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type NotificationConfig struct {
	Email    EmailConfig    `yaml:"email"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Sender   string `yaml:"sender"`
}

type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Debug    bool    `yaml:"debug"`
}

type GoogleConfig struct {
	CredentialsFile     string `yaml:"credentials_file"`
	LedgerSpreadsheetID string `yaml:"ledger_spreadsheet_id"`
	LedgerSheetName     string `yaml:"ledger_sheet_name"`
}

// Enabled reports whether the revenue ledger sheet is configured.
func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.LedgerSpreadsheetID != ""
}

type ReportsConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location resolves the report timezone, falling back to UTC.
func (r ReportsConfig) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type WorkerConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	MaxRetries   int           `yaml:"max_retries"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type BootstrapConfig struct {
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
	AdminName     string `yaml:"admin_name"`
	ParkingsFile  string `yaml:"parkings_file"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if strings.TrimSpace(c.API.Auth.JWTSecret) == "" {
		return errors.New("api.auth.jwt_secret is required")
	}

	if c.Reports.Timezone != "" {
		if _, err := time.LoadLocation(c.Reports.Timezone); err != nil {
			return fmt.Errorf("invalid reports timezone %q: %w", c.Reports.Timezone, err)
		}
	}

	if c.Notifications.Email.Enabled && (c.Notifications.Email.Host == "" || c.Notifications.Email.Sender == "") {
		return errors.New("email notifications require host and sender")
	}

	if c.Notifications.Telegram.Enabled && c.Notifications.Telegram.BotToken == "" {
		return errors.New("telegram notifications require bot_token")
	}

	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		return errors.New("bootstrap admin needs both email and password")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "parkwise"
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = 5000
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.API.HTTP.ShutdownTimeout == 0 {
		c.API.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.Issuer == "" {
		c.API.Auth.Issuer = c.App.Name
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = models.DefaultTokenTTLHours * time.Hour
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.API.RateLimit.Requests == 0 {
		c.API.RateLimit.Requests = models.DefaultRateLimitRequests
	}
	if c.API.RateLimit.Window == 0 {
		c.API.RateLimit.Window = models.DefaultRateLimitWindow
	}
	if len(c.API.CORS.AllowedOrigins) == 0 {
		c.API.CORS.AllowedOrigins = []string{"*"}
	}
	if c.Notifications.Email.Port == 0 {
		c.Notifications.Email.Port = 587
	}
	if c.Google.LedgerSheetName == "" {
		c.Google.LedgerSheetName = "Ledger"
	}
	if c.Worker.QueueSize == 0 {
		c.Worker.QueueSize = models.DefaultWorkerQueueSize
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.BaseDelay == 0 {
		c.Worker.BaseDelay = 2 * time.Second
	}
	if c.Worker.MaxDelay == 0 {
		c.Worker.MaxDelay = 5 * time.Minute
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 30 * time.Second
	}
	if c.Bootstrap.AdminName == "" {
		c.Bootstrap.AdminName = "Administrator"
	}
}
