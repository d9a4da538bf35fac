package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"venuebook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	Outbox     OutboxConfig     `yaml:"outbox"`
	Exports    ExportConfig     `yaml:"exports"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
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
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BookingConfig holds the admission and lock-in rules.
type BookingConfig struct {
	LockInHours int           `yaml:"lock_in_hours"`
	Timezone    string        `yaml:"timezone"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
	LockWait    time.Duration `yaml:"lock_wait"`
}

// LockIn is the window before start during which a booking can no longer change.
func (b BookingConfig) LockIn() time.Duration {
	return time.Duration(b.LockInHours) * time.Hour
}

// Location resolves Timezone, falling back to UTC.
func (b BookingConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(b.Timezone)
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type OutboxConfig struct {
	Enabled       bool          `yaml:"enabled"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchSize     int           `yaml:"batch_size"`
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	QueueKey      string        `yaml:"queue_key"`
	DeadLetterKey string        `yaml:"dead_letter_key"`
}

type ExportConfig struct {
	MaxRows int `yaml:"max_rows"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
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
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	HealthCheckPort   int    `yaml:"health_check_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
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
	if c.Booking.LockInHours < 0 {
		return errors.New("booking lock_in_hours must not be negative")
	}
	if _, err := c.Booking.Location(); err != nil {
		return fmt.Errorf("invalid booking timezone %q: %w", c.Booking.Timezone, err)
	}
	if c.API.GRPC.TLS.Enabled && (c.API.GRPC.TLS.CertFile == "" || c.API.GRPC.TLS.KeyFile == "") {
		return errors.New("grpc tls requires cert_file and key_file")
	}
	if c.Outbox.Enabled && c.AMQP.URL == "" {
		return errors.New("outbox requires amqp url")
	}
	return nil
}

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ValidateCatalog checks the static venue and activity definitions before they are synced.
func ValidateCatalog(catalog models.Catalog) error {
	venueIDs := make(map[int64]bool)
	for _, venue := range catalog.Venues {
		if venue.ID == 0 {
			return fmt.Errorf("venue '%s' has invalid ID 0", venue.Name)
		}
		if venueIDs[venue.ID] {
			return fmt.Errorf("duplicate venue ID found: %d", venue.ID)
		}
		venueIDs[venue.ID] = true

		seenDays := make(map[time.Weekday]bool)
		for _, day := range venue.Timings {
			wd, err := models.ParseWeekday(day.Day)
			if err != nil {
				return fmt.Errorf("venue %d: %w", venue.ID, err)
			}
			if seenDays[wd] {
				return fmt.Errorf("venue %d: %s listed twice", venue.ID, day.Day)
			}
			seenDays[wd] = true

			for i, slot := range day.Times {
				if !clockPattern.MatchString(slot.From) || !clockPattern.MatchString(slot.To) {
					return fmt.Errorf("venue %d %s: slot %q is not HH:MM", venue.ID, day.Day, slot.Key())
				}
				if slot.From >= slot.To {
					return fmt.Errorf("venue %d %s: slot %s ends before it starts", venue.ID, day.Day, slot)
				}
				for _, other := range day.Times[:i] {
					if slot.Overlaps(other) {
						return fmt.Errorf("venue %d %s: slot %s overlaps %s", venue.ID, day.Day, slot, other)
					}
				}
			}
		}
	}

	activityIDs := make(map[int64]bool)
	for _, activity := range catalog.Activities {
		if activity.ID == 0 {
			return fmt.Errorf("activity '%s' has invalid ID 0", activity.Name)
		}
		if activityIDs[activity.ID] {
			return fmt.Errorf("duplicate activity ID found: %d", activity.ID)
		}
		activityIDs[activity.ID] = true

		if _, err := time.Parse(models.DateLayout, activity.Date); err != nil {
			return fmt.Errorf("activity %d: invalid date %q", activity.ID, activity.Date)
		}
		if !clockPattern.MatchString(activity.Time) {
			return fmt.Errorf("activity %d: invalid time %q", activity.ID, activity.Time)
		}
		if activity.Capacity <= 0 {
			return fmt.Errorf("activity %d: capacity must be positive", activity.ID)
		}
		if activity.VenueID != 0 && !venueIDs[activity.VenueID] {
			return fmt.Errorf("activity %d: unknown venue %d", activity.ID, activity.VenueID)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Booking.LockInHours == 0 {
		c.Booking.LockInHours = models.DefaultLockInHours
	}
	if c.Booking.LockTTL == 0 {
		c.Booking.LockTTL = 10 * time.Second
	}
	if c.Booking.LockWait == 0 {
		c.Booking.LockWait = 5 * time.Second
	}

	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "venuebook.events"
	}

	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = 5 * time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 50
	}
	if c.Outbox.MaxRetries == 0 {
		c.Outbox.MaxRetries = 5
	}
	if c.Outbox.InitialDelay == 0 {
		c.Outbox.InitialDelay = 2 * time.Second
	}
	if c.Outbox.MaxDelay == 0 {
		c.Outbox.MaxDelay = time.Minute
	}
	if c.Outbox.BackoffFactor == 0 {
		c.Outbox.BackoffFactor = 2
	}
	if c.Outbox.QueueKey == "" {
		c.Outbox.QueueKey = "venuebook:outbox"
	}
	if c.Outbox.DeadLetterKey == "" {
		c.Outbox.DeadLetterKey = "venuebook:outbox:dead"
	}

	if c.Exports.MaxRows == 0 {
		c.Exports.MaxRows = 10000
	}
}
