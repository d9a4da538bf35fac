package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"venuebook/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("VENUEBOOK_DB_PATH", filepath.Join(tmpDir, "ledger.db"))

	yamlContent := `
database:
  path: "${VENUEBOOK_DB_PATH}"
booking:
  lock_in_hours: 24
  timezone: "UTC"
  lock_wait: 2s
outbox:
  poll_interval: 250ms
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	// No .env in the working directory: Load must tolerate that.
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != filepath.Join(tmpDir, "ledger.db") {
		t.Errorf("expected expanded database path, got %s", cfg.Database.Path)
	}
	if cfg.Booking.LockIn() != 24*time.Hour {
		t.Errorf("expected 24h lock-in, got %s", cfg.Booking.LockIn())
	}
	if cfg.Booking.LockWait != 2*time.Second {
		t.Errorf("expected lock_wait 2s, got %s", cfg.Booking.LockWait)
	}
	if cfg.Outbox.PollInterval != 250*time.Millisecond {
		t.Errorf("expected poll interval 250ms, got %s", cfg.Outbox.PollInterval)
	}
	loc, err := cfg.Booking.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("expected UTC location, got %v (%v)", loc, err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{Database: DatabaseConfig{Path: "path"}},
			wantErr: false,
		},
		{
			name:    "missing database path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "unknown timezone",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Booking:  BookingConfig{Timezone: "Mars/Olympus"},
			},
			wantErr: true,
		},
		{
			name: "tls without cert",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				API:      APIConfig{GRPC: APIGRPCConfig{TLS: APITLSConfig{Enabled: true}}},
			},
			wantErr: true,
		},
		{
			name: "outbox without broker",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Outbox:   OutboxConfig{Enabled: true},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Booking.LockInHours != models.DefaultLockInHours {
		t.Errorf("expected default lock-in %d, got %d", models.DefaultLockInHours, cfg.Booking.LockInHours)
	}
	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header, got %s", cfg.API.Auth.HeaderAPIKey)
	}
	if cfg.Outbox.MaxRetries != 5 || cfg.Outbox.BackoffFactor != 2 {
		t.Errorf("unexpected outbox retry defaults: %+v", cfg.Outbox)
	}
	if cfg.AMQP.Exchange == "" {
		t.Error("expected default exchange")
	}
}

func TestValidateCatalog(t *testing.T) {
	monday := func(slots ...models.TimeSlot) []models.DayTimings {
		return []models.DayTimings{{Day: "Monday", Times: slots}}
	}
	nine := models.TimeSlot{From: "09:00", To: "10:00"}
	ten := models.TimeSlot{From: "10:00", To: "11:00"}
	yoga := models.Activity{ID: 1, Name: "Yoga", Date: "2030-01-07", Time: "18:00", Capacity: 5}

	tests := []struct {
		name    string
		catalog models.Catalog
		wantErr bool
	}{
		{
			name: "Valid catalog",
			catalog: models.Catalog{
				Venues:     []models.Venue{{ID: 1, Name: "Court", Timings: monday(nine, ten)}},
				Activities: []models.Activity{yoga},
			},
			wantErr: false,
		},
		{
			name:    "Venue ID 0",
			catalog: models.Catalog{Venues: []models.Venue{{Name: "Court"}}},
			wantErr: true,
		},
		{
			name:    "Duplicate venue ID",
			catalog: models.Catalog{Venues: []models.Venue{{ID: 1}, {ID: 1}}},
			wantErr: true,
		},
		{
			name:    "Unknown weekday",
			catalog: models.Catalog{Venues: []models.Venue{{ID: 1, Timings: []models.DayTimings{{Day: "Funday"}}}}},
			wantErr: true,
		},
		{
			name:    "Malformed slot",
			catalog: models.Catalog{Venues: []models.Venue{{ID: 1, Timings: monday(models.TimeSlot{From: "9", To: "10:00"})}}},
			wantErr: true,
		},
		{
			name:    "Reversed slot",
			catalog: models.Catalog{Venues: []models.Venue{{ID: 1, Timings: monday(models.TimeSlot{From: "11:00", To: "10:00"})}}},
			wantErr: true,
		},
		{
			name:    "Overlapping slots",
			catalog: models.Catalog{Venues: []models.Venue{{ID: 1, Timings: monday(nine, models.TimeSlot{From: "09:30", To: "10:30"})}}},
			wantErr: true,
		},
		{
			name:    "Activity without capacity",
			catalog: models.Catalog{Activities: []models.Activity{{ID: 1, Date: "2030-01-07", Time: "18:00"}}},
			wantErr: true,
		},
		{
			name:    "Activity bad date",
			catalog: models.Catalog{Activities: []models.Activity{{ID: 1, Date: "07.01.2030", Time: "18:00", Capacity: 1}}},
			wantErr: true,
		},
		{
			name:    "Activity unknown venue",
			catalog: models.Catalog{Activities: []models.Activity{{ID: 1, VenueID: 9, Date: "2030-01-07", Time: "18:00", Capacity: 1}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCatalog(tt.catalog)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCatalog() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
