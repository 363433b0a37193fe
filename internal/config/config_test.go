package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Source.URL != DefaultURL {
		t.Errorf("Source.URL = %q, want %q", cfg.Source.URL, DefaultURL)
	}
	if cfg.Timezone != "America/Los_Angeles" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.DefaultDuration != 2*time.Hour {
		t.Errorf("DefaultDuration = %v, want 2h", cfg.DefaultDuration)
	}
	if cfg.Match.Window != 2*time.Hour || cfg.Match.Tolerance != time.Minute {
		t.Errorf("Match = %+v", cfg.Match)
	}
	if cfg.LookaheadDays != 365 {
		t.Errorf("LookaheadDays = %d, want 365", cfg.LookaheadDays)
	}
	if len(cfg.Extract.Anchors) != 1 || cfg.Extract.Anchors[0] != "Doors:" {
		t.Errorf("Anchors = %v", cfg.Extract.Anchors)
	}
	if cfg.Extract.MinTitleLength != 5 {
		t.Errorf("MinTitleLength = %d, want 5", cfg.Extract.MinTitleLength)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
source:
  url: https://example.com/events
  timeout: 10s
extract:
  anchors: ["Doors at"]
  show_label: "Starts:"
timezone: America/New_York
store:
  backend: ICS
  ics_path: out.ics
workers: 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.URL != "https://example.com/events" {
		t.Errorf("Source.URL = %q", cfg.Source.URL)
	}
	if cfg.Source.Timeout != 10*time.Second {
		t.Errorf("Source.Timeout = %v, want 10s", cfg.Source.Timeout)
	}
	if cfg.Extract.Anchors[0] != "Doors at" || cfg.Extract.ShowLabel != "Starts:" {
		t.Errorf("Extract = %+v", cfg.Extract)
	}
	if cfg.Store.Backend != BackendICS {
		t.Errorf("Store.Backend = %q, want normalized %q", cfg.Store.Backend, BackendICS)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	// untouched fields get defaults
	if cfg.DefaultDuration != 2*time.Hour {
		t.Errorf("DefaultDuration = %v, want 2h", cfg.DefaultDuration)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.URL != DefaultURL {
		t.Errorf("missing file should yield defaults, got %q", cfg.Source.URL)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("source: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Load() error = %v, want ErrInvalid", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Store.Backend = BackendMemory
	cfg.Workers = 3
	cfg.Store.CredentialsJSON = "secret"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Workers != 3 || loaded.Store.Backend != BackendMemory {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Store.CredentialsJSON != "" {
		t.Error("credentials must never be written to the config file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvCalendarID:         "cal@group.calendar.google.com",
		EnvServiceAccountJSON: `{"type":"service_account"}`,
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Store.CalendarID != "cal@group.calendar.google.com" {
		t.Errorf("CalendarID = %q", cfg.Store.CalendarID)
	}
	if cfg.Source.URL != DefaultURL {
		t.Errorf("unset env var should not override URL, got %q", cfg.Source.URL)
	}

	creds, err := cfg.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if string(creds) != `{"type":"service_account"}` {
		t.Errorf("Credentials() = %s", creds)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "google without calendar id",
			mutate:  func(c *Config) { c.Store.CredentialsJSON = "{}" },
			wantErr: true,
		},
		{
			name:    "google without credentials",
			mutate:  func(c *Config) { c.Store.CalendarID = "primary" },
			wantErr: true,
		},
		{
			name: "google complete",
			mutate: func(c *Config) {
				c.Store.CalendarID = "primary"
				c.Store.CredentialsFile = "/etc/sa.json"
			},
		},
		{
			name:   "memory backend needs nothing",
			mutate: func(c *Config) { c.Store.Backend = BackendMemory },
		},
		{
			name: "unknown backend",
			mutate: func(c *Config) {
				c.Store.Backend = "outlook"
			},
			wantErr: true,
		},
		{
			name: "bad timezone",
			mutate: func(c *Config) {
				c.Store.Backend = BackendMemory
				c.Timezone = "Mars/Olympus_Mons"
			},
			wantErr: true,
		},
		{
			name: "blank anchor",
			mutate: func(c *Config) {
				c.Store.Backend = BackendMemory
				c.Extract.Anchors = []string{"  "}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error should wrap ErrInvalid, got %v", err)
			}
		})
	}
}
