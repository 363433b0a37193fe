// Package config loads the uct-events YAML configuration.
//
// Values missing from the file are filled by Normalize, a handful of
// deployment secrets can be supplied through the environment (the same
// variable names the GitHub Actions workflow uses), and Validate rejects
// configurations that cannot possibly sync before any network call is made.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // runners often ship without a zoneinfo database

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration failures. These are the only errors that
// abort a run before any processing begins.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultURL       = "https://www.theuctheatre.org/events"
	DefaultUserAgent = "uct-events/1.0 (github.com/pfrederiksen/uct-events)"
	DefaultTimezone  = "America/Los_Angeles"
	DefaultDataDir   = "~/.local/share/uct-events"
)

// Store backends.
const (
	BackendGoogle = "google"
	BackendICS    = "ics"
	BackendMemory = "memory"
)

// Environment overrides.
const (
	EnvCalendarID         = "CALENDAR_ID"
	EnvServiceAccountJSON = "SERVICE_ACCOUNT_JSON"
	EnvSourceURL          = "UCT_EVENTS_URL"
)

// SourceConfig describes where the listing page comes from.
type SourceConfig struct {
	URL       string        `yaml:"url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	// Browser renders the page in headless Chrome instead of a plain GET.
	Browser bool `yaml:"browser"`
}

// ExtractConfig tunes the block and field heuristics.
type ExtractConfig struct {
	// Anchors are literal phrases that mark one event each. The first one
	// doubles as the doors-time label.
	Anchors        []string `yaml:"anchors"`
	ShowLabel      string   `yaml:"show_label"`
	MinTitleLength int      `yaml:"min_title_length"`
}

// MatchConfig controls how extracted events are paired with remote ones.
type MatchConfig struct {
	Window    time.Duration `yaml:"window"`
	Tolerance time.Duration `yaml:"tolerance"`
}

// StoreConfig selects and configures the calendar backend.
type StoreConfig struct {
	Backend         string `yaml:"backend"`
	CalendarID      string `yaml:"calendar_id"`
	CredentialsFile string `yaml:"credentials_file"`
	ICSPath         string `yaml:"ics_path"`

	// CredentialsJSON is only ever populated from the environment.
	CredentialsJSON string `yaml:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Extract ExtractConfig `yaml:"extract"`

	// Timezone is the IANA zone all extracted times are localized to.
	Timezone string `yaml:"timezone"`

	// LookaheadDays bounds how far ahead extracted events are synced.
	LookaheadDays int `yaml:"lookahead_days"`
	// PastBuffer keeps events that started slightly before now eligible.
	PastBuffer      time.Duration `yaml:"past_buffer"`
	DefaultDuration time.Duration `yaml:"default_duration"`

	Match MatchConfig `yaml:"match"`
	Store StoreConfig `yaml:"store"`

	// Workers is the number of concurrent remote writes. 1 means sequential.
	Workers int `yaml:"workers"`

	// Schedule is a cron expression used by the watch command.
	Schedule string `yaml:"schedule"`

	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Source.URL == "" {
		c.Source.URL = DefaultURL
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = DefaultUserAgent
	}
	if c.Source.Timeout <= 0 {
		c.Source.Timeout = 30 * time.Second
	}
	if len(c.Extract.Anchors) == 0 {
		c.Extract.Anchors = []string{"Doors:"}
	}
	if c.Extract.ShowLabel == "" {
		c.Extract.ShowLabel = "Show:"
	}
	if c.Extract.MinTitleLength <= 0 {
		c.Extract.MinTitleLength = 5
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = 365
	}
	if c.PastBuffer <= 0 {
		c.PastBuffer = 24 * time.Hour
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = 2 * time.Hour
	}
	if c.Match.Window <= 0 {
		c.Match.Window = 2 * time.Hour
	}
	if c.Match.Tolerance <= 0 {
		c.Match.Tolerance = 60 * time.Second
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendGoogle
	}
	if c.Store.ICSPath == "" {
		c.Store.ICSPath = "uct_events.ics"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Schedule == "" {
		c.Schedule = "0 */6 * * *"
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ApplyEnv overlays values taken from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvCalendarID); v != "" {
		c.Store.CalendarID = v
	}
	if v := getenv(EnvServiceAccountJSON); v != "" {
		c.Store.CredentialsJSON = v
	}
	if v := getenv(EnvSourceURL); v != "" {
		c.Source.URL = v
	}
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalid, c.Timezone, err)
	}
	return loc, nil
}

// Credentials returns the service account JSON, preferring the environment
// over the credentials file.
func (c *Config) Credentials() ([]byte, error) {
	if c.Store.CredentialsJSON != "" {
		return []byte(c.Store.CredentialsJSON), nil
	}
	if c.Store.CredentialsFile == "" {
		return nil, fmt.Errorf("%w: %s not set and no credentials_file configured", ErrInvalid, EnvServiceAccountJSON)
	}
	data, err := os.ReadFile(expandHome(c.Store.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: reading credentials: %v", ErrInvalid, err)
	}
	return data, nil
}

// Validate checks everything a run needs before it starts.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, anchor := range c.Extract.Anchors {
		if strings.TrimSpace(anchor) == "" {
			return fmt.Errorf("%w: empty anchor phrase", ErrInvalid)
		}
	}

	switch c.Store.Backend {
	case BackendGoogle:
		if c.Store.CalendarID == "" {
			return fmt.Errorf("%w: %s not set", ErrInvalid, EnvCalendarID)
		}
		if c.Store.CredentialsJSON == "" && c.Store.CredentialsFile == "" {
			return fmt.Errorf("%w: %s not set and no credentials_file configured", ErrInvalid, EnvServiceAccountJSON)
		}
	case BackendICS:
		if c.Store.ICSPath == "" {
			return fmt.Errorf("%w: ics_path is empty", ErrInvalid)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalid, c.Store.Backend)
	}

	return nil
}

// Load reads configuration from path. A missing file yields the defaults so
// that a bare `uct-events sync` works with environment variables alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration as YAML, replacing the target atomically.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()
	path = expandHome(path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".uct-events-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// ExpandHome expands a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	return expandHome(path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
