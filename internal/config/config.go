package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single ICS subscription source whose events become
// fixed base blocks on the timeline.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// StoreConfig configures the task record store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path" json:"path"`
	// BusyTimeoutMs is the SQLite busy_timeout in milliseconds.
	BusyTimeoutMs int `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to frame recurrence lookup windows
	// (e.g. "UTC", "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// ExpandCron is a cron-style schedule string (e.g. "0 * * * *") driving
	// the periodic recurrence expander job.
	ExpandCron string `yaml:"expand_cron" json:"expand_cron"`

	// LookupDays widens the expander window by N days on each side of
	// today. 0 means today only.
	LookupDays int `yaml:"lookup_days" json:"lookup_days"`

	// MinFragmentMinutes is the smallest fragment the gap-filling scheduler
	// will emit; smaller gaps are skipped and smaller remainders discarded.
	MinFragmentMinutes int `yaml:"min_fragment_minutes" json:"min_fragment_minutes"`

	// HorizonDays is the number of future days the schedule endpoint covers
	// by default.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// Store configures the task record store.
	Store StoreConfig `yaml:"store" json:"store"`

	// ICS is the list of subscribed calendar sources imported as fixed
	// commitments.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:             "127.0.0.1:8080",
		Timezone:           "UTC",
		ExpandCron:         "0 * * * *",
		LookupDays:         0,
		MinFragmentMinutes: 10,
		HorizonDays:        7,
		Store: StoreConfig{
			Path:          "/var/lib/taskline/tasks.db",
			BusyTimeoutMs: 5000,
		},
		ICS:       []ICSConfig{},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.ExpandCron == "" {
		c.ExpandCron = "0 * * * *"
	}
	if c.LookupDays < 0 {
		c.LookupDays = 0
	}
	if c.MinFragmentMinutes <= 0 {
		c.MinFragmentMinutes = 10
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 7
	}
	if c.Store.Path == "" {
		c.Store.Path = "/var/lib/taskline/tasks.db"
	}
	if c.Store.BusyTimeoutMs <= 0 {
		c.Store.BusyTimeoutMs = 5000
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// MinFragment returns the minimum fragment duration the packer uses.
func (c *Config) MinFragment() time.Duration {
	return time.Duration(c.MinFragmentMinutes) * time.Minute
}

// Location resolves the configured timezone, falling back to UTC on error.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create the parent directory, write a
//     default config with 0600 perms, and return the default config.
//   - If the file exists: read YAML, unmarshal, normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration to path atomically (temp file + rename)
// with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".taskline-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
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
