package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single ICS schedule source the importer pulls
// games from.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the admin UI.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the admin UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the webhook and admin UI.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone the schedule's naive timestamps are
	// interpreted in (e.g. "America/New_York").
	Timezone string `yaml:"timezone" json:"timezone"`

	// DBPath is the sqlite database file path.
	DBPath string `yaml:"db_path" json:"db_path"`

	// BotID is the GroupMe bot id used for outbound posts. The
	// GROUPME_BOT_ID environment variable overrides it when set.
	BotID string `yaml:"bot_id" json:"bot_id"`

	// SweepCron schedules removal of expired pending choices
	// (robfig/cron syntax; "@every 1m" by default).
	SweepCron string `yaml:"sweep" json:"sweep"`

	// RefreshCron schedules the ICS schedule import. Only used when ICS
	// sources are configured.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ICS is the list of subscribed schedule sources. Empty disables the
	// importer.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on the
	// admin endpoints. /health and the webhook callback stay open.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:3000",
		Timezone:    "America/New_York",
		DBPath:      "askcoach.db",
		BotID:       "",
		SweepCron:   "@every 1m",
		RefreshCron: "*/15 * * * *",
		ICS:         []ICSConfig{},
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:3000"
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.DBPath == "" {
		c.DBPath = "askcoach.db"
	}
	if c.SweepCron == "" {
		c.SweepCron = "@every 1m"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	// Environment wins for the bot id so deployments can keep secrets
	// out of the config file.
	if env := os.Getenv("GROUPME_BOT_ID"); env != "" {
		c.BotID = env
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			cfg.Normalize()
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

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".askcoach-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
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

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}
