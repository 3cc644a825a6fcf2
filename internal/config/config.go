package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	appLog "loeoutaged/internal/log"
	"loeoutaged/internal/model"
)

// CurrentVersion is the config schema version. Versions 1 and 2 belong
// to the predecessor integration and carried region/provider/city/
// service fields that no longer mean anything; Migrate maps them
// forward.
const CurrentVersion = 3

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Version is the schema version of the file on disk.
	Version int `yaml:"version"`

	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen"`

	// Group is the LOE consumer group ("1.1".."6.2") this instance
	// serves. Required; there is no safe default.
	Group string `yaml:"group"`

	// Refresh is a cron-style schedule for the fetch cycle.
	Refresh string `yaml:"refresh"`

	// Endpoint overrides the LOE API URL, mainly for tests.
	Endpoint string `yaml:"endpoint"`

	// TimeoutSeconds bounds one schedule request.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Timezone is the provider's civil timezone as an IANA name.
	Timezone string `yaml:"timezone"`

	// LookaheadDays is how far queries and the calendar feed look
	// forward.
	LookaheadDays int `yaml:"lookahead_days"`

	// BasicAuth, if non-nil, protects all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty"`

	// Legacy fields from schema versions 1 and 2. Parsed so Migrate can
	// recognize old files; always dropped on save.
	Region   string `yaml:"region,omitempty"`
	Provider string `yaml:"provider,omitempty"`
	City     string `yaml:"city,omitempty"`
	Service  string `yaml:"service,omitempty"`
}

// DefaultConfig returns an in-memory default configuration. Group is
// deliberately empty: setup must fail until the operator picks one.
func DefaultConfig() *Config {
	return &Config{
		Version:        CurrentVersion,
		Listen:         "127.0.0.1:8080",
		Refresh:        "@every 15m",
		TimeoutSeconds: 60,
		Timezone:       "Europe/Kyiv",
		LookaheadDays:  1,
	}
}

// Normalize fills missing values with defaults so partially-filled
// configs still behave.
func (c *Config) Normalize() {
	if c.Version <= 0 {
		c.Version = CurrentVersion
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Refresh == "" {
		c.Refresh = "@every 15m"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 60
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Kyiv"
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = 1
	}
}

// Migrate maps a legacy schema onto the current one and reports whether
// anything changed. The old region/provider/city/service selection
// collapsed into the single group field; everything else is discarded.
func (c *Config) Migrate() bool {
	if c.Version >= CurrentVersion {
		return false
	}
	appLog.Info("migrating config schema", "from_version", c.Version, "to_version", CurrentVersion)
	c.Region = ""
	c.Provider = ""
	c.City = ""
	c.Service = ""
	c.Version = CurrentVersion
	return true
}

// Validate enforces the one hard requirement: a known group. Setup
// refuses to run without it rather than guessing.
func (c *Config) Validate() error {
	if c.Group == "" {
		return errors.New("config: group is required; set one of " + groupList())
	}
	if !model.IsValidGroup(c.Group) {
		return errors.Errorf("config: unknown group %q; valid groups are %s", c.Group, groupList())
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrapf(err, "config: invalid timezone %q", c.Timezone)
	}
	return nil
}

// Location resolves the configured timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func groupList() string {
	out := ""
	for i, g := range model.AvailableGroups {
		if i > 0 {
			out += ", "
		}
		out += g
	}
	return out
}

// Load loads configuration from the given YAML path.
//
// A missing file is a first run: a default config is written with 0600
// perms and returned (validation of the empty group happens later, in
// main). An existing file is read, migrated if it carries an old schema
// version, and rewritten when migration changed it.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	cfg.Normalize()

	if cfg.Migrate() {
		if err := Save(path, &cfg); err != nil {
			appLog.Error("failed to rewrite migrated config", err, "path", path)
		}
	}

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with
// 0600 permissions.
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
		return errors.Wrap(err, "create config dir")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	tmp, err := os.CreateTemp(dir, ".loeoutaged-config-*.tmp")
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
