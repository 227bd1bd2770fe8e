package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "horaire/internal/log"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPI           = "https://simple-planning.henallux.be/api/getHoraireSalle"
	DefaultTimezone      = "Europe/Brussels"
	DefaultShiftHours    = -2
	DefaultFetchTimeout  = 30
	DefaultEOL           = "lf"
	DefaultWatchSchedule = "0 5 * * *"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the watch server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// WatchConfig drives the long-running `watch` command.
type WatchConfig struct {
	// Schedule is a 5-field cron expression evaluated in the configured timezone.
	Schedule string `yaml:"schedule" json:"schedule"`

	// Listen, when set, exposes the latest document over HTTP.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	// BasicAuth, if non-nil, guards every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// Config is the top-level application configuration. Every field can be
// overridden from the command line.
type Config struct {
	// Rooms is the path of the key=value room list.
	Rooms string `yaml:"rooms" json:"rooms"`

	// Output is the path of the generated XML document.
	Output string `yaml:"output" json:"output"`

	// API is the POST endpoint queried once per room.
	API string `yaml:"api" json:"api"`

	// Mock is a single feed file reused for every room.
	Mock string `yaml:"mock,omitempty" json:"mock,omitempty"`

	// MockDir holds one `<room>.json` or `<room>.txt` per room.
	MockDir string `yaml:"mock_dir,omitempty" json:"mock_dir,omitempty"`

	IncludeEmptyDays bool `yaml:"include_empty_days" json:"include_empty_days"`
	NoFilterLocation bool `yaml:"no_filter_location" json:"no_filter_location"`

	// ShiftHours is added to every parsed instant. Zero is a valid value.
	ShiftHours int `yaml:"shift_hours" json:"shift_hours"`

	// EOL is "lf" or "crlf".
	EOL string `yaml:"eol" json:"eol"`

	Verbose bool `yaml:"verbose" json:"verbose"`

	// LogLevel applies when Verbose is off: debug, info, warn or error.
	LogLevel string `yaml:"log_level,omitempty" json:"log_level,omitempty"`

	// Timezone is the IANA zone used as local time. Empty means UTC.
	Timezone string `yaml:"timezone" json:"timezone"`

	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	KeepGoing        bool `yaml:"keep_going" json:"keep_going"`
	MergeAcrossRooms bool `yaml:"merge_across_rooms" json:"merge_across_rooms"`

	// UploadCredentials points at an INI file with an [upload] section.
	UploadCredentials string `yaml:"upload_credentials,omitempty" json:"upload_credentials,omitempty"`

	Watch WatchConfig `yaml:"watch" json:"watch"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		API:                 DefaultAPI,
		ShiftHours:          DefaultShiftHours,
		EOL:                 DefaultEOL,
		Timezone:            DefaultTimezone,
		FetchTimeoutSeconds: DefaultFetchTimeout,
		Watch: WatchConfig{
			Schedule: DefaultWatchSchedule,
		},
	}
}

// Normalize fills in missing values so that partially-filled configs still
// behave. ShiftHours and Timezone are left alone: zero and empty are both
// meaningful.
func (c *Config) Normalize() {
	c.EOL = strings.ToLower(strings.TrimSpace(c.EOL))
	switch c.EOL {
	case "lf", "crlf":
	default:
		c.EOL = DefaultEOL
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = DefaultFetchTimeout
	}
	if strings.TrimSpace(c.Watch.Schedule) == "" {
		c.Watch.Schedule = DefaultWatchSchedule
	}
	if c.Watch.BasicAuth != nil && c.Watch.BasicAuth.Username == "" && c.Watch.BasicAuth.Password == "" {
		c.Watch.BasicAuth = nil
	}
}

// Validate reports settings a generation run cannot do without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Rooms) == "" {
		return errors.New("room list path is required (--rooms)")
	}
	if strings.TrimSpace(c.Output) == "" {
		return errors.New("output path is required (--out)")
	}
	if c.API == "" && c.Mock == "" && c.MockDir == "" {
		return errors.New("no data source: set --api, --mock or --mock-dir")
	}
	return nil
}

// FetchTimeout returns the per-room fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// Location resolves the configured timezone. An empty name, or a zone the
// host cannot load, yields UTC.
func (c *Config) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Warn("timezone unavailable, using UTC", "timezone", name, "err", err)
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written (0600) and
//     returned.
//   - Otherwise the YAML is decoded on top of the defaults, so keys missing
//     from the file keep their default value, then normalized.
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
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o700, 0o600)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data to a temp file next to path, syncs it, sets
// perm and renames it over path. Parent directories are created with dirPerm.
func WriteFileAtomic(path string, data []byte, dirPerm, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".horaire-*.tmp")
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
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
