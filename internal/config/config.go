// ABOUTME: fitcore configuration with defaults, JSON file and FITCORE_* env overrides.
// ABOUTME: Loaded with viper, saved as JSON, and opens the configured storage backend.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/fitcore/internal/charm"
	"github.com/harperreed/fitcore/internal/storage"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/viper"
)

// Defaults for unset keys.
const (
	DefaultBackend           = "badger"
	DefaultTickInterval      = time.Second
	DefaultQueuePollInterval = 30 * time.Second
	DefaultLogLevel          = "info"
)

// Config stores fitcore configuration.
type Config struct {
	// Backend selects the storage backend: "badger" (default), "sqlite" or "charm".
	Backend string `json:"backend,omitempty" mapstructure:"backend"`

	// DataDir is the root directory for local storage.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/fitcore.
	DataDir string `json:"data_dir,omitempty" mapstructure:"data_dir"`

	// DeviceID names this device to its peer. Generated on first init.
	DeviceID string `json:"device_id,omitempty" mapstructure:"device_id"`
	PeerID   string `json:"peer_id,omitempty" mapstructure:"peer_id"`

	// RedisAddr enables the direct channel when set.
	RedisAddr string `json:"redis_addr,omitempty" mapstructure:"redis_addr"`

	// CharmQueue enables the queued channel over Charm KV.
	CharmQueue bool   `json:"charm_queue,omitempty" mapstructure:"charm_queue"`
	CharmDB    string `json:"charm_db,omitempty" mapstructure:"charm_db"`

	RestTimers        bool   `json:"rest_timers" mapstructure:"rest_timers"`
	WeeklyGoal        int    `json:"weekly_goal,omitempty" mapstructure:"weekly_goal"`
	TickInterval      string `json:"tick_interval,omitempty" mapstructure:"tick_interval"`
	QueuePollInterval string `json:"queue_poll_interval,omitempty" mapstructure:"queue_poll_interval"`

	LogLevel string `json:"log_level,omitempty" mapstructure:"log_level"`
	LogFile  string `json:"log_file,omitempty" mapstructure:"log_file"`
}

// defaults holds every key so env overrides reach Unmarshal.
var defaults = map[string]any{
	"backend":             DefaultBackend,
	"data_dir":            "",
	"device_id":           "",
	"peer_id":             "",
	"redis_addr":          "",
	"charm_queue":         false,
	"charm_db":            charm.DefaultDB,
	"rest_timers":         true,
	"weekly_goal":         0,
	"tick_interval":       DefaultTickInterval.String(),
	"queue_poll_interval": DefaultQueuePollInterval.String(),
	"log_level":           DefaultLogLevel,
	"log_file":            "",
}

// Keys returns every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetBackend returns the configured backend, defaulting to "badger".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return DefaultBackend
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetTickInterval returns the clock tick interval.
func (c *Config) GetTickInterval() time.Duration {
	return parseDuration(c.TickInterval, DefaultTickInterval)
}

// GetQueuePollInterval returns how often the queued channel is drained.
func (c *Config) GetQueuePollInterval() time.Duration {
	return parseDuration(c.QueuePollInterval, DefaultQueuePollInterval)
}

// GetLogFile returns the log file path, defaulting to the XDG state directory.
func (c *Config) GetLogFile() string {
	if c.LogFile == "" {
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			home, _ := os.UserHomeDir()
			stateHome = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(stateHome, "fitcore", "fitcore.log")
	}
	return ExpandPath(c.LogFile)
}

// PeerConfigured reports whether sync has someone to talk to.
func (c *Config) PeerConfigured() bool {
	return c.DeviceID != "" && c.PeerID != ""
}

// EnsureDeviceID assigns a fresh device ID if none is set. It reports
// whether one was generated.
func (c *Config) EnsureDeviceID() bool {
	if c.DeviceID != "" {
		return false
	}
	c.DeviceID = GenerateDeviceID()
	return true
}

// GenerateDeviceID creates a new unique device ID.
func GenerateDeviceID() string {
	return ulid.Make().String()
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage creates the Gateway for the configured backend. The charm
// backend needs an open client; the others ignore it.
func (c *Config) OpenStorage(cc *charm.Client) (storage.Gateway, error) {
	backend := c.GetBackend()
	switch backend {
	case "charm":
		if cc == nil {
			return nil, fmt.Errorf("charm backend requires a charm client")
		}
		if c.DeviceID == "" {
			return nil, fmt.Errorf("charm backend requires a device_id")
		}
		return charm.NewGateway(cc, c.DeviceID), nil
	default:
		dataDir := c.GetDataDir()
		if err := os.MkdirAll(dataDir, 0750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return storage.Open(backend, dataDir)
	}
}

// NeedsCharm reports whether any configured component uses Charm KV.
func (c *Config) NeedsCharm() bool {
	return c.CharmQueue || c.GetBackend() == "charm"
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "fitcore", "config.json")
}

// Load reads config from defaults, the config file and FITCORE_* variables,
// in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("FITCORE")
	v.AutomaticEnv()

	path := GetConfigPath()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Set assigns a key from its string form, validating the value.
func (c *Config) Set(key, value string) error {
	switch key {
	case "backend":
		switch value {
		case "badger", "sqlite", "charm":
		default:
			return fmt.Errorf("unknown backend: %q", value)
		}
		c.Backend = value
	case "data_dir":
		c.DataDir = value
	case "device_id":
		c.DeviceID = value
	case "peer_id":
		c.PeerID = value
	case "redis_addr":
		c.RedisAddr = value
	case "charm_queue", "rest_timers":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == "charm_queue" {
			c.CharmQueue = b
		} else {
			c.RestTimers = b
		}
	case "charm_db":
		c.CharmDB = value
	case "weekly_goal":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("weekly_goal must be a non-negative integer: %q", value)
		}
		c.WeeklyGoal = n
	case "tick_interval", "queue_poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration: %q", key, value)
		}
		if key == "tick_interval" {
			c.TickInterval = value
		} else {
			c.QueuePollInterval = value
		}
	case "log_level":
		switch value {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("unknown log level: %q", value)
		}
		c.LogLevel = value
	case "log_file":
		c.LogFile = value
	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return nil
}
