// Package config loads hunt configuration from a YAML file with
// environment-variable overrides matching the legacy deployment scripts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iphunt/iphunt/internal/iprange"
)

// ErrInvalid marks configuration validation failures so the CLI can map them
// to a dedicated exit code before any remote call is made.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete configuration for a hunt run.
type Config struct {
	Cloud    CloudConfig    `yaml:"cloud"`
	Hunt     HuntConfig     `yaml:"hunt"`
	Telegram TelegramConfig `yaml:"telegram"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CloudConfig holds control-plane connection settings.
type CloudConfig struct {
	APIURL         string        `yaml:"api_url"`         // base URL; /v2.0 (neutron) and /v2.1 (nova) are appended
	AuthToken      string        `yaml:"auth_token"`      // X-Auth-Token value
	RequestTimeout time.Duration `yaml:"request_timeout"` // per-request cap
	MaxRetries     int           `yaml:"max_retries"`     // attempts per call on transient failures
}

// HuntConfig drives the port-hunting engine.
type HuntConfig struct {
	ServerID    string `yaml:"server_id"`    // target compute instance
	NetworkID   string `yaml:"network_id"`   // network ports are provisioned on
	ProtectedIP string `yaml:"protected_ip"` // address that must never be detached or deleted

	Ranges []RangeConfig `yaml:"ranges"` // acceptance ranges (two in the standard deployment)

	MaxConcurrent int           `yaml:"max_concurrent"` // in-flight attempt cap
	SpawnInterval time.Duration `yaml:"spawn_interval"` // delay between attempt launches
	PollInterval  time.Duration `yaml:"poll_interval"`  // address poll cadence
	PollTimeout   time.Duration `yaml:"poll_timeout"`   // per-attempt address deadline
	MaxAttempts   int           `yaml:"max_attempts"`   // total attempts before giving up (0 = unbounded)
	HuntTimeout   time.Duration `yaml:"hunt_timeout"`   // overall deadline (0 = unbounded)
}

// RangeConfig is one inclusive boundary pair.
type RangeConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// TelegramConfig configures the outbound notifier. Empty values disable it.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// MetricsConfig configures the optional Prometheus exposition endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9090"; empty disables the listener
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Cloud: CloudConfig{
			APIURL:         "https://api.cloud.vk.com",
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
		},
		Hunt: HuntConfig{
			MaxConcurrent: 5,
			SpawnInterval: time.Second,
			PollInterval:  2 * time.Second,
			PollTimeout:   40 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path (if it exists), applies environment
// overrides, and validates the result. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to env-only configuration
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the environment variables used by the original
// deployment scripts on top of file values.
func (c *Config) applyEnv() {
	setString(&c.Cloud.AuthToken, "VK_CLOUD_AUTH_TOKEN")
	setString(&c.Cloud.APIURL, "VK_CLOUD_API_URL")
	setInt(&c.Cloud.MaxRetries, "MAX_RETRIES")

	setString(&c.Hunt.ServerID, "VM_ID")
	setString(&c.Hunt.NetworkID, "EXTERNAL_NETWORK_ID")
	setString(&c.Hunt.ProtectedIP, "SAFE_IP")
	setInt(&c.Hunt.MaxConcurrent, "NUM_PORTS")
	setSeconds(&c.Hunt.PollInterval, "CHECK_INTERVAL")
	setSeconds(&c.Hunt.PollTimeout, "IP_WAIT_TIMEOUT")

	if start, end := os.Getenv("IP_RANGE_1_START"), os.Getenv("IP_RANGE_1_END"); start != "" && end != "" {
		c.setRange(0, start, end)
	}
	if start, end := os.Getenv("IP_RANGE_2_START"), os.Getenv("IP_RANGE_2_END"); start != "" && end != "" {
		c.setRange(1, start, end)
	}

	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Log.Level, "LOG_LEVEL")
}

func (c *Config) setRange(i int, start, end string) {
	for len(c.Hunt.Ranges) <= i {
		c.Hunt.Ranges = append(c.Hunt.Ranges, RangeConfig{})
	}
	c.Hunt.Ranges[i] = RangeConfig{Start: start, End: end}
}

// Validate checks required settings and value sanity. All problems are
// reported at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Cloud.AuthToken == "" {
		problems = append(problems, "cloud.auth_token (VK_CLOUD_AUTH_TOKEN) is required")
	}
	if c.Cloud.APIURL == "" {
		problems = append(problems, "cloud.api_url is required")
	}
	if c.Hunt.ServerID == "" {
		problems = append(problems, "hunt.server_id (VM_ID) is required")
	}
	if c.Hunt.NetworkID == "" {
		problems = append(problems, "hunt.network_id (EXTERNAL_NETWORK_ID) is required")
	}
	if c.Hunt.ProtectedIP == "" {
		problems = append(problems, "hunt.protected_ip (SAFE_IP) is required")
	}
	if len(c.Hunt.Ranges) == 0 {
		problems = append(problems, "at least one hunt range is required")
	}
	for i, r := range c.Hunt.Ranges {
		if _, err := iprange.New(r.Start, r.End); err != nil {
			problems = append(problems, fmt.Sprintf("hunt.ranges[%d]: %v", i, err))
		}
	}
	if c.Hunt.MaxConcurrent <= 0 {
		problems = append(problems, "hunt.max_concurrent must be positive")
	}
	if c.Hunt.PollInterval <= 0 {
		problems = append(problems, "hunt.poll_interval must be positive")
	}
	if c.Hunt.PollTimeout <= 0 {
		problems = append(problems, "hunt.poll_timeout must be positive")
	}
	if c.Cloud.MaxRetries < 1 {
		problems = append(problems, "cloud.max_retries must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalid, strings.Join(problems, "\n  - "))
	}
	return nil
}

// RangeSet converts the configured boundary pairs into a classifier set.
// Call Validate first; parse failures here are returned as-is.
func (c *Config) RangeSet() (iprange.Set, error) {
	set := make(iprange.Set, 0, len(c.Hunt.Ranges))
	for _, r := range c.Hunt.Ranges {
		parsed, err := iprange.New(r.Start, r.End)
		if err != nil {
			return nil, err
		}
		set = append(set, parsed)
	}
	return set, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setSeconds reads a bare-seconds integer, matching the legacy env format.
func setSeconds(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}
