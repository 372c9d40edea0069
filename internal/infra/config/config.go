// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Display   DisplayConfig  `yaml:"display"`
	Activity  ActivityConfig `yaml:"activity"`
	Autoplay  AutoplayConfig `yaml:"autoplay"`
	Cleanup   CleanupConfig  `yaml:"cleanup"`
	Recommend map[string]any `yaml:"recommend"` // Scorer settings, decoded by recommend.NewScorer
	Redis     RedisConfig    `yaml:"redis"`
	Discord   DiscordConfig  `yaml:"discord"`
	Spotify   SpotifyConfig  `yaml:"spotify"`
}

// DisplayConfig represents now-playing display configuration.
type DisplayConfig struct {
	TickIntervalSec     int     `yaml:"tick_interval_sec" default:"10" validate:"gte=1"`
	ThrottleSec         int     `yaml:"throttle_sec" default:"8" validate:"gte=0"`
	RateLimitBackoffSec int     `yaml:"rate_limit_backoff_sec" default:"30" validate:"gte=1"`
	EndClampMs          int     `yaml:"end_clamp_ms" default:"100" validate:"gte=0"`
	NearEndFraction     float64 `yaml:"near_end_fraction" default:"0.02" validate:"gte=0,lte=1"`
	NearEndMinSec       int     `yaml:"near_end_min_sec" default:"2" validate:"gte=0"`
	NearEndMaxSec       int     `yaml:"near_end_max_sec" default:"6" validate:"gte=0"`
	SweepLimit          int     `yaml:"sweep_limit" default:"10" validate:"gte=1,lte=100"`
}

// TickInterval returns the periodic refresh interval.
func (c DisplayConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSec) * time.Second
}

// Throttle returns the minimum gap between successful edits.
func (c DisplayConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleSec) * time.Second
}

// RateLimitBackoff returns the fixed backoff applied on rate limiting.
func (c DisplayConfig) RateLimitBackoff() time.Duration {
	return time.Duration(c.RateLimitBackoffSec) * time.Second
}

// EndClamp returns how far short of the end the displayed position stays.
func (c DisplayConfig) EndClamp() time.Duration {
	return time.Duration(c.EndClampMs) * time.Millisecond
}

// NearEndMin returns the lower bound of the near-end snap window.
func (c DisplayConfig) NearEndMin() time.Duration {
	return time.Duration(c.NearEndMinSec) * time.Second
}

// NearEndMax returns the upper bound of the near-end snap window.
func (c DisplayConfig) NearEndMax() time.Duration {
	return time.Duration(c.NearEndMaxSec) * time.Second
}

// ActivityConfig represents activity monitor configuration.
type ActivityConfig struct {
	IdleHours        int `yaml:"idle_hours" default:"6" validate:"gte=1"`
	PromptTimeoutMin int `yaml:"prompt_timeout_min" default:"5" validate:"gte=1"`
}

// IdleAfter returns the unattended span before a confirmation prompt.
func (c ActivityConfig) IdleAfter() time.Duration {
	return time.Duration(c.IdleHours) * time.Hour
}

// PromptTimeout returns the prompt response window.
func (c ActivityConfig) PromptTimeout() time.Duration {
	return time.Duration(c.PromptTimeoutMin) * time.Minute
}

// AutoplayConfig represents autoplay engine configuration.
type AutoplayConfig struct {
	DesiredCount   int `yaml:"desired_count" default:"3" validate:"gte=1"`
	LowWaterMark   int `yaml:"low_water_mark" default:"2" validate:"gte=1"`
	RecentCapacity int `yaml:"recent_capacity" default:"20" validate:"gte=1"`
}

// CleanupConfig represents post-queue-empty cleanup configuration.
type CleanupConfig struct {
	DelaySec int `yaml:"delay_sec" default:"120" validate:"gte=1"`
}

// Delay returns the grace period before an idle session is destroyed.
func (c CleanupConfig) Delay() time.Duration {
	return time.Duration(c.DelaySec) * time.Second
}

// RedisConfig represents the Redis history store configuration.
type RedisConfig struct {
	Addr         string `yaml:"addr" default:"localhost:6379" validate:"required"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db" validate:"gte=0"`
	HistoryLimit int    `yaml:"history_limit" default:"500" validate:"gte=1"`
}

// DiscordConfig represents the chat platform configuration.
type DiscordConfig struct {
	Token string `yaml:"token"`
}

// SpotifyConfig represents the optional preferred-source resolver
// configuration. Leave empty to disable the enrichment pass.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Enabled reports whether the Spotify resolver is configured.
func (c SpotifyConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Load loads configuration from a YAML file. Environment variables take
// precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Display.NearEndMinSec > c.Display.NearEndMaxSec {
		return errors.Newf("near_end_min_sec (%d) must not exceed near_end_max_sec (%d)",
			c.Display.NearEndMinSec, c.Display.NearEndMaxSec)
	}

	return nil
}
