package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playkeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Display.TickInterval())
	assert.Equal(t, 8*time.Second, cfg.Display.Throttle())
	assert.Equal(t, 30*time.Second, cfg.Display.RateLimitBackoff())
	assert.Equal(t, 100*time.Millisecond, cfg.Display.EndClamp())
	assert.Equal(t, 0.02, cfg.Display.NearEndFraction)
	assert.Equal(t, 2*time.Second, cfg.Display.NearEndMin())
	assert.Equal(t, 6*time.Second, cfg.Display.NearEndMax())
	assert.Equal(t, 10, cfg.Display.SweepLimit)

	assert.Equal(t, 6*time.Hour, cfg.Activity.IdleAfter())
	assert.Equal(t, 5*time.Minute, cfg.Activity.PromptTimeout())

	assert.Equal(t, 3, cfg.Autoplay.DesiredCount)
	assert.Equal(t, 2, cfg.Autoplay.LowWaterMark)
	assert.Equal(t, 20, cfg.Autoplay.RecentCapacity)

	assert.Equal(t, 2*time.Minute, cfg.Cleanup.Delay())

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 500, cfg.Redis.HistoryLimit)

	assert.False(t, cfg.Spotify.Enabled())
}

func TestLoad_OverridesFromFile(t *testing.T) {
	path := writeConfigFile(t, `
display:
  throttle_sec: 4
  tick_interval_sec: 5
activity:
  idle_hours: 2
  prompt_timeout_min: 1
autoplay:
  desired_count: 5
cleanup:
  delay_sec: 60
recommend:
  preferred_source: spotify
  fetch_size: 25
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4*time.Second, cfg.Display.Throttle())
	assert.Equal(t, 5*time.Second, cfg.Display.TickInterval())
	assert.Equal(t, 2*time.Hour, cfg.Activity.IdleAfter())
	assert.Equal(t, time.Minute, cfg.Activity.PromptTimeout())
	assert.Equal(t, 5, cfg.Autoplay.DesiredCount)
	assert.Equal(t, time.Minute, cfg.Cleanup.Delay())

	assert.Equal(t, "spotify", cfg.Recommend["preferred_source"])
	assert.Equal(t, 25, cfg.Recommend["fetch_size"])

	// Unset fields still get defaults.
	assert.Equal(t, 2, cfg.Autoplay.LowWaterMark)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")

	path := writeConfigFile(t, `
discord:
  token: file-token
redis:
  addr: file-addr:6379
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Discord.Token, "Environment should win over the file")
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.True(t, cfg.Spotify.Enabled())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "display: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name: "near-end window inverted",
			mutate: func(c *Config) {
				c.Display.NearEndMinSec = 10
				c.Display.NearEndMaxSec = 2
			},
			wantErr: true,
		},
		{
			name: "zero tick interval",
			mutate: func(c *Config) {
				c.Display.TickIntervalSec = 0
			},
			wantErr: true,
		},
		{
			name: "negative throttle",
			mutate: func(c *Config) {
				c.Display.ThrottleSec = -1
			},
			wantErr: true,
		},
		{
			name: "zero desired count",
			mutate: func(c *Config) {
				c.Autoplay.DesiredCount = 0
			},
			wantErr: true,
		},
		{
			name: "sweep limit above cap",
			mutate: func(c *Config) {
				c.Display.SweepLimit = 500
			},
			wantErr: true,
		},
		{
			name: "empty redis addr",
			mutate: func(c *Config) {
				c.Redis.Addr = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
