package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"player-scheduler/internal/source"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
sources:
  - path: /srv/media/main
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendHTTP, cfg.Player.Backend)
	assert.True(t, cfg.Player.Launch)
	assert.Equal(t, defaultPlayerHost, cfg.Player.Host)
	assert.Equal(t, defaultPlayerPort, cfg.Player.Port)
	assert.Equal(t, defaultPlayerPassword, cfg.Player.Password)
	assert.Equal(t, defaultImagePlayDuration, cfg.ImagePlayDuration)
	assert.Equal(t, defaultSettleDelay, cfg.SettleDelay)
	assert.Equal(t, defaultRebuildDelay, cfg.RebuildDelay)
	assert.Equal(t, defaultFileErrorThreshold, cfg.FileErrorThreshold)
	assert.Equal(t, "chain", cfg.MixingFunction)
	assert.Equal(t, source.DefaultDatePattern, cfg.FilenameWithADateRegex)
	assert.Equal(t, defaultLogLevel, cfg.LogLevel)
	assert.Empty(t, cfg.Control.Listen)
}

func TestLoadDurationsInSeconds(t *testing.T) {
	path := writeConfig(t, `
sources:
  - path: /srv/media/main
rebuild_delay: 30
image_play_duration: 10
settle_delay: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.RebuildDelay)
	assert.Equal(t, 10*time.Second, cfg.ImagePlayDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleDelay)
}

func TestLoadDurationFromEnvInSeconds(t *testing.T) {
	path := writeConfig(t, `
sources:
  - path: /srv/media/main
settle_delay: 250ms
`)
	t.Setenv("SCHEDULER_REBUILD_DELAY", "45")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.RebuildDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.SettleDelay)
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
debug: true
player:
  launch: false
  port: 9000
  password: hunter2
  options: ["--fullscreen", "--no-osd"]
sources:
  - path: /srv/media/day
    shuffle: true
    recursive: true
    item_play_duration: 15
    playing_time: "08:00-20:00"
  - path: /srv/media/ads
    play_every_minutes: 30
    repeat: 2
special_sources:
  - path: /srv/media/holiday
mixing_function: zip_equally
image_play_duration: 5s
rebuild_delay: 1m
ignore_playing_time_if_empty: true
control:
  listen: 127.0.0.1:8099
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Player.Launch)
	assert.Equal(t, 9000, cfg.Player.Port)
	assert.Equal(t, []string{"--fullscreen", "--no-osd"}, cfg.Player.Options)
	assert.Equal(t, "zip_equally", cfg.MixingFunction)
	assert.Equal(t, 5*time.Second, cfg.ImagePlayDuration)
	assert.Equal(t, time.Minute, cfg.RebuildDelay)
	assert.True(t, cfg.IgnorePlayingTimeIfEmpty)
	assert.Equal(t, "127.0.0.1:8099", cfg.Control.Listen)

	primary, special, err := cfg.ToSources()
	require.NoError(t, err)
	require.Len(t, primary, 2)

	day := primary[0]
	assert.True(t, day.Shuffle)
	assert.True(t, day.Recursive)
	assert.Equal(t, 15*time.Second, day.ItemPlayDuration)
	require.NotNil(t, day.Window)
	assert.Equal(t, "08:00-20:00", day.Window.String())

	ads := primary[1]
	assert.Equal(t, 30*time.Minute, ads.PlayEvery)
	assert.Equal(t, 2, ads.Repeats())
	assert.True(t, ads.IsPeriodic())

	require.Len(t, special, 1)
	assert.Equal(t, "/srv/media/holiday", special[0].Path)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
sources:
  - path: /srv/media/main
`)
	t.Setenv("SCHEDULER_PLAYER_PORT", "9191")
	t.Setenv("SCHEDULER_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Player.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadPathFromEnv(t *testing.T) {
	path := writeConfig(t, `
sources:
  - path: /from/env
`)
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "/from/env", cfg.Sources[0].Path)
}

func TestLoadWithoutSources(t *testing.T) {
	path := writeConfig(t, "debug: false\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "sources: [\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		LogLevel:               "info",
		Player:                 PlayerConfig{Backend: BackendHTTP, Port: 8080},
		Sources:                []SourceConfig{{Path: "/srv/media"}},
		MediaExtensions:        []string{"mp4"},
		FilenameWithADateRegex: source.DefaultDatePattern,
		ImagePlayDuration:      10 * time.Second,
		SettleDelay:            time.Second,
		MixingFunction:         "chain",
		RebuildDelay:           30 * time.Second,
		FileErrorThreshold:     2,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad window", func(c *Config) { c.Sources[0].PlayingTime = "25:00-26:00" }, "invalid time window"},
		{"window and period", func(c *Config) {
			c.Sources[0].PlayingTime = "08:00-09:00"
			c.Sources[0].PlayEveryMinutes = 10
		}, "cannot be combined with periodic playback"},
		{"negative duration", func(c *Config) { c.Sources[0].ItemPlayDuration = -1 }, "item_play_duration"},
		{"bad port", func(c *Config) { c.Player.Port = 0 }, "invalid player port"},
		{"bad backend", func(c *Config) { c.Player.Backend = "mpv" }, "invalid player backend"},
		{"bad mixing", func(c *Config) { c.MixingFunction = "round_robin" }, "round_robin"},
		{"bad regex", func(c *Config) { c.FilenameWithADateRegex = "([" }, "filename_with_a_date_regex"},
		{"bad image duration", func(c *Config) { c.ImagePlayDuration = 0 }, "image_play_duration"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"special only", func(c *Config) {
			c.SpecialSources = c.Sources
			c.Sources = nil
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDumpRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.Sources[0].PlayingTime = "22:00-02:00"

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))
	var back Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "chain", back.MixingFunction)
	require.Len(t, back.Sources, 1)
	assert.Equal(t, "22:00-02:00", back.Sources[0].PlayingTime)
	assert.Equal(t, 10*time.Second, back.ImagePlayDuration)
}

func TestDatePatternDisabled(t *testing.T) {
	cfg := validConfig()
	assert.NotNil(t, cfg.DatePattern())

	cfg.FilenameWithADateRegex = ""
	assert.Nil(t, cfg.DatePattern())
}
