// Package config provides configuration management using Viper.
// It loads configuration from a YAML file, environment variables and an
// optional .env file, on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"player-scheduler/internal/logger"
	"player-scheduler/internal/media"
	"player-scheduler/internal/mixing"
	"player-scheduler/internal/source"
)

const (
	// EnvConfigPath names the variable holding an explicit config file path.
	EnvConfigPath = "SCHEDULER_YAML"

	configName = "scheduler"
	envPrefix  = "SCHEDULER"

	defaultPlayerHost         = "127.0.0.1"
	defaultPlayerPort         = 8080
	defaultPlayerPassword     = "vlcremote"
	defaultPlayerExtraIntf    = "http"
	defaultPlayerBackend      = BackendHTTP
	defaultImagePlayDuration  = 10 * time.Second
	defaultSettleDelay        = time.Second
	defaultRebuildDelay       = 30 * time.Second
	defaultFileErrorThreshold = 2
	defaultLogLevel           = "info"
)

// Player backends.
const (
	BackendHTTP   = "http"
	BackendLibVLC = "libvlc"
)

// ErrNoSources is returned when no source is configured.
var ErrNoSources = errors.New("at least one source must be defined")

// Config holds all application configuration.
type Config struct {
	Debug     bool   `mapstructure:"debug" yaml:"debug"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty" yaml:"log_pretty"`

	Player  PlayerConfig  `mapstructure:"player" yaml:"player"`
	Control ControlConfig `mapstructure:"control" yaml:"control"`

	Sources        []SourceConfig `mapstructure:"sources" yaml:"sources"`
	SpecialSources []SourceConfig `mapstructure:"special_sources" yaml:"special_sources,omitempty"`

	MediaExtensions          []string      `mapstructure:"media_extensions" yaml:"media_extensions"`
	PlaylistExtensions       []string      `mapstructure:"playlist_extensions" yaml:"playlist_extensions"`
	FilenameWithADateRegex   string        `mapstructure:"filename_with_a_date_regex" yaml:"filename_with_a_date_regex"`
	ImagePlayDuration        time.Duration `mapstructure:"image_play_duration" yaml:"image_play_duration"`
	SettleDelay              time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	MixingFunction           string        `mapstructure:"mixing_function" yaml:"mixing_function"`
	RebuildDelay             time.Duration `mapstructure:"rebuild_delay" yaml:"rebuild_delay"`
	IgnorePlayingTimeIfEmpty bool          `mapstructure:"ignore_playing_time_if_empty" yaml:"ignore_playing_time_if_empty"`
	FileErrorThreshold       int           `mapstructure:"file_error_threshold" yaml:"file_error_threshold"`
}

// PlayerConfig describes the VLC instance to control.
type PlayerConfig struct {
	Backend   string   `mapstructure:"backend" yaml:"backend"`
	Launch    bool     `mapstructure:"launch" yaml:"launch"`
	Path      string   `mapstructure:"path" yaml:"path"`
	Host      string   `mapstructure:"host" yaml:"host"`
	Port      int      `mapstructure:"port" yaml:"port"`
	Password  string   `mapstructure:"password" yaml:"password"`
	ExtraIntf string   `mapstructure:"extraintf" yaml:"extraintf"`
	Options   []string `mapstructure:"options" yaml:"options"`
}

// ControlConfig configures the local control API. An empty Listen
// disables it.
type ControlConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// SourceConfig is one configured media directory.
type SourceConfig struct {
	Path             string `mapstructure:"path" yaml:"path"`
	Shuffle          bool   `mapstructure:"shuffle" yaml:"shuffle"`
	Recursive        bool   `mapstructure:"recursive" yaml:"recursive"`
	ItemPlayDuration int    `mapstructure:"item_play_duration" yaml:"item_play_duration"`
	PlayingTime      string `mapstructure:"playing_time" yaml:"playing_time,omitempty"`
	PlayEveryMinutes int    `mapstructure:"play_every_minutes" yaml:"play_every_minutes,omitempty"`
	Repeat           int    `mapstructure:"repeat" yaml:"repeat,omitempty"`
}

// Load reads configuration from path, or from the usual locations when
// path is empty.
func Load(path string) (*Config, error) {
	// .env files are optional.
	_ = godotenv.Load() // nolint:errcheck

	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/player-scheduler")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsHook decodes bare numbers into durations as seconds, the unit
// item_play_duration uses. Values with a unit ("500ms", "1m") are left to
// time.ParseDuration.
func secondsHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	v := reflect.ValueOf(data)
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(v.Int()) * time.Second, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(v.Uint()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(v.Float() * float64(time.Second)), nil
	case reflect.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
	}
	return data, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_pretty", true)

	v.SetDefault("player.backend", defaultPlayerBackend)
	v.SetDefault("player.launch", true)
	v.SetDefault("player.path", "")
	v.SetDefault("player.host", defaultPlayerHost)
	v.SetDefault("player.port", defaultPlayerPort)
	v.SetDefault("player.password", defaultPlayerPassword)
	v.SetDefault("player.extraintf", defaultPlayerExtraIntf)
	v.SetDefault("player.options", []string{})

	v.SetDefault("control.listen", "")

	v.SetDefault("media_extensions", media.DefaultMediaExtensions)
	v.SetDefault("playlist_extensions", media.DefaultPlaylistExtensions)
	v.SetDefault("filename_with_a_date_regex", source.DefaultDatePattern)
	v.SetDefault("image_play_duration", defaultImagePlayDuration)
	v.SetDefault("settle_delay", defaultSettleDelay)
	v.SetDefault("mixing_function", mixing.DefaultFunction)
	v.SetDefault("rebuild_delay", defaultRebuildDelay)
	v.SetDefault("ignore_playing_time_if_empty", false)
	v.SetDefault("file_error_threshold", defaultFileErrorThreshold)
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 && len(c.SpecialSources) == 0 {
		return ErrNoSources
	}

	for i, s := range append(slices.Clone(c.Sources), c.SpecialSources...) {
		if _, err := s.ToSource(); err != nil {
			return fmt.Errorf("source %d: %w", i, err)
		}
	}

	if c.Player.Port < 1 || c.Player.Port > 65535 {
		return fmt.Errorf("invalid player port: %d (must be between 1 and 65535)", c.Player.Port)
	}
	if c.Player.Backend != BackendHTTP && c.Player.Backend != BackendLibVLC {
		return fmt.Errorf("invalid player backend: %q (must be %s or %s)", c.Player.Backend, BackendHTTP, BackendLibVLC)
	}

	if _, err := mixing.ByName[source.Item](c.MixingFunction); err != nil {
		return err
	}
	if _, err := regexp.Compile(c.FilenameWithADateRegex); err != nil {
		return fmt.Errorf("invalid filename_with_a_date_regex: %w", err)
	}

	if c.ImagePlayDuration <= 0 {
		return fmt.Errorf("invalid image_play_duration: %v (must be > 0)", c.ImagePlayDuration)
	}
	if c.RebuildDelay <= 0 {
		return fmt.Errorf("invalid rebuild_delay: %v (must be > 0)", c.RebuildDelay)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("invalid settle_delay: %v (must be >= 0)", c.SettleDelay)
	}
	if c.FileErrorThreshold < 0 {
		return fmt.Errorf("invalid file_error_threshold: %d (must be >= 0)", c.FileErrorThreshold)
	}
	if len(c.MediaExtensions) == 0 {
		return errors.New("media_extensions must not be empty")
	}

	if !slices.Contains(logger.ValidLevels(), c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(logger.ValidLevels(), ", "))
	}
	return nil
}

// ToSource converts the configured entry into a source.Source.
func (s SourceConfig) ToSource() (*source.Source, error) {
	if s.ItemPlayDuration < 0 {
		return nil, fmt.Errorf("source %s: item_play_duration must not be negative", s.Path)
	}
	if s.PlayEveryMinutes < 0 {
		return nil, fmt.Errorf("source %s: play_every_minutes must not be negative", s.Path)
	}

	src := &source.Source{
		Path:             s.Path,
		Shuffle:          s.Shuffle,
		Recursive:        s.Recursive,
		ItemPlayDuration: time.Duration(s.ItemPlayDuration) * time.Second,
		PlayEvery:        time.Duration(s.PlayEveryMinutes) * time.Minute,
		Repeat:           s.Repeat,
	}
	if s.PlayingTime != "" {
		w, err := source.ParseWindow(s.PlayingTime)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.Path, err)
		}
		src.Window = &w
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return src, nil
}

// ToSources converts the primary and special source lists.
func (c *Config) ToSources() (primary, special []*source.Source, err error) {
	if primary, err = toSources(c.Sources); err != nil {
		return nil, nil, err
	}
	if special, err = toSources(c.SpecialSources); err != nil {
		return nil, nil, err
	}
	return primary, special, nil
}

func toSources(in []SourceConfig) ([]*source.Source, error) {
	out := make([]*source.Source, 0, len(in))
	for _, s := range in {
		src, err := s.ToSource()
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// DatePattern compiles the filename date pattern. An empty pattern
// disables date filtering.
func (c *Config) DatePattern() *regexp.Regexp {
	if c.FilenameWithADateRegex == "" {
		return nil
	}
	return regexp.MustCompile(c.FilenameWithADateRegex)
}

// Dump writes the effective configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
