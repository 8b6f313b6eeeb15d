// Package config loads goskip's settings from a YAML file and GOSKIP_
// environment variables.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/alvarorichard/goskip/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GOSKIP_API_BASE_URL
const EnvPrefix = "GOSKIP"

// Config holds all application configuration
type Config struct {
	Skip    SkipConfig    `mapstructure:"skip"`
	Cache   CacheConfig   `mapstructure:"cache"`
	API     APIConfig     `mapstructure:"api"`
	Player  PlayerConfig  `mapstructure:"player"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SkipConfig controls the skip scheduler
type SkipConfig struct {
	Intro          bool          `mapstructure:"intro"`
	Outro          bool          `mapstructure:"outro"`
	Cooldown       time.Duration `mapstructure:"cooldown" validate:"gte=0"`
	Delay          time.Duration `mapstructure:"delay" validate:"gte=0"`
	Notify         bool          `mapstructure:"notify"`
	NotifyDuration time.Duration `mapstructure:"notify_duration" validate:"gte=0"`
	// OutroFallback of 0 disables the fixed-length outro heuristic
	OutroFallback time.Duration `mapstructure:"outro_fallback" validate:"gte=0"`
}

// CacheConfig controls the timing cache and its durable tier
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	MaxSize int           `mapstructure:"max_size" validate:"gte=1"`
	Expiry  time.Duration `mapstructure:"expiry" validate:"gt=0"`
	Backend string        `mapstructure:"backend" validate:"oneof=bolt sqlite memory redis postgres"`
	// Path is the database file, a redis:// URL for redis or a DSN for postgres
	Path string `mapstructure:"path" validate:"required_unless=Backend memory"`
}

// APIConfig points at the remote timing API
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	Retries        int           `mapstructure:"retries" validate:"gte=1,lte=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gte=0"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// TimePrecision is the number of decimals kept; -1 keeps raw values
	TimePrecision int `mapstructure:"time_precision" validate:"gte=-1,lte=6"`
}

// PlayerConfig holds media player configuration
type PlayerConfig struct {
	Socket       string        `mapstructure:"socket"`
	Command      string        `mapstructure:"command" validate:"required"`
	Args         []string      `mapstructure:"args"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	File  string `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Listen is the address serving /metrics; empty disables the endpoint
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// Sections returns the sections enabled for skipping
func (c *Config) Sections() []models.Section {
	sections := make([]models.Section, 0, len(models.Sections))
	if c.Skip.Intro {
		sections = append(sections, models.SectionIntro)
	}
	if c.Skip.Outro {
		sections = append(sections, models.SectionOutro)
	}
	return sections
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("skip.intro", true)
	v.SetDefault("skip.outro", true)
	v.SetDefault("skip.cooldown", 2*time.Second)
	v.SetDefault("skip.delay", time.Duration(0))
	v.SetDefault("skip.notify", true)
	v.SetDefault("skip.notify_duration", 2*time.Second)
	v.SetDefault("skip.outro_fallback", time.Duration(0))

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_size", 100)
	v.SetDefault("cache.expiry", 7*24*time.Hour)
	v.SetDefault("cache.backend", "bolt")
	v.SetDefault("cache.path", defaultCachePath())

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.retries", 3)
	v.SetDefault("api.retry_base_delay", 500*time.Millisecond)
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.time_precision", 2)

	v.SetDefault("player.socket", "")
	v.SetDefault("player.command", "mpv")
	v.SetDefault("player.args", []string{})
	v.SetDefault("player.poll_interval", 500*time.Millisecond)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetDefault("metrics.listen", "")
}

// Load reads configuration. An explicit path must exist; otherwise
// config.yaml is looked up in the default config directory and the working
// directory, and a missing file means defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config")
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Cache.Backend = strings.ToLower(cfg.Cache.Backend)
	cfg.Cache.Path = expandHome(cfg.Cache.Path)
	cfg.Logging.File = expandHome(cfg.Logging.File)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

// ConfigFileUsed returns where Load would look for the default config file
func ConfigFileUsed() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "goskip")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "goskip")
	}
}

func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "goskip", "cache.db")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "goskip", "cache.db")
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
