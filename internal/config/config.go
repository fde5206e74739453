// Package config provides configuration management for clipperd using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultWebPort          = 8300
	defaultReadTimeout      = 30 * time.Second
	defaultWriteTimeout     = 5 * time.Minute
	defaultShutdownTimeout  = 10 * time.Second
	defaultPollPeriod       = 60 * time.Second
	defaultJanitorPeriod    = 120 * time.Second
	defaultMaxDownloadBytes = 50 * 1024 * 1024 * 1024 // 50GB
	defaultMaxClipBytes     = 10 * 1024 * 1024 * 1024 // 10GB
	defaultAttachmentLimit  = 8 * 1024 * 1024         // 8MB
	defaultMaxClipDuration  = 5 * time.Minute
	defaultDefClipDuration  = 10 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Clip     ClipConfig     `mapstructure:"clip"`
	Platform PlatformConfig `mapstructure:"platform"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the clip web server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// LinkHost and LinkPort are what generated links advertise. They may
	// differ from Host and Port when the server sits behind a port forward.
	LinkHost        string        `mapstructure:"link_host"`
	LinkPort        int           `mapstructure:"link_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig holds the on-disk layout and budgets.
type StorageConfig struct {
	DownloadDir string `mapstructure:"download_dir"`
	ClipDir     string `mapstructure:"clip_dir"`
	CookieFile  string `mapstructure:"cookie_file"`
	// MaxDownloadSize is the byte budget for the download directory.
	// Supports human-readable values like "50GB" or raw byte counts.
	MaxDownloadSize ByteSize `mapstructure:"max_download_size"`
	// MaxClipSize is the separate byte budget for finished clips.
	MaxClipSize ByteSize `mapstructure:"max_clip_size"`
}

// WatchConfig holds watcher and janitor timing.
type WatchConfig struct {
	PollPeriod    Duration `mapstructure:"poll_period"`
	JanitorPeriod Duration `mapstructure:"janitor_period"`
}

// ClipConfig holds clip extraction limits.
type ClipConfig struct {
	// AttachmentLimit is the chat platform's hard attachment size limit.
	AttachmentLimit ByteSize `mapstructure:"attachment_limit"`
	MaxDuration     Duration `mapstructure:"max_duration"`
	DefaultDuration Duration `mapstructure:"default_duration"`
}

// PlatformConfig holds upstream tool and API settings.
type PlatformConfig struct {
	YTDLPath      string `mapstructure:"ytdl_path"`
	FFmpegPath    string `mapstructure:"ffmpeg_path"`
	DirectoryFile string `mapstructure:"directory_file"`
	// HolodexToken authorizes start-time refinement lookups. Redacted from logs.
	HolodexToken string `mapstructure:"holodex_token" masq:"secret"`
}

// DatabaseConfig holds the durable KV store location.
type DatabaseConfig struct {
	Path     string `mapstructure:"path"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// SetDefaults registers all default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultWebPort)
	v.SetDefault("server.link_host", "")
	v.SetDefault("server.link_port", defaultWebPort)
	v.SetDefault("server.read_timeout", defaultReadTimeout)
	v.SetDefault("server.write_timeout", defaultWriteTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("storage.download_dir", "downloads")
	v.SetDefault("storage.clip_dir", "clips")
	v.SetDefault("storage.cookie_file", "cookies.txt")
	v.SetDefault("storage.max_download_size", defaultMaxDownloadBytes)
	v.SetDefault("storage.max_clip_size", defaultMaxClipBytes)

	v.SetDefault("watch.poll_period", defaultPollPeriod)
	v.SetDefault("watch.janitor_period", defaultJanitorPeriod)

	v.SetDefault("clip.attachment_limit", defaultAttachmentLimit)
	v.SetDefault("clip.max_duration", defaultMaxClipDuration)
	v.SetDefault("clip.default_duration", defaultDefClipDuration)

	v.SetDefault("platform.ytdl_path", "yt-dlp")
	v.SetDefault("platform.ffmpeg_path", "ffmpeg")
	v.SetDefault("platform.directory_file", "")
	v.SetDefault("platform.holodex_token", "")

	v.SetDefault("database.path", "clipper.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", "")
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with CLIPPER_, using underscores for nesting.
// Example: CLIPPER_SERVER_PORT=8300.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/clipperd")
		v.AddConfigPath("$HOME/.clipperd")
	}

	v.SetEnvPrefix("CLIPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; defaults and env vars still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return Unmarshal(v)
}

// Unmarshal decodes the given viper state into a Config and validates it.
// ByteSize and Duration fields accept their human-readable string forms.
func Unmarshal(v *viper.Viper) (*Config, error) {
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))

	var cfg Config
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.LinkPort <= 0 || c.Server.LinkPort > 65535 {
		errs = append(errs, fmt.Errorf("server.link_port must be 1-65535, got %d", c.Server.LinkPort))
	}
	if c.Storage.DownloadDir == "" {
		errs = append(errs, errors.New("storage.download_dir is required"))
	}
	if c.Storage.ClipDir == "" {
		errs = append(errs, errors.New("storage.clip_dir is required"))
	}
	if c.Storage.MaxDownloadSize <= 0 {
		errs = append(errs, errors.New("storage.max_download_size must be positive"))
	}
	if c.Storage.MaxClipSize <= 0 {
		errs = append(errs, errors.New("storage.max_clip_size must be positive"))
	}
	if c.Watch.PollPeriod <= 0 {
		errs = append(errs, errors.New("watch.poll_period must be positive"))
	}
	if c.Watch.JanitorPeriod <= 0 {
		errs = append(errs, errors.New("watch.janitor_period must be positive"))
	}
	if c.Clip.AttachmentLimit <= 0 {
		errs = append(errs, errors.New("clip.attachment_limit must be positive"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	return errors.Join(errs...)
}
