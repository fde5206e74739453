package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8300, cfg.Server.Port)
	assert.Equal(t, 8300, cfg.Server.LinkPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "downloads", cfg.Storage.DownloadDir)
	assert.Equal(t, "clips", cfg.Storage.ClipDir)
	assert.Equal(t, int64(50*1024*1024*1024), cfg.Storage.MaxDownloadSize.Bytes())
	assert.Equal(t, int64(10*1024*1024*1024), cfg.Storage.MaxClipSize.Bytes())

	assert.Equal(t, 60*time.Second, cfg.Watch.PollPeriod.Duration())
	assert.Equal(t, 120*time.Second, cfg.Watch.JanitorPeriod.Duration())

	assert.Equal(t, int64(8*1024*1024), cfg.Clip.AttachmentLimit.Bytes())
	assert.Equal(t, 5*time.Minute, cfg.Clip.MaxDuration.Duration())
	assert.Equal(t, 10*time.Second, cfg.Clip.DefaultDuration.Duration())

	assert.Equal(t, "yt-dlp", cfg.Platform.YTDLPath)
	assert.Equal(t, "ffmpeg", cfg.Platform.FFmpegPath)

	assert.Equal(t, "clipper.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: 9090
  link_port: 443

storage:
  download_dir: "/var/lib/clipperd/downloads"
  max_download_size: "20GB"

watch:
  poll_period: "90s"

clip:
  attachment_limit: "25MB"
  max_duration: "10m"

platform:
  holodex_token: "secret-token"

logging:
  level: "debug"
  format: "text"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 443, cfg.Server.LinkPort)

	assert.Equal(t, "/var/lib/clipperd/downloads", cfg.Storage.DownloadDir)
	assert.Equal(t, int64(20*1024*1024*1024), cfg.Storage.MaxDownloadSize.Bytes())
	// Untouched values keep their defaults.
	assert.Equal(t, "clips", cfg.Storage.ClipDir)

	assert.Equal(t, 90*time.Second, cfg.Watch.PollPeriod.Duration())
	assert.Equal(t, int64(25*1024*1024), cfg.Clip.AttachmentLimit.Bytes())
	assert.Equal(t, 10*time.Minute, cfg.Clip.MaxDuration.Duration())

	assert.Equal(t, "secret-token", cfg.Platform.HolodexToken)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CLIPPER_SERVER_PORT", "9999")
	t.Setenv("CLIPPER_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad link port", func(c *Config) { c.Server.LinkPort = 70000 }, "server.link_port"},
		{"no download dir", func(c *Config) { c.Storage.DownloadDir = "" }, "download_dir"},
		{"no clip dir", func(c *Config) { c.Storage.ClipDir = "" }, "clip_dir"},
		{"bad download budget", func(c *Config) { c.Storage.MaxDownloadSize = 0 }, "max_download_size"},
		{"bad clip budget", func(c *Config) { c.Storage.MaxClipSize = -1 }, "max_clip_size"},
		{"bad poll period", func(c *Config) { c.Watch.PollPeriod = 0 }, "poll_period"},
		{"bad janitor period", func(c *Config) { c.Watch.JanitorPeriod = -1 }, "janitor_period"},
		{"bad attachment limit", func(c *Config) { c.Clip.AttachmentLimit = 0 }, "attachment_limit"},
		{"no db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
