package janitor

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OdielDomanie/clipper-bot/internal/config"
	"github.com/OdielDomanie/clipper-bot/internal/kvstore"
	"github.com/OdielDomanie/clipper-bot/internal/models"
	"github.com/OdielDomanie/clipper-bot/internal/stream"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func writeFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// seedStream persists a stream snapshot claiming the given capture files, so
// a registry Load restores it.
func seedStream(t *testing.T, store *kvstore.Store, id string, startTime int64, paths ...string) models.StreamUID {
	t.Helper()
	uid := models.NewStreamUID(models.PlatformYouTube, id, startTime)
	captures := make([]map[string]any, 0, len(paths))
	for _, p := range paths {
		captures = append(captures, map[string]any{
			"path": p, "start": startTime, "end": startTime + 100,
		})
	}
	snap, err := json.Marshal(map[string]any{
		"uid":        uid,
		"url":        "https://www.youtube.com/watch?v=" + id,
		"title":      id,
		"start_time": startTime,
		"past_actdl": captures,
	})
	require.NoError(t, err)
	require.NoError(t, store.SetStream(uid, snap))
	return uid
}

func newTestJanitor(t *testing.T, cfg Config) (*Janitor, *kvstore.Store, *stream.Registry) {
	t.Helper()
	store, err := kvstore.Open(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry := stream.NewRegistry(store, &stream.Env{
		DownloadDir: cfg.DownloadDir,
		ClipDir:     cfg.ClipDir,
		Logger:      discardLogger(),
	})
	cfg.Logger = discardLogger()
	return New(cfg, registry), store, registry
}

func TestSweepDownloads(t *testing.T) {
	dlDir := t.TempDir()
	now := time.Now()

	orphan := filepath.Join(dlDir, "orphan.ts")
	oldCap := filepath.Join(dlDir, "old_stream0.ts")
	newCap := filepath.Join(dlDir, "new_stream0.ts")
	writeFile(t, orphan, 100, now.Add(-3*time.Hour))
	writeFile(t, oldCap, 100, now.Add(-2*time.Hour))
	writeFile(t, newCap, 100, now.Add(-time.Hour))

	j, store, registry := newTestJanitor(t, Config{
		DownloadDir:    dlDir,
		ClipDir:        t.TempDir(),
		DownloadBudget: 150,
		ClipBudget:     1 << 20,
	})
	seedStream(t, store, "old_stream01", now.Add(-2*time.Hour).Unix(), oldCap)
	seedStream(t, store, "new_stream01", now.Add(-time.Hour).Unix(), newCap)
	n, err := registry.Load()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	j.sweepDownloads()

	// The orphan goes first; the shortfall then comes out of the oldest
	// stream. The newest stream's capture survives.
	assert.NoFileExists(t, orphan)
	assert.NoFileExists(t, oldCap)
	assert.FileExists(t, newCap)
}

func TestSweepDownloads_UnderBudgetIsNoop(t *testing.T) {
	dlDir := t.TempDir()
	orphan := filepath.Join(dlDir, "orphan.ts")
	writeFile(t, orphan, 100, time.Now())

	j, _, _ := newTestJanitor(t, Config{
		DownloadDir:    dlDir,
		ClipDir:        t.TempDir(),
		DownloadBudget: 1 << 20,
		ClipBudget:     1 << 20,
	})
	j.sweepDownloads()
	assert.FileExists(t, orphan)
}

func TestSweepClips(t *testing.T) {
	clipDir := t.TempDir()
	now := time.Now()
	oldest := filepath.Join(clipDir, "a.mp4")
	middle := filepath.Join(clipDir, "b.mp4")
	newest := filepath.Join(clipDir, "c.mp4")
	writeFile(t, oldest, 100, now.Add(-3*time.Hour))
	writeFile(t, middle, 100, now.Add(-2*time.Hour))
	writeFile(t, newest, 100, now.Add(-time.Hour))

	j, _, _ := newTestJanitor(t, Config{
		DownloadDir:    t.TempDir(),
		ClipDir:        clipDir,
		DownloadBudget: 1 << 20,
		ClipBudget:     150,
	})
	j.sweepClips()

	assert.NoFileExists(t, oldest)
	assert.NoFileExists(t, middle)
	assert.FileExists(t, newest)
}

func TestJanitor_StartRunsSweeps(t *testing.T) {
	clipDir := t.TempDir()
	clip := filepath.Join(clipDir, "a.mp4")
	writeFile(t, clip, 100, time.Now().Add(-time.Hour))

	j, _, _ := newTestJanitor(t, Config{
		DownloadDir:    t.TempDir(),
		ClipDir:        clipDir,
		DownloadBudget: 1 << 20,
		ClipBudget:     10,
		Period:         50 * time.Millisecond,
	})
	require.NoError(t, j.Start())
	defer j.Stop()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(clip)
		return os.IsNotExist(err)
	}, 10*time.Second, 10*time.Millisecond)
}
