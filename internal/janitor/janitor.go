// Package janitor enforces the disk budgets for the download and clip
// directories on a recurring schedule.
package janitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/OdielDomanie/clipper-bot/internal/stream"
)

// DefaultPeriod is how often each sweep runs.
const DefaultPeriod = 120 * time.Second

// Config holds the janitor's directories and byte budgets.
type Config struct {
	DownloadDir    string
	ClipDir        string
	DownloadBudget int64
	ClipBudget     int64
	Period         time.Duration
	Logger         *slog.Logger
}

// Janitor runs the two sweeps on a cron schedule.
type Janitor struct {
	cfg      Config
	registry *stream.Registry
	logger   *slog.Logger
	cron     *cron.Cron
}

// New returns a janitor over the registry's streams.
func New(cfg Config, registry *stream.Registry) *Janitor {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the sweeps and begins running them.
func (j *Janitor) Start() error {
	spec := fmt.Sprintf("@every %s", j.cfg.Period)
	if _, err := j.cron.AddFunc(spec, j.sweepDownloads); err != nil {
		return fmt.Errorf("scheduling downloads sweep: %w", err)
	}
	if _, err := j.cron.AddFunc(spec, j.sweepClips); err != nil {
		return fmt.Errorf("scheduling clips sweep: %w", err)
	}
	j.cron.Start()
	j.logger.Info("janitor started", slog.Duration("period", j.cfg.Period))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("janitor stopped")
}

// sweepDownloads brings the download directory under budget: orphan files
// not claimed by any stream go first, then streams free their own oldest
// files in ascending start-time order. The active capture is never touched.
func (j *Janitor) sweepDownloads() {
	files, total, err := dirFiles(j.cfg.DownloadDir)
	if err != nil {
		j.logger.Error("listing download dir", slog.Any("error", err))
		return
	}
	if total <= j.cfg.DownloadBudget {
		return
	}
	j.logger.Info("download dir over budget",
		slog.Int64("total", total),
		slog.Int64("budget", j.cfg.DownloadBudget),
	)

	streams := j.registry.All()
	used := make(map[string]struct{})
	for _, s := range streams {
		for _, p := range s.UsedFiles() {
			used[p] = struct{}{}
		}
	}

	var freed int64
	for _, f := range files {
		if _, ok := used[f.path]; ok {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			j.logger.Warn("removing orphan", slog.String("path", f.path), slog.Any("error", err))
			continue
		}
		j.logger.Info("removed orphan download", slog.String("path", f.path))
		freed += f.size
	}

	need := total - freed - j.cfg.DownloadBudget
	if need <= 0 {
		return
	}

	sort.Slice(streams, func(i, k int) bool {
		return streams[i].StartTime() < streams[k].StartTime()
	})
	for _, s := range streams {
		if need <= 0 {
			break
		}
		need -= s.CleanSpace(need)
	}
}

// sweepClips enforces the clip budget LRU by mtime. Clips have no
// allow-list; anything may go.
func (j *Janitor) sweepClips() {
	files, total, err := dirFiles(j.cfg.ClipDir)
	if err != nil {
		j.logger.Error("listing clip dir", slog.Any("error", err))
		return
	}
	if total <= j.cfg.ClipBudget {
		return
	}

	sort.Slice(files, func(i, k int) bool {
		return files[i].mtime.Before(files[k].mtime)
	})
	for _, f := range files {
		if total <= j.cfg.ClipBudget {
			break
		}
		if err := os.Remove(f.path); err != nil {
			j.logger.Warn("removing clip", slog.String("path", f.path), slog.Any("error", err))
			continue
		}
		j.logger.Info("removed old clip", slog.String("path", f.path))
		total -= f.size
	}
}

type dirFile struct {
	path  string
	size  int64
	mtime time.Time
}

func dirFiles(dir string) ([]dirFile, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}
	var files []dirFile
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, dirFile{
			path:  filepath.Join(dir, e.Name()),
			size:  fi.Size(),
			mtime: fi.ModTime(),
		})
		total += fi.Size()
	}
	return files, total, nil
}
