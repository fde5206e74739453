package download

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/OdielDomanie/clipper-bot/internal/extractor"
	"github.com/OdielDomanie/clipper-bot/internal/models"
)

// Status classifies what kind of content a past-range fetch served.
type Status string

const (
	StatusLive Status = "is_live"
	// StatusPostLive means the broadcast ended but is still served as
	// ~1 s in-progress fragments.
	StatusPostLive Status = "post_live"
	// StatusProcessed is a finalized VOD.
	StatusProcessed Status = "processed"
	StatusOther     Status = "other"
)

// postLiveLimit is how far into a post-live broadcast fragments can still be
// fetched; beyond it the upstream serves garbage.
const postLiveLimit = 4 * time.Hour

// StatusOf maps an upstream live status to the fetch status class.
func StatusOf(ls models.LiveStatus) Status {
	switch ls {
	case models.StatusLive:
		return StatusLive
	case models.StatusPostLive:
		return StatusPostLive
	case models.StatusWasLive, models.StatusNotLive:
		return StatusProcessed
	default:
		return StatusOther
	}
}

type infoFetcher interface {
	Fetch(ctx context.Context, url string, opts *extractor.FetchOptions) (*models.InfoRecord, error)
}

type runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.Bytes(), errBuf.Bytes(), err
}

// PastDownloader fetches finite slices of a broadcast to local files.
// Callers serialize downloads of the same stream.
type PastDownloader struct {
	ytdlPath   string
	cookieFile string
	fetcher    infoFetcher
	logger     *slog.Logger

	run runner
}

// NewPastDownloader returns a PastDownloader refreshing metadata through
// fetcher before every fetch.
func NewPastDownloader(ytdlPath, cookieFile string, fetcher infoFetcher, logger *slog.Logger) *PastDownloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PastDownloader{
		ytdlPath:   ytdlPath,
		cookieFile: cookieFile,
		fetcher:    fetcher,
		logger:     logger,
		run:        execRunner,
	}
}

// Download fetches the [ss, ss+t] slice (seconds from broadcast start) of
// url into output. The refreshed info record and the served content class
// are returned so the caller can tell in-progress fragments from a
// finalized VOD.
func (d *PastDownloader) Download(ctx context.Context, url, output string, ss, t float64) (*models.InfoRecord, Status, error) {
	if ss < 0 || t <= 0 {
		return nil, StatusOther, fmt.Errorf("invalid range [%f, %f+%f]", ss, ss, t)
	}

	info, err := d.fetcher.Fetch(ctx, url, nil)
	if err != nil {
		return nil, StatusOther, err
	}
	if info == nil {
		return nil, StatusOther, fmt.Errorf("no metadata for %s", url)
	}
	status := StatusOf(info.LiveStatus)

	if status == StatusPostLive && time.Duration((ss+t)*float64(time.Second)) > postLiveLimit {
		return info, status, models.ErrOutOfTimeRange
	}

	args := pastArgs(d.cookieFile, output, url, ss, t, info.Platform(), status)
	d.logger.Info("past download",
		slog.String("url", url),
		slog.Float64("ss", ss),
		slog.Float64("t", t),
		slog.String("status", string(status)),
	)
	_, stderr, err := d.run(ctx, d.ytdlPath, args...)
	if err != nil {
		return info, status, classifyPastFailure(string(stderr), err)
	}
	return info, status, nil
}

func pastArgs(cookieFile, output, url string, ss, t float64, platform models.Platform, status Status) []string {
	args := []string{"--quiet", "--no-warnings", "--no-color"}
	switch status {
	case StatusLive, StatusPostLive:
		// In-progress fragments have to be fetched from the start sequence.
		args = append(args, "--live-from-start", "--match-filter", "is_live")
	default:
		args = append(args, "--match-filter", "!is_live")
		if platform != models.PlatformTwitch {
			args = append(args, "-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]")
		}
	}
	args = append(args, "--download-sections", fmt.Sprintf("*%d-%d", int64(ss), int64(ss+t)))
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	return append(args, "-o", output, url)
}

func classifyPastFailure(stderr string, err error) error {
	switch {
	case strings.Contains(stderr, "HTTP Error 429"):
		return models.ErrRateLimited
	case strings.Contains(stderr, "HTTP Error 403"):
		return models.ErrDownloadForbidden
	default:
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			return err
		}
		if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
			msg = strings.TrimSpace(msg[i+1:])
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
}
