// Package extractor queries upstream URLs through yt-dlp and normalizes the
// results into info records. All upstream calls funnel through one extractor
// so rate-limit pressure is shared.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/OdielDomanie/clipper-bot/internal/limiter"
	"github.com/OdielDomanie/clipper-bot/internal/models"
)

// repeatLogWindow squelches repeats of the same error message for the same
// URL, so a channel that 404s every poll logs once per half hour.
const repeatLogWindow = 30 * time.Minute

// liveTitleSuffix is the " YYYY-MM-DD HH:MM" date YouTube appends to live
// titles.
var liveTitleSuffix = regexp.MustCompile(` \d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)

// runner executes the external tool; stubbed in tests.
type runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.Bytes(), errBuf.Bytes(), err
}

// Extractor fetches metadata for upstream URLs.
type Extractor struct {
	ytdlPath   string
	cookieFile string
	logger     *slog.Logger

	// Backoff is shared with the watchers so rate-limit pressure slows
	// polling too.
	Backoff *limiter.ExpBackoff

	// sem serializes upstream metadata calls.
	sem chan struct{}

	mu       sync.Mutex
	repeated map[string]map[string]time.Time

	run runner
	now func() time.Time
}

// New returns an Extractor invoking the given yt-dlp binary with the given
// cookie jar.
func New(ytdlPath, cookieFile string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		ytdlPath:   ytdlPath,
		cookieFile: cookieFile,
		logger:     logger,
		Backoff:    limiter.NewExpBackoff(0, 0),
		sem:        make(chan struct{}, 1),
		repeated:   make(map[string]map[string]time.Time),
		run:        execRunner,
		now:        time.Now,
	}
}

// FetchOptions tweak a single fetch.
type FetchOptions struct {
	// PlaylistItems selects entries when the URL is a playlist or channel
	// tab; empty means "0" with --no-playlist, matching single-video use.
	PlaylistItems string
}

// Fetch queries url and returns the normalized info record.
//
// A nil record with nil error means the URL is not currently a recognized
// stream: the channel is offline, the event has not begun, or the fetch
// failed in a way worth only a squelched log. ErrRateLimited is returned on
// an upstream 429; the caller should let the shared backoff absorb it.
func (e *Extractor) Fetch(ctx context.Context, url string, opts *FetchOptions) (*models.InfoRecord, error) {
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := e.Backoff.Wait(ctx); err != nil {
		return nil, err
	}

	args := []string{"-J", "--no-warnings", "--no-color", "--skip-download"}
	if opts != nil && opts.PlaylistItems != "" {
		args = append(args, "--playlist-items", opts.PlaylistItems)
	} else {
		args = append(args, "--no-playlist", "--playlist-items", "0")
	}
	if e.cookieFile != "" {
		args = append(args, "--cookies", e.cookieFile)
	}
	if strings.Contains(url, "youtube.com/") {
		args = append(args, "--referer", "https://www.youtube.com/feed/subscriptions")
	}
	args = append(args, url)

	stdout, stderr, err := e.run(ctx, e.ytdlPath, args...)
	if err != nil {
		return nil, e.classifyFailure(url, string(stderr), err)
	}

	e.Backoff.Cooldown()

	rec, err := normalize(stdout)
	if err != nil {
		e.logRepeated(url, err.Error())
		return nil, nil
	}
	return rec, nil
}

// classifyFailure sorts a tool failure into the error taxonomy.
func (e *Extractor) classifyFailure(url, stderr string, err error) error {
	switch {
	case strings.Contains(stderr, "This live event will begin in"),
		strings.Contains(stderr, "is offline"):
		e.logger.Debug("target not live", slog.String("url", url))
		return nil
	case strings.Contains(stderr, "HTTP Error 429"):
		e.logger.Error("rate limited by upstream", slog.String("url", url))
		e.Backoff.Backoff()
		if t, ok := retryAfter(stderr, e.now()); ok {
			e.Backoff.SetNotBefore(t)
		}
		return models.ErrRateLimited
	case strings.Contains(stderr, "HTTP Error 403"):
		e.logger.Error("download forbidden", slog.String("url", url))
		return models.ErrDownloadForbidden
	default:
		msg := stderr
		if msg == "" {
			msg = err.Error()
		}
		e.logRepeated(url, msg)
		return nil
	}
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry.after[:\s]+(\d+)`)

// retryAfter extracts a server-provided wait hint when the tool surfaces
// one.
func retryAfter(stderr string, now time.Time) (time.Time, bool) {
	m := retryAfterPattern.FindStringSubmatch(stderr)
	if m == nil {
		return time.Time{}, false
	}
	var secs int
	if _, err := fmt.Sscanf(m[1], "%d", &secs); err != nil {
		return time.Time{}, false
	}
	return now.Add(time.Duration(secs) * time.Second), true
}

// logRepeated logs an error once per distinct message per URL within the
// squelch window.
func (e *Extractor) logRepeated(url, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	seen := e.repeated[url]
	if seen == nil {
		seen = make(map[string]time.Time)
		e.repeated[url] = seen
	}
	if last, ok := seen[msg]; ok && now.Sub(last) < repeatLogWindow {
		return
	}
	seen[msg] = now
	e.logger.Error("metadata fetch failed",
		slog.String("url", url),
		slog.String("error", msg),
	)
}

// normalize decodes the tool's JSON into an InfoRecord, retaining the raw
// blob.
func normalize(data []byte) (*models.InfoRecord, error) {
	var rec models.InfoRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding info json: %w", err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("info json missing id")
	}
	rec.Raw = json.RawMessage(bytes.Clone(data))

	if rec.LiveStatus == models.StatusLive {
		rec.Title = liveTitleSuffix.ReplaceAllString(rec.Title, "")
	}
	return &rec, nil
}
