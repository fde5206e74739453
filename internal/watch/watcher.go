// Package watch polls channels for live broadcasts, drives the shared live
// capture, and fans the going-live event out to registered hooks.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/OdielDomanie/clipper-bot/internal/extractor"
	"github.com/OdielDomanie/clipper-bot/internal/limiter"
	"github.com/OdielDomanie/clipper-bot/internal/models"
	"github.com/OdielDomanie/clipper-bot/internal/stream"
)

// DefaultPollPeriod is the base poll interval before backoff modulation.
const DefaultPollPeriod = 60 * time.Second

// HookFunc is an executable going-live action, bound from its persisted
// models.Hook form at registration time.
type HookFunc func(ctx context.Context, s *stream.Stream) error

// Fetcher is the slice of the extractor the poller needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts *extractor.FetchOptions) (*models.InfoRecord, error)
}

// Config carries the shared dependencies of every poller.
type Config struct {
	Fetcher  Fetcher
	Registry *stream.Registry
	Counter  *stream.DownloadCounter
	// Backoff is shared across pollers so one rate limit slows them all.
	Backoff *limiter.ExpBackoff
	Period  time.Duration
	Logger  *slog.Logger
}

// Poller watches one target for live broadcasts. While a broadcast is live it
// holds the shared download and waits; when the capture drops it re-polls to
// tell a transient hiccup from the real end of the stream.
type Poller struct {
	target string
	cfg    Config
	logger *slog.Logger

	// infoLimit throttles how often a poll of an already-known stream
	// refreshes its info record, which snapshots to the store each time.
	infoLimit *limiter.SkippingRateLimiter

	mu     sync.Mutex
	hooks  []hookEntry
	active *stream.Stream

	done chan struct{}
}

type hookEntry struct {
	key   string
	hooks []HookFunc
}

// NewPoller returns a poller for the target channel or stream URL.
func NewPoller(target string, cfg Config) *Poller {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPollPeriod
	}
	if cfg.Backoff == nil {
		cfg.Backoff = limiter.NewExpBackoff(0, 0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("target", target))
	return &Poller{
		target:    target,
		cfg:       cfg,
		logger:    logger,
		infoLimit: limiter.NewSkippingRateLimiter(10*time.Minute, 3),
		done:      make(chan struct{}),
	}
}

// AddHooks registers a hook tuple under a caller-chosen key. Tuples fire in
// registration order.
func (p *Poller) AddHooks(key string, hooks []HookFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, hookEntry{key: key, hooks: hooks})
}

// RemoveHooks removes the first hook tuple registered under key.
func (p *Poller) RemoveHooks(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.hooks {
		if e.key == key {
			p.hooks = append(p.hooks[:i], p.hooks[i+1:]...)
			return
		}
	}
}

// ActiveStream returns the stream currently held live by this poller, if any.
func (p *Poller) ActiveStream() *stream.Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Done is closed when the poller's loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Run polls until the context is cancelled or the target turns out to be
// forbidden.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.done)
	for {
		s, err := p.pollOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, models.ErrDownloadForbidden):
			p.logger.Warn("target forbidden, watcher ending", slog.Any("error", err))
			return
		case err != nil:
			if errors.Is(err, models.ErrRateLimited) {
				p.cfg.Backoff.Backoff()
			}
			p.logger.Warn("poll failed", slog.Any("error", err))
		default:
			p.cfg.Backoff.Cooldown()
		}

		if s != nil {
			if err := p.runLive(ctx, s); err != nil {
				if errors.Is(err, models.ErrDownloadForbidden) {
					p.logger.Warn("capture forbidden, watcher ending", slog.Any("error", err))
					return
				}
				p.logger.Warn("live session failed", slog.Any("error", err))
			}
		}

		if !sleep(ctx, p.waitPeriod()) {
			return
		}
	}
}

// pollOnce fetches the target's live state and returns the live stream
// instance, or nil when the target is offline.
func (p *Poller) pollOnce(ctx context.Context) (*stream.Stream, error) {
	info, err := p.cfg.Fetcher.Fetch(ctx, p.pollURL(), nil)
	if err != nil {
		return nil, err
	}
	if info == nil || !info.IsLive() {
		return nil, nil
	}

	uid := models.NewStreamUID(info.Platform(), info.ID, info.StartTime())
	if s, ok := p.cfg.Registry.Lookup(uid); ok && !p.infoLimit.Allow() {
		return s, nil
	}
	return p.cfg.Registry.GetOrCreate(streamPageURL(info, p.target), info, models.OnlineNow), nil
}

// pollURL is the URL whose metadata answers "is the target live right now".
func (p *Poller) pollURL() string {
	if strings.Contains(p.target, "youtube.com/channel/") &&
		!strings.HasSuffix(p.target, "/live") {
		return p.target + "/live"
	}
	return p.target
}

// streamPageURL picks the canonical page URL for the live broadcast. Twitch
// live streams have no page of their own, so the channel URL stands in.
func streamPageURL(info *models.InfoRecord, target string) string {
	if info.WebpageURL != "" {
		return info.WebpageURL
	}
	if info.Platform() == models.PlatformYouTube {
		return "https://www.youtube.com/watch?v=" + info.ID
	}
	return target
}

// runLive holds the shared capture for the whole live session: it starts the
// download, fires the hooks, and loops through capture drops, re-polling to
// decide between resuming and ending.
func (p *Poller) runLive(ctx context.Context, s *stream.Stream) error {
	if err := p.cfg.Counter.Start(ctx, s); err != nil {
		return err
	}
	p.setActive(s)
	defer p.setActive(nil)

	p.logger.Info("target live",
		slog.String("uid", string(s.UID)),
		slog.String("title", s.Title()),
	)
	p.fireAll(ctx, s)

	for {
		if lc := s.ActiveCapture(); lc != nil {
			select {
			case <-ctx.Done():
				p.cfg.Counter.Stop(s)
				return nil
			case <-lc.Done():
			}
			if blocked := lc.BlockedErr(); errors.Is(blocked, models.ErrDownloadForbidden) {
				p.cfg.Counter.Stop(s)
				return blocked
			}
		}

		// The capture dropped. Re-poll to see if the broadcast is really over.
		again, err := p.pollOnce(ctx)
		if err != nil {
			p.cfg.Counter.Stop(s)
			if errors.Is(err, models.ErrRateLimited) {
				p.cfg.Backoff.Backoff()
			}
			return err
		}
		if again == nil || again.UID != s.UID {
			p.logger.Info("target offline", slog.String("uid", string(s.UID)))
			s.SetOnline(models.OnlinePast)
			p.cfg.Counter.Stop(s)
			return nil
		}

		// Transient drop. Give the platform a moment before reconnecting.
		p.logger.Info("capture dropped while still live, resuming",
			slog.String("uid", string(s.UID)))
		if !sleep(ctx, p.waitPeriod()/3) {
			p.cfg.Counter.Stop(s)
			return nil
		}
		p.cfg.Counter.Stop(s)
		if err := p.cfg.Counter.Start(ctx, s); err != nil {
			return err
		}
	}
}

func (p *Poller) setActive(s *stream.Stream) {
	p.mu.Lock()
	p.active = s
	p.mu.Unlock()
}

// fireAll runs every registered hook tuple in order. Hook errors are logged
// and do not stop the watcher.
func (p *Poller) fireAll(ctx context.Context, s *stream.Stream) {
	p.mu.Lock()
	entries := make([]hookEntry, len(p.hooks))
	copy(entries, p.hooks)
	p.mu.Unlock()

	for _, e := range entries {
		FireHooks(ctx, p.logger, e.hooks, s)
	}
}

// FireHooks runs one hook tuple against a stream, logging failures.
func FireHooks(ctx context.Context, logger *slog.Logger, hooks []HookFunc, s *stream.Stream) {
	for _, h := range hooks {
		if err := h(ctx, s); err != nil {
			logger.Error("hook failed",
				slog.String("uid", string(s.UID)),
				slog.Any("error", err),
			)
		}
	}
}

func (p *Poller) waitPeriod() time.Duration {
	return p.cfg.Period + p.cfg.Backoff.CurrentWait()
}

// sleep waits out d, reporting false when the context ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
