package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/OdielDomanie/clipper-bot/internal/models"
)

// DownloadCounter shares the single live capture of a Stream between any
// number of watchers: the capture starts on the 0→1 transition and stops on
// 1→0.
type DownloadCounter struct {
	mu     sync.Mutex
	counts map[models.StreamUID]int
	logger *slog.Logger
}

// NewDownloadCounter returns an empty counter.
func NewDownloadCounter(logger *slog.Logger) *DownloadCounter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadCounter{counts: make(map[models.StreamUID]int), logger: logger}
}

// Start increments the stream's refcount, launching the capture when this
// is the first holder. The count is not incremented on a failed launch.
func (c *DownloadCounter) Start(ctx context.Context, s *Stream) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.counts[s.UID]
	if n == 0 {
		if err := s.StartDownload(ctx); err != nil {
			return err
		}
	} else {
		c.logger.Info("download already running, sharing",
			slog.String("uid", string(s.UID)),
			slog.Int("holders", n+1),
		)
	}
	c.counts[s.UID] = n + 1
	return nil
}

// Stop decrements the refcount, stopping the capture when the last holder
// leaves. Stopping a never-started stream is a programming error.
func (c *DownloadCounter) Stop(s *Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.counts[s.UID]
	if n <= 0 {
		panic("stream: Stop without matching Start for " + string(s.UID))
	}
	if n == 1 {
		delete(c.counts, s.UID)
		s.StopDownload()
		return
	}
	c.counts[s.UID] = n - 1
}

// Holders reports the current refcount for a stream.
func (c *DownloadCounter) Holders(uid models.StreamUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[uid]
}
