// Package download runs the external downloader processes: the long-running
// live capture writing an MPEG-TS file and blocking past-range fetches of
// finished or in-progress broadcasts.
package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/OdielDomanie/clipper-bot/internal/models"
)

const (
	// startupTimeout bounds the wait for the Destination marker on stdout.
	startupTimeout = 20 * time.Second
	// growthPollInterval is how often the output file size is re-checked.
	growthPollInterval = 5 * time.Second
	// stopGrace is how long a terminated downloader gets to exit.
	stopGrace = 5 * time.Second
	// minCaptureAge is the shortest capture worth keeping.
	minCaptureAge = 20 * time.Second
	// sealCushion backs the sealed end time off from the wall clock, since
	// the last fragments may still be buffered when the process dies.
	sealCushion = 20 * time.Second
)

// LiveCapture supervises one live download process. The output file grows
// while the capture runs and is safe to cut from concurrently.
type LiveCapture struct {
	URL        string
	OutputPath string

	logger *slog.Logger
	cmd    *exec.Cmd

	mu        sync.Mutex
	startTime time.Time
	endTime   time.Time
	blocked   error

	procExit chan struct{}
	waitErr  error
	done     chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
}

// StartLiveCapture launches the downloader for url writing to outputPath
// (which should carry a .ts extension) and returns once the download has
// demonstrably started. ctx bounds only the startup phase.
func StartLiveCapture(ctx context.Context, ytdlPath, cookieFile, url, outputPath string, logger *slog.Logger) (*LiveCapture, error) {
	return startCapture(ctx, ytdlPath, liveArgs(cookieFile, outputPath, url), url, outputPath, logger)
}

func liveArgs(cookieFile, outputPath, url string) []string {
	args := []string{
		"--hls-use-mpegts",
		"--match-filter", "is_live",
		// fixup would remux the mpegts file after the fact.
		"--fixup", "never",
		"--no-part",
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	return append(args, "-o", outputPath, url)
}

func startCapture(ctx context.Context, binary string, args []string, url, outputPath string, logger *slog.Logger) (*LiveCapture, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cmd := exec.Command(binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	c := &LiveCapture{
		URL:        url,
		OutputPath: outputPath,
		logger:     logger,
		cmd:        cmd,
		procExit:   make(chan struct{}),
		done:       make(chan struct{}),
		stopCh:     make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting downloader: %w", err)
	}
	logger.Info("live download launched",
		slog.String("url", url),
		slog.String("output", outputPath),
	)

	destCh := make(chan string, 1)
	stdoutDone := make(chan struct{})
	stderrDone := make(chan struct{})
	go func() {
		defer close(stdoutDone)
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if dest, ok := parseDestination(sc.Text()); ok {
				destCh <- dest
				break
			}
		}
		_, _ = io.Copy(io.Discard, stdout)
	}()
	go func() {
		defer close(stderrDone)
		c.scanStderr(stderr)
	}()
	go func() {
		<-stdoutDone
		<-stderrDone
		c.waitErr = cmd.Wait()
		close(c.procExit)
	}()

	select {
	case dest := <-destCh:
		c.mu.Lock()
		c.startTime = time.Now()
		c.mu.Unlock()
		logger.Info("live download started", slog.String("destination", dest))
	case <-c.procExit:
		if blocked := c.BlockedErr(); blocked != nil {
			return nil, blocked
		}
		return nil, fmt.Errorf("downloader exited before starting: %w", c.waitErr)
	case <-time.After(startupTimeout):
		c.terminate()
		return nil, errors.New("downloader did not start in time")
	case <-ctx.Done():
		c.terminate()
		return nil, ctx.Err()
	}

	go c.supervise()
	return c, nil
}

func parseDestination(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "[download] Destination: ")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func (c *LiveCapture) scanStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, "HTTP Error 429:"):
			c.setBlocked(models.ErrRateLimited)
			c.logger.Error("live download rate limited", slog.String("line", line))
		case strings.Contains(line, "HTTP Error 403:"):
			c.setBlocked(models.ErrDownloadForbidden)
			c.logger.Error("live download forbidden", slog.String("line", line))
		case strings.Contains(strings.ToLower(line), "error"),
			strings.Contains(strings.ToLower(line), "warning"):
			c.logger.Warn("downloader stderr", slog.String("line", line))
		}
	}
}

func (c *LiveCapture) setBlocked(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocked == nil {
		c.blocked = err
	}
}

// supervise ends the capture when the process exits, the file stops growing,
// or Stop is called.
func (c *LiveCapture) supervise() {
	defer close(c.done)

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	stalled := make(chan struct{})
	go func() {
		defer close(stalled)
		c.watchFile(watchCtx, growthPollInterval)
	}()

	select {
	case <-c.procExit:
		c.logger.Info("live download process ended",
			slog.String("url", c.URL),
			slog.Any("wait_err", c.waitErr),
		)
	case <-stalled:
		c.logger.Info("live download file stopped growing", slog.String("url", c.URL))
		c.terminate()
	case <-c.stopCh:
		c.logger.Info("live download cancelled", slog.String("url", c.URL))
		c.terminate()
	}

	c.mu.Lock()
	c.endTime = time.Now()
	c.mu.Unlock()
}

// watchFile returns when the output file disappears or two successive polls
// see the same size.
func (c *LiveCapture) watchFile(ctx context.Context, interval time.Duration) {
	var lastSize int64
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		fi, err := os.Stat(c.OutputPath)
		if err != nil {
			c.logger.Warn("live download file missing", slog.String("path", c.OutputPath))
			return
		}
		if fi.Size() == lastSize {
			return
		}
		lastSize = fi.Size()
	}
}

// terminate stops the downloader process tree. The wrapper does not reliably
// kill its muxer child on SIGTERM, so the children are killed explicitly.
func (c *LiveCapture) terminate() {
	select {
	case <-c.procExit:
		c.logger.Info("downloader already exited", slog.Any("wait_err", c.waitErr))
		return
	default:
	}

	var children []*process.Process
	if p, err := process.NewProcess(int32(c.cmd.Process.Pid)); err == nil {
		children, _ = p.Children()
	}

	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		c.logger.Warn("terminating downloader", slog.Any("error", err))
	}
	for _, child := range children {
		if err := child.Kill(); err != nil {
			c.logger.Warn("killing downloader child",
				slog.Int("pid", int(child.Pid)),
				slog.Any("error", err),
			)
		}
	}

	select {
	case <-c.procExit:
		c.logger.Info("downloader process ended", slog.Any("wait_err", c.waitErr))
	case <-time.After(stopGrace):
		c.logger.Error("downloader still running after grace period, continuing",
			slog.String("url", c.URL),
		)
	}
}

// Stop requests the capture to end. It returns immediately; use Wait to
// block until the process tree is down.
func (c *LiveCapture) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Wait blocks until the capture has fully wound down or ctx expires.
func (c *LiveCapture) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the capture has fully wound down.
func (c *LiveCapture) Done() <-chan struct{} {
	return c.done
}

// StartTime is when the Destination marker was observed.
func (c *LiveCapture) StartTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startTime
}

// BlockedErr reports a rate-limit or forbidden response seen on stderr.
func (c *LiveCapture) BlockedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked
}

// SealedEnd reports the conservative end time of the captured file once the
// capture is over. Captures shorter than 20 s carry too little to keep.
func (c *LiveCapture) SealedEnd() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	end := c.endTime
	if end.IsZero() {
		end = time.Now()
	}
	if c.startTime.IsZero() || end.Sub(c.startTime) < minCaptureAge {
		return time.Time{}, false
	}
	return end.Add(-sealCushion), true
}
