package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/OdielDomanie/clipper-bot/internal/limiter"
)

// holodexTimeout bounds one start-time refinement, which is best-effort
// and may retry through rate limits for a while.
const holodexTimeout = 5 * time.Minute

// HolodexClient refines YouTube start times from the Holodex API, which
// publishes the actual live start rather than the scheduled one.
type HolodexClient struct {
	token   string
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
	backoff *limiter.ExpBackoff
	sem     chan struct{}
}

// NewHolodexClient returns a client authorized by token. An empty token
// still works within Holodex's anonymous limits.
func NewHolodexClient(token string, logger *slog.Logger) *HolodexClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HolodexClient{
		token:   token,
		baseURL: "https://holodex.net/api/v2",
		httpc:   &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		backoff: limiter.NewExpBackoff(0, 0),
		sem:     make(chan struct{}, 1),
	}
}

// StartActual returns the actual live start of a video in epoch seconds.
func (h *HolodexClient) StartActual(ctx context.Context, videoID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, holodexTimeout)
	defer cancel()

	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	for {
		if err := h.backoff.Wait(ctx); err != nil {
			return 0, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			h.baseURL+"/videos/"+videoID, nil)
		if err != nil {
			return 0, err
		}
		if h.token != "" {
			req.Header.Set("X-APIKEY", h.token)
		}

		resp, err := h.httpc.Do(req)
		if err != nil {
			return 0, fmt.Errorf("holodex request: %w", err)
		}

		h.applyRateHeaders(resp)

		retryAfter := resp.Header.Get("Retry-After")
		if resp.StatusCode == http.StatusForbidden ||
			resp.StatusCode == http.StatusTooManyRequests ||
			(resp.StatusCode >= 500 && retryAfter == "") {
			resp.Body.Close()
			h.logger.Warn("holodex refused request", slog.Int("status", resp.StatusCode))
			h.backoff.Backoff()
			continue
		}

		var body struct {
			StartActual string `json:"start_actual"`
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		h.backoff.Cooldown()
		if err != nil {
			return 0, fmt.Errorf("decoding holodex response: %w", err)
		}
		if body.StartActual == "" {
			return 0, fmt.Errorf("holodex has no start_actual for %s", videoID)
		}

		t, err := time.Parse(time.RFC3339, body.StartActual)
		if err != nil {
			return 0, fmt.Errorf("parsing start_actual: %w", err)
		}
		return t.Unix(), nil
	}
}

// applyRateHeaders feeds server-provided wait hints into the shared gate.
func (h *HolodexClient) applyRateHeaders(resp *http.Response) {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			h.backoff.SetNotBefore(time.Now().Add(time.Duration(secs) * time.Second))
		}
		return
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "0" {
		if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil && reset > 0 {
			h.backoff.SetNotBefore(time.Unix(reset, 0))
		}
	}
}
