package resolver

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/OdielDomanie/clipper-bot/internal/extractor"
	"github.com/OdielDomanie/clipper-bot/internal/models"
)

var (
	ytChannelPattern = regexp.MustCompile(`youtube\.com/channel/([A-Za-z0-9_-]{24})(?:[^A-Za-z0-9_-]|$)`)
	ytWatchPattern   = regexp.MustCompile(`youtube\.com/watch\?v=([A-Za-z0-9_-]{11})`)
	ytShortPattern   = regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`)
	ttvVideoPattern  = regexp.MustCompile(`twitch\.tv/videos/([0-9]+)`)
	ttvNamePattern   = regexp.MustCompile(`twitch\.tv/([A-Za-z0-9_]+)`)
	chnIDPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]{24}$`)
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// metadataFetcher is the slice of the extractor the resolver needs.
type metadataFetcher interface {
	Fetch(ctx context.Context, url string, opts *extractor.FetchOptions) (*models.InfoRecord, error)
}

// Resolver canonicalizes user strings into channel and stream URLs.
type Resolver struct {
	fetcher metadataFetcher
	dir     *Directory
	logger  *slog.Logger
}

// New returns a Resolver backed by the given extractor and directory.
func New(fetcher metadataFetcher, dir *Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == nil {
		dir = &Directory{}
	}
	return &Resolver{fetcher: fetcher, dir: dir, logger: logger}
}

// ChannelURLs resolves a user string to the set of channel URLs it names.
// A directory name may map to several channels; stream URLs resolve to
// nothing (a stream is not a channel). Unknown URLs get one extractor
// round-trip.
func (r *Resolver) ChannelURLs(ctx context.Context, s string) ([]string, error) {
	s = strings.TrimSpace(s)

	if isURL(s) {
		if m := ytChannelPattern.FindStringSubmatch(s); m != nil {
			return []string{"https://www.youtube.com/channel/" + m[1]}, nil
		}
		if strings.Contains(s, "youtube.com/watch") || strings.Contains(s, "youtu.be/") ||
			ttvVideoPattern.MatchString(s) {
			return nil, ErrNotFound
		}
		if m := ttvNamePattern.FindStringSubmatch(s); m != nil {
			return []string{"https://www.twitch.tv/" + m[1]}, nil
		}

		// Unknown URL: one extractor round-trip, no more guessing.
		info, err := r.fetcher.Fetch(ctx, s, nil)
		if err != nil {
			return nil, err
		}
		if info != nil && info.ChannelURL != "" {
			r.logger.Warn("found channel for unknown url",
				slog.String("input", s),
				slog.String("channel_url", info.ChannelURL),
			)
			return []string{info.ChannelURL}, nil
		}
		return nil, ErrNotFound
	}

	if chnIDPattern.MatchString(s) {
		return []string{"https://www.youtube.com/channel/" + s}, nil
	}

	if entry, err := r.dir.FromName(s); err == nil {
		return entry.Channels, nil
	}
	return nil, ErrNotFound
}

// StreamURL resolves a user string to a canonical stream URL. When the
// string names a channel, the channel's live broadcast is preferred and the
// most recent finished broadcast is the fallback; the info record from that
// lookup is returned alongside to save a fetch.
func (r *Resolver) StreamURL(ctx context.Context, s string) (string, *models.InfoRecord, error) {
	s = strings.TrimSpace(s)

	// A channel URL reduces to its channel ID.
	if m := ytChannelPattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	if isURL(s) {
		if m := ytWatchPattern.FindStringSubmatch(s); m != nil {
			return "https://www.youtube.com/watch?v=" + m[1], nil, nil
		}
		if m := ytShortPattern.FindStringSubmatch(s); m != nil {
			return "https://www.youtube.com/watch?v=" + m[1], nil, nil
		}
		if m := ttvVideoPattern.FindStringSubmatch(s); m != nil {
			return "https://www.twitch.tv/videos/" + m[1], nil, nil
		}
		if m := ttvNamePattern.FindStringSubmatch(s); m != nil {
			return "https://www.twitch.tv/" + m[1], nil, nil
		}
		return "", nil, ErrNotFound
	}

	switch {
	case chnIDPattern.MatchString(s):
		return r.streamOfChannel(ctx, s)
	case videoIDPattern.MatchString(s):
		return "https://www.youtube.com/watch?v=" + s, nil, nil
	default:
		return "", nil, ErrNotFound
	}
}

// streamOfChannel finds a channel's live broadcast, falling back to its most
// recent finished one.
func (r *Resolver) streamOfChannel(ctx context.Context, chnID string) (string, *models.InfoRecord, error) {
	baseURL := "https://www.youtube.com/channel/" + chnID

	live, err := r.fetcher.Fetch(ctx, baseURL+"/live", nil)
	if err != nil {
		return "", nil, err
	}
	if live != nil && live.IsLive() {
		return "https://www.youtube.com/watch?v=" + live.ID, live, nil
	}

	// Not live: compare the livestreams tab with the plain uploads tab and
	// take the most recent finished broadcast.
	opts := &extractor.FetchOptions{PlaylistItems: "1"}
	lsInfo, err := r.fetcher.Fetch(ctx, baseURL+"/videos?view=2&live_view=503", opts)
	if err != nil {
		return "", nil, err
	}
	allInfo, err := r.fetcher.Fetch(ctx, baseURL+"/videos", opts)
	if err != nil {
		return "", nil, err
	}

	lsEntry := firstEntry(lsInfo)
	allEntry := firstEntry(allInfo)

	var last *playlistEntry
	switch {
	case lsEntry != nil && allEntry != nil && allEntry.wasBroadcast():
		if lsEntry.ReleaseTimestamp > allEntry.ReleaseTimestamp {
			last = lsEntry
		} else {
			last = allEntry
		}
	case lsEntry != nil:
		last = lsEntry
	case allEntry != nil:
		last = allEntry
	}
	if last == nil {
		return "", nil, ErrNotFound
	}
	return "https://www.youtube.com/watch?v=" + last.ID, nil, nil
}

// playlistEntry is the slice of a channel-tab entry the fallback needs.
type playlistEntry struct {
	ID               string                     `json:"id"`
	ReleaseTimestamp int64                      `json:"release_timestamp"`
	WasLive          bool                       `json:"was_live"`
	Subtitles        map[string]json.RawMessage `json:"subtitles"`
}

// wasBroadcast reports whether the entry was a live broadcast or premiere.
func (e *playlistEntry) wasBroadcast() bool {
	if e.WasLive {
		return true
	}
	_, ok := e.Subtitles["live_chat"]
	return ok
}

func firstEntry(info *models.InfoRecord) *playlistEntry {
	if info == nil || len(info.Raw) == 0 {
		return nil
	}
	var payload struct {
		Entries []playlistEntry `json:"entries"`
	}
	if err := json.Unmarshal(info.Raw, &payload); err != nil || len(payload.Entries) == 0 {
		return nil
	}
	return &payload.Entries[0]
}

func isURL(s string) bool {
	return strings.Contains(s, ".") && strings.Contains(s, "/")
}
