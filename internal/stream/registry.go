package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OdielDomanie/clipper-bot/internal/kvstore"
	"github.com/OdielDomanie/clipper-bot/internal/models"
)

// snapshot is the persisted form of a Stream. Runtime state (the active
// capture, the locks) is rebuilt empty on restore.
type snapshot struct {
	UID          models.StreamUID   `json:"uid"`
	URL          string             `json:"url"`
	Title        string             `json:"title"`
	ChannelURL   string             `json:"channel_url"`
	StartTime    int64              `json:"start_time"`
	EndTime      int64              `json:"end_time,omitempty"`
	QuickSeek    bool               `json:"quick_seek"`
	LiveRewind   bool               `json:"live_rewind"`
	ActDLCount   int                `json:"actdl_count"`
	PastActDL    []capture          `json:"past_actdl,omitempty"`
	SegmentsLive []segment          `json:"segments_live,omitempty"`
	SegmentsVOD  []segment          `json:"segments_vod,omitempty"`
	Info         *models.InfoRecord `json:"info,omitempty"`
}

func (s *Stream) snapshotJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(snapshot{
		UID:          s.UID,
		URL:          s.URL,
		Title:        s.title,
		ChannelURL:   s.channelURL,
		StartTime:    s.startTime,
		EndTime:      s.endTime,
		QuickSeek:    s.quickSeek,
		LiveRewind:   s.liveRewind,
		ActDLCount:   s.actdlCount,
		PastActDL:    s.pastActDL,
		SegmentsLive: s.segmentsLive,
		SegmentsVOD:  s.segmentsVOD,
		Info:         s.info,
	})
}

func restoreStream(env *Env, data []byte) (*Stream, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding stream snapshot: %w", err)
	}
	if snap.UID == "" {
		return nil, fmt.Errorf("stream snapshot missing uid")
	}
	return &Stream{
		UID:          snap.UID,
		URL:          snap.URL,
		env:          env,
		title:        snap.Title,
		channelURL:   snap.ChannelURL,
		startTime:    snap.StartTime,
		endTime:      snap.EndTime,
		online:       models.OnlineUnknown,
		info:         snap.Info,
		quickSeek:    snap.QuickSeek,
		liveRewind:   snap.LiveRewind,
		actdlCount:   snap.ActDLCount,
		pastActDL:    snap.PastActDL,
		segmentsLive: snap.SegmentsLive,
		segmentsVOD:  snap.SegmentsVOD,
	}, nil
}

// Registry keeps the single live instance per broadcast and mirrors every
// mutation into the durable store.
type Registry struct {
	mu      sync.Mutex
	streams map[models.StreamUID]*Stream
	store   *kvstore.Store
	env     *Env
	logger  *slog.Logger
}

// NewRegistry wires env.Save to the registry's persistence and returns the
// empty registry. store may be nil in tests.
func NewRegistry(store *kvstore.Store, env *Env) *Registry {
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		streams: make(map[models.StreamUID]*Stream),
		store:   store,
		env:     env,
		logger:  logger,
	}
	env.Save = r.persist
	return r
}

func (r *Registry) persist(s *Stream) {
	if r.store == nil {
		return
	}
	data, err := s.snapshotJSON()
	if err != nil {
		r.logger.Error("snapshotting stream", slog.String("uid", string(s.UID)), slog.Any("error", err))
		return
	}
	if err := r.store.SetStream(s.UID, data); err != nil {
		r.logger.Error("persisting stream", slog.String("uid", string(s.UID)), slog.Any("error", err))
	}
}

// GetOrCreate returns the live instance for a broadcast, creating it on
// first sight. An existing instance absorbs the fresh info record.
func (r *Registry) GetOrCreate(url string, info *models.InfoRecord, online models.Online) *Stream {
	uid := models.NewStreamUID(info.Platform(), info.ID, info.StartTime())

	r.mu.Lock()
	if s, ok := r.streams[uid]; ok {
		r.mu.Unlock()
		s.SetInfo(info)
		s.SetOnline(online)
		return s
	}
	s := New(r.env, url, info, online)
	r.streams[s.UID] = s
	r.mu.Unlock()

	r.logger.Info("new stream",
		slog.String("uid", string(s.UID)),
		slog.String("title", s.Title()),
	)
	s.save()

	if r.env.RefineStart != nil && info.Platform() == models.PlatformYouTube && info.IsLive() {
		go r.refineStart(s, info.ID)
	}
	return s
}

// refineStart asks the metadata service for the actual live start, which is
// best-effort and may block through rate limits for minutes.
func (r *Registry) refineStart(s *Stream, videoID string) {
	epoch, err := r.env.RefineStart(context.Background(), videoID)
	if err != nil {
		r.logger.Warn("start time refinement failed",
			slog.String("uid", string(s.UID)), slog.Any("error", err))
		return
	}
	s.RefineStartTime(epoch)
}

// Lookup returns the live instance for a UID, if any.
func (r *Registry) Lookup(uid models.StreamUID) (*Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[uid]
	return s, ok
}

// All returns every live stream instance.
func (r *Registry) All() []*Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	return out
}

// Load restores every persisted stream snapshot into memory, typically at
// boot. Undecodable snapshots are logged and skipped.
func (r *Registry) Load() (int, error) {
	if r.store == nil {
		return 0, nil
	}
	snaps, err := r.store.AllStreams()
	if err != nil {
		return 0, fmt.Errorf("loading stream snapshots: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for uid, data := range snaps {
		if _, ok := r.streams[uid]; ok {
			continue
		}
		s, err := restoreStream(r.env, data)
		if err != nil {
			r.logger.Error("skipping bad stream snapshot",
				slog.String("uid", string(uid)), slog.Any("error", err))
			continue
		}
		r.streams[s.UID] = s
		n++
	}
	return n, nil
}

// BestCaptured picks which of a channel's captured streams a bare clip
// command refers to: the highest (active, priority, end or start time) key
// wins.
func (r *Registry) BestCaptured(captured []kvstore.CapturedStream) (*Stream, bool) {
	type key struct {
		active   bool
		priority float64
		when     int64
	}
	less := func(a, b key) bool {
		if a.active != b.active {
			return !a.active
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.when < b.when
	}

	var best *Stream
	var bestKey key
	for _, c := range captured {
		s, ok := r.Lookup(c.UID)
		if !ok {
			continue
		}
		when := s.EndTime()
		if when == 0 {
			when = s.StartTime()
		}
		k := key{active: s.Active(), priority: c.Priority, when: when}
		if best == nil || less(bestKey, k) {
			best, bestKey = s, k
		}
	}
	return best, best != nil
}
