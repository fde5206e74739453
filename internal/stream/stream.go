package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OdielDomanie/clipper-bot/internal/download"
	"github.com/OdielDomanie/clipper-bot/internal/media"
	"github.com/OdielDomanie/clipper-bot/internal/models"
	"github.com/OdielDomanie/clipper-bot/internal/resolver"
)

// gapPad widens past-range downloads around uncovered gaps so keyframe
// seeks have material to land on.
const gapPad = 30

// oversizeSlack is how far over the attachment limit a clip may be and
// still be worth a one-second-shorter retry.
const oversizeSlack = 800 * 1024

// errCantSseof means the from-end fast path cannot cover the window;
// callers fall back to addressing from the start.
var errCantSseof = errors.New("stream: window not covered by the live download")

// Cutter is the slice of the media cutter a Stream uses.
type Cutter interface {
	Cut(ctx context.Context, source string, seek media.Seek, t time.Duration, outBase string, audioOnly, quickSeek bool) (string, error)
	Concat(ctx context.Context, sources []media.ConcatSource, outBase string) (string, error)
	Screenshot(ctx context.Context, source string, seek media.Seek, quickSeek bool) ([]byte, error)
}

// PastDL fetches a finite slice of a broadcast to a file.
type PastDL interface {
	Download(ctx context.Context, url, output string, ss, t float64) (*models.InfoRecord, download.Status, error)
}

// Env bundles the collaborators every Stream needs. The registry fills Save
// so mutations are snapshotted to the durable store.
type Env struct {
	Cutter      Cutter
	Past        PastDL
	Dir         *resolver.Directory
	DownloadDir string
	ClipDir     string
	YTDLPath    string
	CookieFile  string
	Logger      *slog.Logger
	Save        func(*Stream)
	// RefineStart, when set, resolves a video ID to its actual live start
	// in epoch seconds. Platforms report the scheduled start until well
	// into the broadcast, which skews from-start addressing.
	RefineStart func(ctx context.Context, videoID string) (int64, error)
}

type capture struct {
	Path  string `json:"path"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

type segment struct {
	SS   int64  `json:"ss"`
	T    int64  `json:"t"`
	Path string `json:"path"`
}

// Stream is the per-broadcast entity. There is at most one live instance
// per UID; all watchers and clip requests for a broadcast share it.
type Stream struct {
	UID models.StreamUID
	URL string

	env *Env

	// clipMu serializes clip extractions, which read and repair the
	// segment lists. pastdlMu serializes past-range downloads.
	clipMu   sync.Mutex
	pastdlMu sync.Mutex

	mu           sync.Mutex
	title        string
	channelURL   string
	startTime    int64
	endTime      int64
	online       models.Online
	info         *models.InfoRecord
	quickSeek    bool
	liveRewind   bool
	dl           *download.LiveCapture
	actdlCount   int
	pastActDL    []capture
	segmentsLive []segment
	segmentsVOD  []segment
}

// New builds a Stream from a fresh info record.
func New(env *Env, url string, info *models.InfoRecord, online models.Online) *Stream {
	s := &Stream{
		UID:        models.NewStreamUID(info.Platform(), info.ID, info.StartTime()),
		URL:        url,
		env:        env,
		title:      info.Title,
		channelURL: info.ChannelURL,
		startTime:  info.StartTime(),
		online:     online,
		info:       info,
		quickSeek:  true,
		// Twitch serves an ongoing broadcast only as a finalized VOD
		// afterwards; YouTube can rewind into in-progress fragments.
		liveRewind: info.Platform() != models.PlatformTwitch,
	}
	if info.Duration > 0 {
		s.endTime = info.StartTime() + int64(info.Duration)
	}
	return s
}

func (s *Stream) logger() *slog.Logger {
	if s.env.Logger != nil {
		return s.env.Logger
	}
	return slog.Default()
}

func (s *Stream) save() {
	if s.env.Save != nil {
		s.env.Save(s)
	}
}

// Title returns the broadcast title.
func (s *Stream) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// ChannelURL returns the owning channel's URL.
func (s *Stream) ChannelURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelURL
}

// StartTime is the broadcast start in epoch seconds.
func (s *Stream) StartTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime
}

// EndTime is the broadcast end in epoch seconds, zero while unknown.
func (s *Stream) EndTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// Online reports the stream's lifecycle state.
func (s *Stream) Online() models.Online {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// SetOnline updates the lifecycle state.
func (s *Stream) SetOnline(o models.Online) {
	s.mu.Lock()
	s.online = o
	s.mu.Unlock()
	s.save()
}

// Info returns the last polled metadata record.
func (s *Stream) Info() *models.InfoRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// SetInfo overwrites the metadata record. The start time never moves
// backwards once finalized.
func (s *Stream) SetInfo(info *models.InfoRecord) {
	s.mu.Lock()
	s.info = info
	if info.Title != "" {
		s.title = info.Title
	}
	if t := info.StartTime(); t > s.startTime {
		s.startTime = t
	}
	if info.Duration > 0 {
		s.endTime = s.startTime + int64(info.Duration)
	}
	s.mu.Unlock()
	s.save()
}

// RefineStartTime overrides the start with an authoritative value, such as
// the actual live start a metadata service reports.
func (s *Stream) RefineStartTime(epoch int64) {
	if epoch <= 0 {
		return
	}
	s.mu.Lock()
	changed := s.startTime != epoch
	s.startTime = epoch
	s.mu.Unlock()
	if changed {
		s.save()
	}
}

// Active reports whether a live capture is running.
func (s *Stream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dl != nil
}

// ActiveCapture returns the running live capture, if any.
func (s *Stream) ActiveCapture() *download.LiveCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dl
}

func sanitizeTitle(title string) string {
	return strings.ReplaceAll(title, "/", "_")
}

// StartDownload launches the live capture. ctx bounds only the startup.
func (s *Stream) StartDownload(ctx context.Context) error {
	s.mu.Lock()
	if s.dl != nil {
		s.mu.Unlock()
		return errors.New("stream: download already active")
	}
	output := filepath.Join(
		s.env.DownloadDir, sanitizeTitle(s.title)+strconv.Itoa(s.actdlCount)+".ts",
	)
	s.mu.Unlock()

	lc, err := download.StartLiveCapture(ctx, s.env.YTDLPath, s.env.CookieFile, s.URL, output, s.logger())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.dl = lc
	if s.startTime == 0 {
		// Started late; a rough value beats none and gets refined by polls.
		s.startTime = time.Now().Unix()
	}
	s.mu.Unlock()
	s.save()

	go s.reapDownload(lc)
	return nil
}

// StopDownload asks the running capture to end. Stopping an inactive stream
// is a no-op.
func (s *Stream) StopDownload() {
	s.mu.Lock()
	cap := s.dl
	s.mu.Unlock()
	if cap != nil {
		cap.Stop()
	}
}

// reapDownload folds a finished capture into the past-capture list, or
// discards it when too short to be useful.
func (s *Stream) reapDownload(lc *download.LiveCapture) {
	<-lc.Done()

	end, keep := lc.SealedEnd()
	if keep {
		start := lc.StartTime().Unix()
		endEpoch := end.Unix()
		probeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if d, err := media.ProbeTS(probeCtx, lc.OutputPath); err == nil {
			endEpoch = start + int64(d.Seconds())
		}
		cancel()

		s.mu.Lock()
		s.pastActDL = append(s.pastActDL, capture{Path: lc.OutputPath, Start: start, End: endEpoch})
		s.actdlCount++
		if endEpoch > s.endTime {
			s.endTime = endEpoch
		}
		s.dl = nil
		s.mu.Unlock()
	} else {
		s.logger().Info("discarding too-short capture", slog.String("path", lc.OutputPath))
		s.mu.Lock()
		s.dl = nil
		s.mu.Unlock()
	}
	s.save()
}

// ClipFromStart cuts [ts, ts+duration] addressed from the broadcast start.
func (s *Stream) ClipFromStart(ctx context.Context, ts, duration time.Duration, audioOnly bool) (models.Clip, error) {
	path, _, err := s.clipSS(ctx, ts, duration, audioOnly, false)
	if err != nil {
		return models.Clip{}, err
	}
	return s.clipResult(path, duration, -1, ts, audioOnly)
}

// ClipFromEnd cuts the window ending ago before the live edge (or the
// broadcast end). The from-end fast path only works while the live capture
// covers the window; otherwise the request is re-addressed from the start.
func (s *Stream) ClipFromEnd(ctx context.Context, ago, duration time.Duration, audioOnly bool) (models.Clip, error) {
	ts := s.fromStartEquivalent(ago)

	path, _, err := s.clipSseof(ctx, ago, duration, audioOnly, false)
	if errors.Is(err, errCantSseof) {
		path, _, err = s.clipSS(ctx, ts, duration, audioOnly, false)
	}
	if err != nil {
		return models.Clip{}, err
	}
	return s.clipResult(path, duration, ago, ts, audioOnly)
}

// ScreenshotFromStart grabs one frame at ts from the broadcast start.
func (s *Stream) ScreenshotFromStart(ctx context.Context, ts time.Duration) (models.Screenshot, error) {
	_, png, err := s.clipSS(ctx, ts, time.Second, false, true)
	if err != nil {
		return models.Screenshot{}, err
	}
	return s.screenshotResult(png, -1, ts), nil
}

// ScreenshotFromEnd grabs one frame ago before the live edge.
func (s *Stream) ScreenshotFromEnd(ctx context.Context, ago time.Duration) (models.Screenshot, error) {
	ts := s.fromStartEquivalent(ago)

	_, png, err := s.clipSseof(ctx, ago, time.Second, false, true)
	if errors.Is(err, errCantSseof) {
		_, png, err = s.clipSS(ctx, ts, time.Second, false, true)
	}
	if err != nil {
		return models.Screenshot{}, err
	}
	return s.screenshotResult(png, ago, ts), nil
}

// fromStartEquivalent converts an ago-based window into an offset from the
// broadcast start. Both address the point ago before the edge, so only ago
// moves the offset back from it.
func (s *Stream) fromStartEquivalent(ago time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge := s.endTime
	if edge == 0 {
		edge = time.Now().Unix()
	}
	ts := time.Duration(edge-s.startTime)*time.Second - ago
	if ts < 0 {
		ts = 0
	}
	return ts
}

func (s *Stream) clipResult(path string, duration, ago, ts time.Duration, audioOnly bool) (models.Clip, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return models.Clip{}, fmt.Errorf("stat clip: %w", err)
	}
	return models.Clip{
		Path:      path,
		Size:      fi.Size(),
		Duration:  duration,
		Ago:       ago,
		FromStart: ts,
		AudioOnly: audioOnly,
	}, nil
}

func (s *Stream) screenshotResult(png []byte, ago, ts time.Duration) models.Screenshot {
	return models.Screenshot{
		Name:      fmt.Sprintf("%s_%.0f.png", s.Title(), ts.Seconds()),
		Data:      png,
		Ago:       ago,
		FromStart: ts,
	}
}

func (s *Stream) outBase(ts, duration time.Duration) string {
	return filepath.Join(
		s.env.ClipDir,
		fmt.Sprintf("%s_%.0f_%.0f", sanitizeTitle(s.Title()), ts.Seconds(), duration.Seconds()),
	)
}

// clipSseof is the fast path cutting backwards from the live edge of the
// running capture.
func (s *Stream) clipSseof(ctx context.Context, ago, duration time.Duration, audioOnly, shot bool) (string, []byte, error) {
	s.mu.Lock()
	dl := s.dl
	quickSeek := s.quickSeek
	s.mu.Unlock()

	if dl == nil || dl.StartTime().IsZero() || time.Since(dl.StartTime()) < ago {
		return "", nil, errCantSseof
	}

	if shot {
		png, err := s.env.Cutter.Screenshot(ctx, dl.OutputPath, media.SeekEnd(ago), quickSeek)
		return "", png, err
	}
	ts := s.fromStartEquivalent(ago)
	path, err := s.env.Cutter.Cut(ctx, dl.OutputPath, media.SeekEnd(ago), duration, s.outBase(ts, duration), audioOnly, quickSeek)
	return path, nil, err
}

// clipSS serves a window addressed from the broadcast start, trying the
// active capture, then sealed captures, then VOD-range segments. Dead file
// entries are pruned between the three attempts.
func (s *Stream) clipSS(ctx context.Context, ts, duration time.Duration, audioOnly, shot bool) (string, []byte, error) {
	s.clipMu.Lock()
	defer s.clipMu.Unlock()

	if shot {
		duration = time.Second
	}
	absLo := s.StartTime() + int64(ts.Seconds())
	absHi := absLo + int64(duration.Seconds())
	outBase := s.outBase(ts, duration)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		s.mu.Lock()
		dl := s.dl
		quickSeek := s.quickSeek
		s.mu.Unlock()

		// Active capture covering the start serves even windows that spill
		// into the future.
		if dl != nil && !dl.StartTime().IsZero() && dl.StartTime().Unix() <= absLo {
			offset := time.Duration(absLo-dl.StartTime().Unix()) * time.Second
			path, png, err := s.cutOne(ctx, dl.OutputPath, offset, duration, outBase, audioOnly, quickSeek, shot)
			if err == nil {
				return path, png, nil
			}
			lastErr = err
			continue
		}

		if c, ok := s.coveringCapture(absLo, absHi); ok {
			offset := time.Duration(absLo-c.Start) * time.Second
			path, png, err := s.cutOne(ctx, c.Path, offset, duration, outBase, audioOnly, quickSeek, shot)
			if err == nil {
				return path, png, nil
			}
			if errors.Is(err, os.ErrNotExist) {
				s.logger().Error("capture file gone, pruning and retrying",
					slog.String("path", c.Path))
				s.dropCapture(c)
				s.save()
			}
			lastErr = err
			continue
		}

		path, png, err := s.clipFromSegments(ctx, ts, duration, audioOnly, shot, outBase)
		if err == nil {
			return path, png, nil
		}
		lastErr = err
		s.pruneDeadSegments()
	}
	return "", nil, lastErr
}

func (s *Stream) cutOne(
	ctx context.Context,
	source string,
	offset, duration time.Duration,
	outBase string,
	audioOnly, quickSeek, shot bool,
) (string, []byte, error) {
	if shot {
		png, err := s.env.Cutter.Screenshot(ctx, source, media.SeekStart(offset), quickSeek)
		return "", png, err
	}
	path, err := s.env.Cutter.Cut(ctx, source, media.SeekStart(offset), duration, outBase, audioOnly, quickSeek)
	return path, nil, err
}

func (s *Stream) coveringCapture(absLo, absHi int64) (capture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.pastActDL {
		if c.Start <= absLo && absHi <= c.End {
			return c, true
		}
	}
	return capture{}, false
}

func (s *Stream) dropCapture(c capture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, have := range s.pastActDL {
		if have == c {
			s.pastActDL = append(s.pastActDL[:i], s.pastActDL[i+1:]...)
			return
		}
	}
}

// clipFromSegments reconciles the target window against the VOD-range
// segment lists and downloads the uncovered gaps.
func (s *Stream) clipFromSegments(
	ctx context.Context,
	ts, duration time.Duration,
	audioOnly, shot bool,
	outBase string,
) (string, []byte, error) {
	s.mu.Lock()
	var liveStatus models.LiveStatus
	if s.info != nil {
		liveStatus = s.info.LiveStatus
	}
	expect := download.StatusOf(liveStatus)
	inProgress := expect == download.StatusLive || expect == download.StatusPostLive
	var segs []Segment
	src := s.segmentsVOD
	if inProgress {
		src = s.segmentsLive
	}
	for _, sg := range src {
		segs = append(segs, Segment{Path: sg.Path, Interval: Interval{Lo: sg.SS, Hi: sg.SS + sg.T}})
	}
	endRel := s.endTime - s.startTime
	if s.endTime == 0 {
		endRel = time.Now().Unix() - s.startTime
	}
	liveRewind := s.liveRewind
	quickSeek := s.quickSeek
	s.mu.Unlock()

	if inProgress && !liveRewind {
		// The platform offers no rewind until the VOD is finalized.
		return "", nil, models.ErrDownloadCacheMissing
	}

	target := Interval{Lo: int64(ts.Seconds()), Hi: int64((ts + duration).Seconds())}
	pieces, uncovered := FindIntersections(target, segs)
	for _, gap := range uncovered {
		dlStart := max(gap.Lo-gapPad, 0)
		dlEnd := min(gap.Hi+gapPad, endRel)
		if dlEnd <= dlStart {
			return "", nil, fmt.Errorf("%w: [%d, %d] is past the broadcast end",
				models.ErrOutOfTimeRange, gap.Lo, gap.Hi)
		}
		path, status, err := s.downloadPast(ctx, dlStart, dlEnd-dlStart)
		if err != nil {
			return "", nil, err
		}
		if status != expect {
			return "", nil, fmt.Errorf("live status moved from %s to %s mid-clip", expect, status)
		}
		pieces = append(pieces, Piece{
			Path: path,
			Abs:  gap,
			In:   gap.Lo - dlStart,
			Out:  gap.Hi - dlStart,
		})
	}
	sort.Slice(pieces, func(i, j int) bool { return pieces[i].Abs.Lo < pieces[j].Abs.Lo })
	if len(pieces) == 0 {
		return "", nil, models.ErrDownloadCacheMissing
	}

	if shot {
		p := pieces[0]
		png, err := s.env.Cutter.Screenshot(ctx, p.Path,
			media.SeekStart(time.Duration(p.In)*time.Second), quickSeek)
		return "", png, err
	}

	sources := make([]media.ConcatSource, 0, len(pieces))
	for _, p := range pieces {
		sources = append(sources, media.ConcatSource{
			Path: p.Path,
			In:   time.Duration(p.In) * time.Second,
			Out:  time.Duration(p.Out) * time.Second,
		})
	}
	out, err := s.env.Cutter.Concat(ctx, sources, outBase)
	return out, nil, err
}

// downloadPast fetches [ss, ss+t] of the broadcast and files the segment
// under the status class the upstream actually served.
func (s *Stream) downloadPast(ctx context.Context, ss, t int64) (string, download.Status, error) {
	s.pastdlMu.Lock()
	defer s.pastdlMu.Unlock()

	out := filepath.Join(
		s.env.DownloadDir,
		fmt.Sprintf("%s%d_%d.mp4", sanitizeTitle(s.Title()), ss, t),
	)
	info, status, err := s.env.Past.Download(ctx, s.URL, out, float64(ss), float64(t))
	if err != nil {
		return "", status, err
	}

	s.mu.Lock()
	s.info = info
	if st := info.StartTime(); st > s.startTime {
		s.startTime = st
	}
	sg := segment{SS: ss, T: t, Path: out}
	if status == download.StatusLive || status == download.StatusPostLive {
		s.segmentsLive = append(s.segmentsLive, sg)
	} else {
		s.segmentsVOD = append(s.segmentsVOD, sg)
	}
	s.mu.Unlock()
	s.save()

	return out, status, nil
}

// pruneDeadSegments drops segment entries whose files are gone. Reports
// whether anything was pruned.
func (s *Stream) pruneDeadSegments() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := false
	for _, list := range []*[]segment{&s.segmentsLive, &s.segmentsVOD} {
		kept := (*list)[:0]
		for _, sg := range *list {
			if _, err := os.Stat(sg.Path); err == nil {
				kept = append(kept, sg)
			} else {
				s.logger().Error("segment file gone, pruning", slog.String("path", sg.Path))
				pruned = true
			}
		}
		*list = kept
	}
	return pruned
}

// FitToLimit retries a clip barely over the attachment limit with one
// second less duration, deleting the original on success. Clips far over
// the limit are returned as-is for the caller to reject.
func (s *Stream) FitToLimit(ctx context.Context, clip models.Clip, limit int64) (models.Clip, error) {
	if clip.Size <= limit || clip.Size-limit > oversizeSlack || clip.Duration <= time.Second {
		return clip, nil
	}

	shorter := clip.Duration - time.Second
	var again models.Clip
	var err error
	if clip.Ago >= 0 {
		again, err = s.ClipFromEnd(ctx, clip.Ago, shorter, clip.AudioOnly)
	} else {
		again, err = s.ClipFromStart(ctx, clip.FromStart, shorter, clip.AudioOnly)
	}
	if err != nil {
		return clip, nil
	}
	if again.Size <= limit {
		_ = os.Remove(clip.Path)
		return again, nil
	}
	_ = os.Remove(again.Path)
	return clip, nil
}

// UsedFiles lists the files the janitor must not treat as orphans.
func (s *Stream) UsedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []string
	if s.dl != nil {
		res = append(res, s.dl.OutputPath)
	}
	for _, c := range s.pastActDL {
		res = append(res, c.Path)
	}
	for _, sg := range s.segmentsLive {
		res = append(res, sg.Path)
	}
	for _, sg := range s.segmentsVOD {
		res = append(res, sg.Path)
	}
	return res
}

// CleanSpace deletes this stream's oldest cached files until at least need
// bytes are freed or nothing deletable remains. The active capture is never
// touched. Returns the bytes freed.
func (s *Stream) CleanSpace(need int64) int64 {
	s.mu.Lock()

	type victim struct {
		path  string
		size  int64
		mtime time.Time
		undo  func()
	}
	var victims []victim

	keptCaps := s.pastActDL[:0]
	for _, c := range s.pastActDL {
		c := c
		fi, err := os.Stat(c.Path)
		if err != nil {
			continue
		}
		keptCaps = append(keptCaps, c)
		victims = append(victims, victim{c.Path, fi.Size(), fi.ModTime(), func() { s.dropCaptureLocked(c) }})
	}
	s.pastActDL = keptCaps

	for _, list := range []*[]segment{&s.segmentsLive, &s.segmentsVOD} {
		list := list
		kept := (*list)[:0]
		for _, sg := range *list {
			sg := sg
			fi, err := os.Stat(sg.Path)
			if err != nil {
				continue
			}
			kept = append(kept, sg)
			victims = append(victims, victim{sg.Path, fi.Size(), fi.ModTime(), func() { dropSegment(list, sg) }})
		}
		*list = kept
	}

	sort.Slice(victims, func(i, j int) bool { return victims[i].mtime.Before(victims[j].mtime) })

	var freed int64
	for _, v := range victims {
		if freed >= need {
			break
		}
		if err := os.Remove(v.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger().Warn("deleting cached file", slog.String("path", v.path), slog.Any("error", err))
			continue
		}
		s.logger().Info("deleted cached file", slog.String("path", v.path))
		v.undo()
		freed += v.size
	}

	s.mu.Unlock()
	s.save()
	return freed
}

func (s *Stream) dropCaptureLocked(c capture) {
	for i, have := range s.pastActDL {
		if have == c {
			s.pastActDL = append(s.pastActDL[:i], s.pastActDL[i+1:]...)
			return
		}
	}
}

func dropSegment(list *[]segment, sg segment) {
	for i, have := range *list {
		if have == sg {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

// IsAlias reports whether name loosely describes this stream: part of the
// title, the URLs, or the streamer's directory names.
func (s *Stream) IsAlias(name string) bool {
	s.mu.Lock()
	title, chnURL := s.title, s.channelURL
	s.mu.Unlock()

	lower := strings.ToLower(name)
	if strings.Contains(strings.ToLower(title), lower) ||
		strings.Contains(s.URL, name) ||
		strings.Contains(chnURL, name) {
		return true
	}
	if s.env.Dir != nil {
		if entry, err := s.env.Dir.FromChannel(chnURL); err == nil {
			if strings.Contains(strings.ToLower(entry.Name), lower) {
				return true
			}
			if entry.EnName != "" && strings.Contains(strings.ToLower(entry.EnName), lower) {
				return true
			}
		}
	}
	return false
}
