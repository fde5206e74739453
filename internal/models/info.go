// Package models holds the core value types and the user-facing error
// taxonomy shared across the stream, watch, and download layers.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Platform identifies an upstream video platform.
type Platform string

const (
	PlatformYouTube Platform = "yt"
	PlatformTwitch  Platform = "ttv"
)

// LiveStatus is the upstream's view of where a broadcast is in its lifecycle,
// as reported by the metadata extractor.
type LiveStatus string

const (
	StatusLive     LiveStatus = "is_live"
	StatusUpcoming LiveStatus = "is_upcoming"
	// StatusPostLive means the broadcast ended but the platform still serves
	// it as ~1 s in-progress fragments rather than a finalized VOD.
	StatusPostLive LiveStatus = "post_live"
	StatusWasLive  LiveStatus = "was_live"
	StatusNotLive  LiveStatus = "not_live"
)

// Online is the Stream's own lifecycle state, derived from polled info.
type Online int

const (
	OnlineUnknown Online = iota
	OnlineNow
	OnlinePast
	OnlineFuture
)

func (o Online) String() string {
	switch o {
	case OnlineNow:
		return "online"
	case OnlinePast:
		return "past"
	case OnlineFuture:
		return "future"
	default:
		return "unknown"
	}
}

// StreamUID uniquely identifies a broadcast as a platform-qualified tuple of
// platform tag, platform-specific ID, and a bucketed start timestamp, so the
// same channel going live twice yields distinct streams.
type StreamUID string

// uidBucket groups start times into 2 h buckets.
const uidBucket = 2 * 60 * 60

// NewStreamUID builds the canonical UID for a broadcast.
func NewStreamUID(platform Platform, id string, startTime int64) StreamUID {
	return StreamUID(fmt.Sprintf("%s/%s/%d", platform, id, startTime/uidBucket))
}

// InfoRecord is the normalized metadata record produced by the extractor.
// Raw retains the original JSON blob for fields the normalization drops.
type InfoRecord struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	ChannelID  string     `json:"channel_id"`
	ChannelURL string     `json:"channel_url"`
	UploaderID string     `json:"uploader_id"`
	WebpageURL string     `json:"webpage_url"`
	Extractor  string     `json:"extractor"`
	LiveStatus LiveStatus `json:"live_status"`

	// Timestamp and ReleaseTimestamp are epoch seconds; zero means absent.
	Timestamp        int64 `json:"timestamp"`
	ReleaseTimestamp int64 `json:"release_timestamp"`
	// Duration is in seconds; zero means the platform did not report one.
	Duration float64 `json:"duration"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// IsLive reports whether the broadcast is currently live.
func (r *InfoRecord) IsLive() bool {
	return r.LiveStatus == StatusLive
}

// Platform derives the platform tag from the extractor name.
func (r *InfoRecord) Platform() Platform {
	switch r.Extractor {
	case "twitch:stream", "twitch:vod":
		return PlatformTwitch
	default:
		return PlatformYouTube
	}
}

// StartTime returns the best available start time in epoch seconds: the
// upload timestamp when present, else the release timestamp, else zero.
func (r *InfoRecord) StartTime() int64 {
	if r.Timestamp != 0 {
		return r.Timestamp
	}
	return r.ReleaseTimestamp
}

// EndTime derives the end from start + duration, or zero when either is
// missing.
func (r *InfoRecord) EndTime() time.Time {
	start := r.StartTime()
	if start == 0 || r.Duration == 0 {
		return time.Time{}
	}
	return time.Unix(start, 0).Add(time.Duration(r.Duration * float64(time.Second)))
}
