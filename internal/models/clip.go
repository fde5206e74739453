package models

import "time"

// Clip is the immutable result of a clip extraction.
type Clip struct {
	Path     string
	Size     int64
	Duration time.Duration
	// Ago is the distance from the live edge for "last N seconds" clips;
	// negative when the clip was addressed from the start instead.
	Ago time.Duration
	// FromStart is the clip's offset from the broadcast start.
	FromStart time.Duration
	AudioOnly bool
}

// Screenshot is the immutable result of a single-frame capture. Data holds
// the PNG bytes; screenshots are small enough to pass around in memory.
type Screenshot struct {
	Name      string
	Data      []byte
	Ago       time.Duration
	FromStart time.Duration
}

// SentClip records a delivered clip by chat message ID so later trim and
// edit flows can re-cut the same range.
type SentClip struct {
	Path      string        `json:"path,omitempty"`
	Duration  time.Duration `json:"duration"`
	Ago       time.Duration `json:"ago"`
	FromStart time.Duration `json:"from_start"`
	AudioOnly bool          `json:"audio_only"`
	ChannelID uint64        `json:"channel_id"`
	MessageID uint64        `json:"message_id"`
	UserID    uint64        `json:"user_id"`
	StreamUID StreamUID     `json:"stream_uid"`
}

// SentScreenshot records a delivered screenshot by chat message ID.
type SentScreenshot struct {
	Ago       time.Duration `json:"ago"`
	FromStart time.Duration `json:"from_start"`
	ChannelID uint64        `json:"channel_id"`
	MessageID uint64        `json:"message_id"`
	UserID    uint64        `json:"user_id"`
	StreamUID StreamUID     `json:"stream_uid"`
}
