package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy(t *testing.T) {
	// Both refusal variants unwrap to the blocked sentinel.
	assert.True(t, errors.Is(ErrRateLimited, ErrDownloadBlocked))
	assert.True(t, errors.Is(ErrDownloadForbidden, ErrDownloadBlocked))
	assert.False(t, errors.Is(ErrRateLimited, ErrDownloadForbidden))
	assert.False(t, errors.Is(ErrDownloadCacheMissing, ErrDownloadBlocked))
}

func TestNewStreamUID_Buckets(t *testing.T) {
	// Start times within the same 2 h bucket map to the same UID.
	a := NewStreamUID(PlatformYouTube, "abc123def45", 1_700_000_000)
	b := NewStreamUID(PlatformYouTube, "abc123def45", 1_700_000_100)
	assert.Equal(t, a, b)

	c := NewStreamUID(PlatformYouTube, "abc123def45", 1_700_000_000+3*60*60)
	assert.NotEqual(t, a, c)

	d := NewStreamUID(PlatformTwitch, "abc123def45", 1_700_000_000)
	assert.NotEqual(t, a, d)
}

func TestInfoRecord_StartAndEnd(t *testing.T) {
	rec := InfoRecord{Timestamp: 1000, ReleaseTimestamp: 2000, Duration: 60}
	assert.Equal(t, int64(1000), rec.StartTime())
	assert.Equal(t, time.Unix(1060, 0), rec.EndTime())

	rec.Timestamp = 0
	assert.Equal(t, int64(2000), rec.StartTime())

	rec.Duration = 0
	assert.True(t, rec.EndTime().IsZero())
}

func TestInfoRecord_Platform(t *testing.T) {
	assert.Equal(t, PlatformTwitch, (&InfoRecord{Extractor: "twitch:stream"}).Platform())
	assert.Equal(t, PlatformTwitch, (&InfoRecord{Extractor: "twitch:vod"}).Platform())
	assert.Equal(t, PlatformYouTube, (&InfoRecord{Extractor: "youtube"}).Platform())
}

func TestHooks_RoundTrip(t *testing.T) {
	hooks := []Hook{
		AddToCapturedStreams{Name: "haruka ch.", Key: 42},
		SendEnabledMsg{ChannelID: 99},
	}

	b, err := EncodeHooks(hooks)
	require.NoError(t, err)

	decoded, err := DecodeHooks(b)
	require.NoError(t, err)
	assert.Equal(t, hooks, decoded)
}

func TestDecodeHooks_UnknownTag(t *testing.T) {
	_, err := DecodeHooks([]byte(`[{"type":"launch_rockets","data":{}}]`))
	assert.Error(t, err)
}
