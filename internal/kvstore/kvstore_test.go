package kvstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OdielDomanie/clipper-bot/internal/config"
	"github.com/OdielDomanie/clipper-bot/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(config.DatabaseConfig{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStreamSnapshots(t *testing.T) {
	s := newTestStore(t)
	uid := models.StreamUID("yt/abc/123")

	_, err := s.GetStream(uid)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetStream(uid, []byte(`{"title":"first"}`)))
	// Overwrites are idempotent.
	require.NoError(t, s.SetStream(uid, []byte(`{"title":"second"}`)))

	state, err := s.GetStream(uid)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"title":"second"}`), state)

	all, err := s.AllStreams()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteStream(uid))
	_, err = s.GetStream(uid)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistrations_SetSemantics(t *testing.T) {
	s := newTestStore(t)

	reg := []byte(`{"target":"https://www.youtube.com/channel/x"}`)
	require.NoError(t, s.AddRegistration(1, reg))
	// Re-adding the same registration does not duplicate it.
	require.NoError(t, s.AddRegistration(1, reg))
	require.NoError(t, s.AddRegistration(1, []byte(`{"target":"other"}`)))
	require.NoError(t, s.AddRegistration(2, reg))

	regs, err := s.Registrations(1)
	require.NoError(t, err)
	assert.Len(t, regs, 2)

	all, err := s.AllRegistrations()
	require.NoError(t, err)
	assert.Len(t, all[1], 2)
	assert.Len(t, all[2], 1)

	require.NoError(t, s.RemoveRegistration(1, reg))
	regs, err = s.Registrations(1)
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestCapturedStreams(t *testing.T) {
	s := newTestStore(t)
	uid := models.StreamUID("yt/abc/123")

	require.NoError(t, s.AddCapturedStream(7, 1.0, uid))
	require.NoError(t, s.AddCapturedStream(7, 1.0, uid))
	require.NoError(t, s.AddCapturedStream(7, 0.5, "ttv/xyz/9"))

	captured, err := s.CapturedStreams(7)
	require.NoError(t, err)
	assert.Len(t, captured, 2)

	require.NoError(t, s.RemoveCapturedStream(7, uid))
	captured, err = s.CapturedStreams(7)
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, models.StreamUID("ttv/xyz/9"), captured[0].UID)
}

func TestSentRecords(t *testing.T) {
	s := newTestStore(t)

	clip := models.SentClip{
		Path:      "/clips/a.mp4",
		Duration:  10e9,
		FromStart: 30e9,
		ChannelID: 1,
		MessageID: 100,
		UserID:    5,
		StreamUID: "yt/abc/123",
	}
	require.NoError(t, s.PutSentClip(clip))

	got, err := s.GetSentClip(100)
	require.NoError(t, err)
	assert.Equal(t, clip, *got)

	_, err = s.GetSentClip(101)
	assert.ErrorIs(t, err, ErrNotFound)

	ss := models.SentScreenshot{FromStart: 5e9, ChannelID: 1, MessageID: 200, StreamUID: "yt/abc/123"}
	require.NoError(t, s.PutSentScreenshot(ss))
	gotSS, err := s.GetSentScreenshot(200)
	require.NoError(t, err)
	assert.Equal(t, ss, *gotSS)
}

func TestBlockedStreamsAndLinkPerms(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.BlockStream(3, 1_700_000_000, "https://twitch.tv/bad"))
	blocked, err := s.BlockedStreams(3)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, int64(1_700_000_000), blocked[0].UnblockEpoch)

	require.NoError(t, s.UnblockStream(3, "https://twitch.tv/bad"))
	blocked, err = s.BlockedStreams(3)
	require.NoError(t, err)
	assert.Empty(t, blocked)

	_, found, err := s.LinkPerm(3)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetLinkPerm(3, true))
	allowed, found, err := s.LinkPerm(3)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, allowed)

	require.NoError(t, s.SetLinkPerm(3, false))
	allowed, _, err = s.LinkPerm(3)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedirects_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetRedirect("clip_123456", "clip.mp4"))

	target, err := s.Redirect("clip_123456")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", target)

	alias, err := s.AliasOf("clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "clip_123456", alias)

	_, err = s.Redirect("clip_000000")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AliasOf("missing.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}
