package resolver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OdielDomanie/clipper-bot/internal/extractor"
	"github.com/OdielDomanie/clipper-bot/internal/models"
)

type stubFetcher struct {
	// records by requested URL; a nil entry means "offline" (nil, nil).
	records map[string]*models.InfoRecord
	calls   []string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string, opts *extractor.FetchOptions) (*models.InfoRecord, error) {
	s.calls = append(s.calls, url)
	rec, ok := s.records[url]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	return &Directory{entries: []DirEntry{
		{
			ChannelID: "UCaaaaaaaaaaaaaaaaaaaaaa",
			Channels: []string{
				"https://www.youtube.com/channel/UCaaaaaaaaaaaaaaaaaaaaaa",
				"https://www.twitch.tv/harukach",
			},
			Name:   "Haruka Ch.",
			EnName: "haruka",
		},
		{
			ChannelID: "UCbbbbbbbbbbbbbbbbbbbbbb",
			Channels:  []string{"https://www.youtube.com/channel/UCbbbbbbbbbbbbbbbbbbbbbb"},
			Name:      "Secret Ch.",
			Hidden:    true,
		},
	}}
}

func TestChannelURLs(t *testing.T) {
	f := &stubFetcher{records: map[string]*models.InfoRecord{}}
	r := New(f, testDirectory(t), nil)
	ctx := context.Background()

	tests := []struct {
		in   string
		want []string
	}{
		{
			"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx",
			[]string{"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx"},
		},
		{
			"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx/videos",
			[]string{"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx"},
		},
		{
			"https://twitch.tv/somestreamer",
			[]string{"https://www.twitch.tv/somestreamer"},
		},
		{
			"UCxxxxxxxxxxxxxxxxxxxxxx",
			[]string{"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx"},
		},
		{
			"haruka",
			[]string{
				"https://www.youtube.com/channel/UCaaaaaaaaaaaaaaaaaaaaaa",
				"https://www.twitch.tv/harukach",
			},
		},
	}
	for _, tt := range tests {
		got, err := r.ChannelURLs(ctx, tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	// Stream URLs are not channels.
	_, err := r.ChannelURLs(ctx, "https://www.youtube.com/watch?v=abc123def45")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.ChannelURLs(ctx, "https://www.twitch.tv/videos/123456")
	assert.ErrorIs(t, err, ErrNotFound)

	// Hidden entries never match by name.
	_, err = r.ChannelURLs(ctx, "secret")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChannelURLs_UnknownURLFallsBackToFetch(t *testing.T) {
	f := &stubFetcher{records: map[string]*models.InfoRecord{
		"https://example.com/somestream": {
			ID:         "abc123def45",
			ChannelURL: "https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx",
		},
	}}
	r := New(f, nil, nil)

	got, err := r.ChannelURLs(context.Background(), "https://example.com/somestream")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx"}, got)
	assert.Equal(t, []string{"https://example.com/somestream"}, f.calls)
}

func TestStreamURL_DirectForms(t *testing.T) {
	f := &stubFetcher{}
	r := New(f, nil, nil)
	ctx := context.Background()

	tests := []struct {
		in, want string
	}{
		{"https://www.youtube.com/watch?v=abc123def45", "https://www.youtube.com/watch?v=abc123def45"},
		{"https://youtu.be/abc123def45", "https://www.youtube.com/watch?v=abc123def45"},
		{"https://www.twitch.tv/videos/123456789", "https://www.twitch.tv/videos/123456789"},
		{"https://twitch.tv/somestreamer", "https://www.twitch.tv/somestreamer"},
		{"abc123def45", "https://www.youtube.com/watch?v=abc123def45"},
	}
	for _, tt := range tests {
		got, _, err := r.StreamURL(ctx, tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	// No extractor call for any direct form.
	assert.Empty(t, f.calls)
}

func TestStreamURL_ChannelLive(t *testing.T) {
	f := &stubFetcher{records: map[string]*models.InfoRecord{
		"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx/live": {
			ID:         "abc123def45",
			LiveStatus: models.StatusLive,
		},
	}}
	r := New(f, nil, nil)

	url, info, err := r.StreamURL(context.Background(), "UCxxxxxxxxxxxxxxxxxxxxxx")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123def45", url)
	require.NotNil(t, info)
	assert.True(t, info.IsLive())
}

func TestStreamURL_ChannelLastBroadcast(t *testing.T) {
	tabRaw := func(entries string) json.RawMessage {
		return json.RawMessage(`{"entries":[` + entries + `]}`)
	}
	f := &stubFetcher{records: map[string]*models.InfoRecord{
		// /live is offline (nil entry means nil, nil).
		"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx/live": nil,
		"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx/videos?view=2&live_view=503": {
			ID:  "UCxxxxxxxxxxxxxxxxxxxxxx",
			Raw: tabRaw(`{"id":"older_live__","release_timestamp":1000,"was_live":true}`),
		},
		"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx/videos": {
			ID:  "UCxxxxxxxxxxxxxxxxxxxxxx",
			Raw: tabRaw(`{"id":"newer_prem__","release_timestamp":2000,"subtitles":{"live_chat":[]}}`),
		},
	}}
	r := New(f, nil, nil)

	// The uploads-tab entry has live chat (a premiere) and is newer, so it
	// wins over the livestreams-tab entry.
	url, _, err := r.StreamURL(context.Background(), "UCxxxxxxxxxxxxxxxxxxxxxx")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=newer_prem__", url)
}

func TestStreamURL_ChannelLastBroadcastIgnoresPlainUpload(t *testing.T) {
	f := &stubFetcher{records: map[string]*models.InfoRecord{
		"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx/live": nil,
		"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx/videos?view=2&live_view=503": {
			ID:  "UCxxxxxxxxxxxxxxxxxxxxxx",
			Raw: json.RawMessage(`{"entries":[{"id":"older_live__","release_timestamp":1000,"was_live":true}]}`),
		},
		"https://www.youtube.com/channel/UCxxxxxxxxxxxxxxxxxxxxxx/videos": {
			ID: "UCxxxxxxxxxxxxxxxxxxxxxx",
			// Newer but a plain upload: never a broadcast.
			Raw: json.RawMessage(`{"entries":[{"id":"plain_video_","release_timestamp":2000}]}`),
		},
	}}
	r := New(f, nil, nil)

	url, _, err := r.StreamURL(context.Background(), "UCxxxxxxxxxxxxxxxxxxxxxx")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=older_live__", url)
}

func TestStreamURL_Garbage(t *testing.T) {
	r := New(&stubFetcher{}, nil, nil)
	_, _, err := r.StreamURL(context.Background(), "???")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectory_FromName(t *testing.T) {
	d := testDirectory(t)

	e, err := d.FromName("haru")
	require.NoError(t, err)
	assert.Equal(t, "UCaaaaaaaaaaaaaaaaaaaaaa", e.ChannelID)

	// Substring-only matches still resolve, just with lower priority.
	e, err = d.FromName("ruk")
	require.NoError(t, err)
	assert.Equal(t, "UCaaaaaaaaaaaaaaaaaaaaaa", e.ChannelID)

	_, err = d.FromName("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectory_FromChannel(t *testing.T) {
	d := testDirectory(t)

	e, err := d.FromChannel("https://www.twitch.tv/harukach")
	require.NoError(t, err)
	assert.Equal(t, "Haruka Ch.", e.Name)

	_, err = d.FromChannel("https://www.twitch.tv/nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
