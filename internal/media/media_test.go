package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClipExt(t *testing.T) {
	tests := []struct {
		source    string
		audioOnly bool
		expected  string
	}{
		{"stream_0.ts", false, ".mp4"},
		{"stream_0.ts", true, ".m4a"},
		{"stream_0.webm", false, ".webm"},
		{"stream_0.webm", true, ".ogg"},
		{"vod_30_60.mp4", false, ".mp4"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClipExt(tt.source, tt.audioOnly))
	}
}

func TestCommandBuilder_QuickSeekOrder(t *testing.T) {
	cmd := newCommandBuilder("ffmpeg").
		Overwrite().
		SeekInput(SeekStart(30 * time.Second)).
		LimitInput(10 * time.Second).
		Input("in.ts").
		CopyAudio().
		CopyVideo().
		Faststart().
		Output("out.mp4").
		Build()

	assert.Equal(t,
		"ffmpeg -hide_banner -loglevel error -y -ss 30.000 -t 10.000 -i in.ts"+
			" -acodec copy -vcodec copy -movflags faststart out.mp4",
		cmd.String())
}

func TestCommandBuilder_SeekFromEnd(t *testing.T) {
	cmd := newCommandBuilder("ffmpeg").
		Overwrite().
		SeekInput(SeekEnd(12 * time.Second)).
		LimitInput(10 * time.Second).
		Input("in.ts").
		CopyAudio().
		DropVideo().
		Faststart().
		Output("out.m4a").
		Build()

	assert.Contains(t, cmd.String(), "-sseof -12.000 -t 10.000 -i in.ts")
	assert.Contains(t, cmd.String(), "-vn")
}

func TestCutter_CheckSize(t *testing.T) {
	c := NewCutter("ffmpeg", nil)
	dir := t.TempDir()

	small := filepath.Join(dir, "small.mp4")
	require.NoError(t, os.WriteFile(small, make([]byte, 100), 0o644))
	assert.ErrorIs(t, c.checkSize(small, MinClipSize), ErrCorrupt)

	big := filepath.Join(dir, "big.mp4")
	require.NoError(t, os.WriteFile(big, make([]byte, MinClipSize), 0o644))
	assert.NoError(t, c.checkSize(big, MinClipSize))
}

// pcrPacket builds a 188-byte adaptation-only TS packet carrying a PCR.
func pcrPacket(base int64) []byte {
	pkt := make([]byte, 188)
	for i := range pkt {
		pkt[i] = 0xFF // stuffing
	}
	pkt[0] = 0x47
	pkt[1] = 0x01 // PID 0x100
	pkt[2] = 0x00
	pkt[3] = 0x20 // adaptation field only
	pkt[4] = 183  // adaptation field length
	pkt[5] = 0x10 // PCR flag
	pkt[6] = byte(base >> 25)
	pkt[7] = byte(base >> 17)
	pkt[8] = byte(base >> 9)
	pkt[9] = byte(base >> 1)
	pkt[10] = byte(base&1)<<7 | 0x7E // reserved bits, extension 0
	pkt[11] = 0x00
	return pkt
}

func TestProbeTS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.ts")

	// PCRs at 1 s and 11 s (90 kHz base clock).
	data := append(pcrPacket(90_000), pcrPacket(11*90_000)...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	d, err := ProbeTS(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, (10 * time.Second).Seconds(), d.Seconds(), 0.01)
}

func TestProbeTS_NoPCR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.ts")

	// A sync-aligned packet without an adaptation field.
	pkt := make([]byte, 188)
	pkt[0] = 0x47
	pkt[3] = 0x10 // payload only
	require.NoError(t, os.WriteFile(path, pkt, 0o644))

	_, err := ProbeTS(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoPCR)
}

func TestProbeTS_MissingFile(t *testing.T) {
	_, err := ProbeTS(context.Background(), filepath.Join(t.TempDir(), "nope.ts"))
	assert.Error(t, err)
}
