package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Corruption thresholds. Outputs below these sizes are treated as failed
// even when ffmpeg exited zero.
const (
	// MinClipSize is the smallest plausible clip file.
	MinClipSize = 20 * 1024
	// MinScreenshotSize is the smallest plausible PNG frame.
	MinScreenshotSize = 200
	// screenshotSalvageSize is the smallest stdout worth keeping after a
	// non-zero exit.
	screenshotSalvageSize = 10 * 1024
)

// ErrCorrupt indicates the tool produced an implausibly small output.
var ErrCorrupt = errors.New("media: output too small, treating as corrupt")

// Cutter performs the copy-only media operations.
type Cutter struct {
	ffmpegPath string
	logger     *slog.Logger
}

// NewCutter returns a Cutter invoking the given ffmpeg binary.
func NewCutter(ffmpegPath string, logger *slog.Logger) *Cutter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cutter{ffmpegPath: ffmpegPath, logger: logger}
}

// ClipExt chooses the output extension by source container: webm sources
// stay webm (ogg for audio), everything else becomes mp4 (m4a for audio).
// The chat platform embeds m4a but not aac, and does not embed audio-only
// webm.
func ClipExt(source string, audioOnly bool) string {
	if filepath.Ext(source) == ".webm" {
		if audioOnly {
			return ".ogg"
		}
		return ".webm"
	}
	if audioOnly {
		return ".m4a"
	}
	return ".mp4"
}

// Cut trims [seek, seek+t] out of source into outBase+ext without
// re-encoding and returns the output path. outBase must not carry an
// extension. With quickSeek the seek goes before -i, trading sub-second
// precision for a fast keyframe seek; seeks from the end always go before
// -i.
func (c *Cutter) Cut(
	ctx context.Context,
	source string,
	seek Seek,
	t time.Duration,
	outBase string,
	audioOnly, quickSeek bool,
) (string, error) {
	out := outBase + ClipExt(source, audioOnly)

	b := newCommandBuilder(c.ffmpegPath).Overwrite()
	if quickSeek || seek.FromEnd() {
		b.SeekInput(seek).LimitInput(t)
	}
	b.Input(source).CopyAudio()
	if audioOnly {
		b.DropVideo()
	} else {
		b.CopyVideo()
	}
	b.Faststart()
	if !quickSeek && !seek.FromEnd() {
		b.SeekOutput(seek).LimitOutput(t)
	}
	cmd := b.Output(out).Build()

	c.logger.Info("cutting clip",
		slog.String("source", source),
		slog.String("out", out),
		slog.Duration("t", t),
	)
	c.logger.Debug("clip command", slog.String("cmd", cmd.String()))

	if err := cmd.Run(ctx); err != nil {
		if _, statErr := os.Stat(source); statErr != nil {
			return "", fmt.Errorf("cut source: %w", os.ErrNotExist)
		}
		if _, statErr := os.Stat(out); statErr != nil {
			return "", c.exitFailure("cut", cmd, err)
		}
		c.logger.Error("clip process failed but output exists, continuing",
			slog.String("out", out), slog.String("error", err.Error()))
	}

	return out, c.checkSize(out, MinClipSize)
}

// ConcatSource is one input of a Concat call with its in/out points inside
// the source file.
type ConcatSource struct {
	Path string
	In   time.Duration
	Out  time.Duration
}

// Concat joins the given trimmed sources into outBase+".mp4" via a temporary
// ffconcat manifest and returns the output path.
func (c *Cutter) Concat(ctx context.Context, sources []ConcatSource, outBase string) (string, error) {
	if len(sources) == 0 {
		return "", errors.New("media: concat needs at least one source")
	}
	out := outBase + ".mp4"

	manifest, err := os.CreateTemp(filepath.Dir(out), ".concat_*")
	if err != nil {
		return "", fmt.Errorf("creating concat manifest: %w", err)
	}
	defer os.Remove(manifest.Name())

	for _, src := range sources {
		abs, err := filepath.Abs(src.Path)
		if err != nil {
			abs = src.Path
		}
		fmt.Fprintf(manifest, "file '%s'\n", abs)
		fmt.Fprintf(manifest, "inpoint %s\n", formatSeconds(src.In))
		fmt.Fprintf(manifest, "outpoint %s\n", formatSeconds(src.Out))
	}
	if err := manifest.Close(); err != nil {
		return "", fmt.Errorf("writing concat manifest: %w", err)
	}

	cmd := newCommandBuilder(c.ffmpegPath).
		Overwrite().
		InputFormat("concat").
		InputArgs("-safe", "0").
		Input(manifest.Name()).
		CopyAll().
		Faststart().
		Output(out).
		Build()

	c.logger.Info("concatenating clip",
		slog.Int("sources", len(sources)),
		slog.String("out", out),
	)
	c.logger.Debug("concat command", slog.String("cmd", cmd.String()))

	if err := cmd.Run(ctx); err != nil {
		if _, statErr := os.Stat(out); statErr != nil {
			return "", c.exitFailure("concat", cmd, err)
		}
		c.logger.Error("concat process failed but output exists, continuing",
			slog.String("out", out), slog.String("error", err.Error()))
	}

	return out, c.checkSize(out, MinClipSize)
}

// Screenshot extracts one PNG frame at the given seek and returns its bytes.
func (c *Cutter) Screenshot(ctx context.Context, source string, seek Seek, quickSeek bool) ([]byte, error) {
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("screenshot source: %w", os.ErrNotExist)
	}

	b := newCommandBuilder(c.ffmpegPath)
	if quickSeek || seek.FromEnd() {
		b.SeekInput(seek)
	}
	b.Input(source)
	if !quickSeek && !seek.FromEnd() {
		b.SeekOutput(seek)
	}
	cmd := b.Frames(1).
		VideoCodec("png").
		OutputFormat("image2pipe").
		Output("-").
		Build()

	c.logger.Debug("screenshot command", slog.String("cmd", cmd.String()))

	data, err := cmd.RunCapture(ctx)
	if err != nil {
		if len(data) >= screenshotSalvageSize {
			c.logger.Error("screenshot process failed but produced data, continuing",
				slog.String("source", source), slog.String("error", err.Error()))
		} else {
			return nil, c.exitFailure("screenshot", cmd, err)
		}
	}
	if len(data) < MinScreenshotSize {
		return nil, ErrCorrupt
	}
	return data, nil
}

func (c *Cutter) exitFailure(op string, cmd *command, err error) error {
	c.logger.Error(op+" process failed",
		slog.String("error", err.Error()),
		slog.Any("stderr", cmd.StderrLines()),
	)
	return cmd.exitError(err)
}

func (c *Cutter) checkSize(path string, minSize int64) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking output: %w", err)
	}
	if fi.Size() < minSize {
		return ErrCorrupt
	}
	return nil
}
