// Package media wraps the external ffmpeg tool for the copy-only clip
// operations: trimming, concatenation, and single-frame capture. Nothing
// here re-encodes.
package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Seek addresses a position in a source file, either from the start or from
// the end (ffmpeg's -sseof, which takes a negative offset).
type Seek struct {
	fromEnd bool
	offset  time.Duration
}

// SeekStart seeks the given offset from the start of the source.
func SeekStart(offset time.Duration) Seek {
	return Seek{offset: offset}
}

// SeekEnd seeks the given offset back from the end of the source. The offset
// is passed positive here and negated on the command line.
func SeekEnd(offset time.Duration) Seek {
	return Seek{fromEnd: true, offset: -offset}
}

// FromEnd reports whether the seek addresses from the end of the source.
func (s Seek) FromEnd() bool { return s.fromEnd }

// Offset returns the seek offset as passed to ffmpeg (negative for -sseof).
func (s Seek) Offset() time.Duration { return s.offset }

func (s Seek) args() []string {
	if s.fromEnd {
		return []string{"-sseof", formatSeconds(s.offset)}
	}
	return []string{"-ss", formatSeconds(s.offset)}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// commandBuilder assembles an ffmpeg invocation with a fluent API. Argument
// order matters to ffmpeg: input args (seeks included, when quick) go before
// -i, output args after.
type commandBuilder struct {
	binary     string
	globalArgs []string
	inputArgs  []string
	input      string
	outputArgs []string
	output     string
	overwrite  bool
}

func newCommandBuilder(ffmpegPath string) *commandBuilder {
	return &commandBuilder{
		binary:     ffmpegPath,
		globalArgs: []string{"-hide_banner", "-loglevel", "error"},
	}
}

func (b *commandBuilder) Overwrite() *commandBuilder {
	b.overwrite = true
	return b
}

// SeekInput places a seek before -i for fast keyframe-aligned seeking.
func (b *commandBuilder) SeekInput(s Seek) *commandBuilder {
	b.inputArgs = append(b.inputArgs, s.args()...)
	return b
}

// LimitInput places -t before -i; combined with SeekInput it bounds the read.
func (b *commandBuilder) LimitInput(t time.Duration) *commandBuilder {
	b.inputArgs = append(b.inputArgs, "-t", formatSeconds(t))
	return b
}

// SeekOutput places a seek after -i for frame-accurate (slow) seeking.
func (b *commandBuilder) SeekOutput(s Seek) *commandBuilder {
	b.outputArgs = append(b.outputArgs, s.args()...)
	return b
}

func (b *commandBuilder) LimitOutput(t time.Duration) *commandBuilder {
	b.outputArgs = append(b.outputArgs, "-t", formatSeconds(t))
	return b
}

func (b *commandBuilder) InputFormat(format string) *commandBuilder {
	b.inputArgs = append(b.inputArgs, "-f", format)
	return b
}

func (b *commandBuilder) InputArgs(args ...string) *commandBuilder {
	b.inputArgs = append(b.inputArgs, args...)
	return b
}

func (b *commandBuilder) Input(input string) *commandBuilder {
	b.input = input
	return b
}

func (b *commandBuilder) CopyAudio() *commandBuilder {
	b.outputArgs = append(b.outputArgs, "-acodec", "copy")
	return b
}

func (b *commandBuilder) CopyVideo() *commandBuilder {
	b.outputArgs = append(b.outputArgs, "-vcodec", "copy")
	return b
}

func (b *commandBuilder) CopyAll() *commandBuilder {
	b.outputArgs = append(b.outputArgs, "-c", "copy")
	return b
}

// DropVideo strips the video stream for audio-only clips.
func (b *commandBuilder) DropVideo() *commandBuilder {
	b.outputArgs = append(b.outputArgs, "-vn")
	return b
}

// Faststart moves the moov atom to the front so players can start before
// the whole file downloads.
func (b *commandBuilder) Faststart() *commandBuilder {
	b.outputArgs = append(b.outputArgs, "-movflags", "faststart")
	return b
}

func (b *commandBuilder) Frames(n int) *commandBuilder {
	b.outputArgs = append(b.outputArgs, "-vframes", strconv.Itoa(n))
	return b
}

func (b *commandBuilder) VideoCodec(codec string) *commandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", codec)
	return b
}

func (b *commandBuilder) OutputFormat(format string) *commandBuilder {
	b.outputArgs = append(b.outputArgs, "-f", format)
	return b
}

func (b *commandBuilder) OutputArgs(args ...string) *commandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

func (b *commandBuilder) Output(output string) *commandBuilder {
	b.output = output
	return b
}

func (b *commandBuilder) Build() *command {
	args := append([]string{}, b.globalArgs...)
	if b.overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}
	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)
	args = append(args, b.outputArgs...)
	args = append(args, b.output)

	return &command{binary: b.binary, args: args}
}

// command is a built ffmpeg invocation.
type command struct {
	binary string
	args   []string

	mu          sync.Mutex
	stderrLines []string
}

const maxStderrLines = 100

func (c *command) String() string {
	return c.binary + " " + strings.Join(c.args, " ")
}

// Run executes the command, capturing stderr for diagnostics.
func (c *command) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.binary, c.args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	c.storeStderr(&stderr)
	return err
}

// RunCapture executes the command and returns its stdout bytes.
func (c *command) RunCapture(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binary, c.args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	c.storeStderr(&stderr)
	return stdout.Bytes(), err
}

func (c *command) storeStderr(buf *bytes.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		if len(c.stderrLines) >= maxStderrLines {
			c.stderrLines = c.stderrLines[1:]
		}
		c.stderrLines = append(c.stderrLines, scanner.Text())
	}
}

// StderrLines returns the captured stderr lines.
func (c *command) StderrLines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]string, len(c.stderrLines))
	copy(lines, c.stderrLines)
	return lines
}

// exitError formats a non-zero exit with the tail of stderr.
func (c *command) exitError(err error) error {
	lines := c.StderrLines()
	tail := ""
	if len(lines) > 0 {
		tail = ": " + lines[len(lines)-1]
	}
	return fmt.Errorf("ffmpeg: %w%s", err, tail)
}
