// Package framesource adapts video files to the sampler's Source contract
// by shelling out to ffmpeg for frame extraction and ffprobe for metadata.
package framesource

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png" // PNG decoder for extracted frames
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"clipguard/internal/errors"
)

// DefaultFrameStep advances the extraction position after each capture so
// consecutive captures see different frames, standing in for the playback
// progress a live source would have.
const DefaultFrameStep = 500 * time.Millisecond

// FileSource provides frames from a video file. Safe for use by a single
// sampling operation at a time.
type FileSource struct {
	path       string
	ffmpegBin  string
	ffprobeBin string

	mu        sync.Mutex
	probed    bool
	duration  time.Duration
	pos       time.Duration
	muted     bool
	frameStep time.Duration
}

// Option configures a FileSource.
type Option func(*FileSource)

// WithBinaries overrides the ffmpeg/ffprobe executables.
func WithBinaries(ffmpeg, ffprobe string) Option {
	return func(f *FileSource) {
		f.ffmpegBin = ffmpeg
		f.ffprobeBin = ffprobe
	}
}

// WithFrameStep overrides the per-capture position advance.
func WithFrameStep(step time.Duration) Option {
	return func(f *FileSource) { f.frameStep = step }
}

// New creates a source for the given video file.
func New(path string, opts ...Option) *FileSource {
	f := &FileSource{
		path:       path,
		ffmpegBin:  "ffmpeg",
		ffprobeBin: "ffprobe",
		frameStep:  DefaultFrameStep,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the underlying file path.
func (f *FileSource) Path() string { return f.path }

// Ready probes the file once. A file that cannot be probed has no usable
// frames.
func (f *FileSource) Ready(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probed {
		return nil
	}

	if _, err := os.Stat(f.path); err != nil {
		return errors.Wrapf(err, errors.CodeSourceUnavailable, "stat %s", f.path)
	}

	out, err := exec.CommandContext(ctx, f.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		f.path,
	).Output()
	if err != nil {
		return errors.Wrapf(err, errors.CodeSourceUnavailable, "probe %s", f.path)
	}

	d, err := parseProbeDuration(string(out))
	if err != nil {
		return err
	}
	f.duration = d
	f.probed = true
	return nil
}

// parseProbeDuration converts ffprobe's seconds output to a duration.
func parseProbeDuration(out string) (time.Duration, error) {
	s := strings.TrimSpace(out)
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, errors.CodeSourceUnavailable, "parse probe duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Duration returns the probed clip length, zero before Ready succeeds.
func (f *FileSource) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

// Capture extracts one frame at the current position as PNG and decodes
// it. On success the position advances by the frame step.
func (f *FileSource) Capture(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	pos := f.pos
	f.mu.Unlock()

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.ffmpegBin,
		"-ss", fmt.Sprintf("%.3f", pos.Seconds()),
		"-i", f.path,
		"-an",
		"-frames:v", "1",
		"-f", "image2",
		"-vcodec", "png",
		"pipe:1",
	)
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, errors.CodeCaptureFailed, "extract frame at %v: %s", pos, strings.TrimSpace(stderr.String()))
	}

	img, _, err := image.Decode(bytes.NewReader(out.Bytes()))
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeCaptureFailed, "decode frame at %v", pos)
	}

	f.mu.Lock()
	f.pos = pos + f.frameStep
	if f.duration > 0 && f.pos > f.duration {
		f.pos = f.duration
	}
	f.mu.Unlock()

	return img, nil
}

// FrameAdvance returns nil: a file source cannot signal frame boundaries,
// so the sampler falls back to its fixed delay.
func (f *FileSource) FrameAdvance() <-chan struct{} { return nil }

// Muted and SetMuted record mute state. File decoding produces no audible
// playback; the contract is honored so callers can treat all sources
// uniformly.
func (f *FileSource) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *FileSource) SetMuted(m bool) {
	f.mu.Lock()
	f.muted = m
	f.mu.Unlock()
}

// Position returns the current extraction position.
func (f *FileSource) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Seek moves the extraction position, clamped to the probed duration.
func (f *FileSource) Seek(d time.Duration) error {
	if d < 0 {
		return errors.Newf(errors.CodeInvalidInput, "negative seek position %v", d)
	}
	f.mu.Lock()
	if f.duration > 0 && d > f.duration {
		d = f.duration
	}
	f.pos = d
	f.mu.Unlock()
	return nil
}
