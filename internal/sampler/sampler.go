// Package sampler captures frames from a source and reduces them to a single
// averaged grayscale matrix ready for hashing. Averaging several frames
// denoises compression artifacts and transient overlays.
package sampler

import (
	"context"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/nfnt/resize"

	"clipguard/internal/errors"
	"clipguard/internal/fingerprint"
)

const (
	// DefaultReadyTimeout bounds the wait for source readiness.
	DefaultReadyTimeout = 3 * time.Second
	// DefaultMaxSeekOffset caps the initial seek away from the poster frame.
	DefaultMaxSeekOffset = 5 * time.Second
	// seekFraction of the clip duration is targeted by the initial seek.
	// Time 0 is commonly a static poster frame with poor discriminability.
	seekFraction = 0.10
)

// Sampler captures and averages frames. The zero value is not usable; New
// applies defaults.
type Sampler struct {
	ReadyTimeout  time.Duration
	MaxSeekOffset time.Duration
}

// New returns a sampler with default wait bounds.
func New() *Sampler {
	return &Sampler{
		ReadyTimeout:  DefaultReadyTimeout,
		MaxSeekOffset: DefaultMaxSeekOffset,
	}
}

// Sample captures frameCount frames spaced by frameDelay and returns their
// element-wise average. Individual capture failures are skipped; the call
// fails only when zero frames were captured, with a NO_SIGNAL code rather
// than a zero matrix. Any source state the sampler changes (mute) is
// restored on every path.
func (s *Sampler) Sample(ctx context.Context, src Source, frameCount int, frameDelay time.Duration) (*fingerprint.Matrix, error) {
	if frameCount < 1 {
		return nil, errors.Newf(errors.CodeInvalidInput, "frameCount must be >= 1, got %d", frameCount)
	}

	readyCtx, cancel := context.WithTimeout(ctx, s.ReadyTimeout)
	err := src.Ready(readyCtx)
	cancel()
	if err != nil {
		// An unready source has zero usable frames.
		return nil, errors.Wrap(err, errors.CodeSourceUnavailable, "source not ready before capture")
	}

	wasMuted := src.Muted()
	src.SetMuted(true)
	defer src.SetMuted(wasMuted)

	s.seekPastPoster(src)

	var sum [fingerprint.SampleSize][fingerprint.SampleSize]int
	captured := 0

	for i := 0; i < frameCount; i++ {
		if i > 0 {
			if err := awaitFirst(ctx, src.FrameAdvance(), frameDelay); err != nil {
				return nil, err
			}
		}

		img, err := src.Capture(ctx)
		if err != nil {
			slog.Debug("frame capture failed, skipping", "frame", i, "error", err)
			continue
		}

		accumulate(&sum, img)
		captured++
	}

	if captured == 0 {
		return nil, errors.Newf(errors.CodeNoSignal, "no frames captured out of %d attempts", frameCount)
	}

	var avg fingerprint.Matrix
	for x := 0; x < fingerprint.SampleSize; x++ {
		for y := 0; y < fingerprint.SampleSize; y++ {
			avg[x][y] = uint8(math.Round(float64(sum[x][y]) / float64(captured)))
		}
	}
	return &avg, nil
}

// seekPastPoster moves the source to ~10% of its duration, capped. Seek
// failures leave the position untouched and capture proceeds there.
func (s *Sampler) seekPastPoster(src Source) {
	d := src.Duration()
	if d <= 0 {
		return
	}
	offset := time.Duration(float64(d) * seekFraction)
	if offset > s.MaxSeekOffset {
		offset = s.MaxSeekOffset
	}
	if err := src.Seek(offset); err != nil {
		slog.Debug("seek past poster frame failed", "offset", offset, "error", err)
	}
}

// accumulate downsizes the frame to the sample grid, converts to grayscale
// with ITU-R BT.601 luminance weights, and adds per-pixel intensities.
func accumulate(sum *[fingerprint.SampleSize][fingerprint.SampleSize]int, img image.Image) {
	small := resize.Resize(fingerprint.SampleSize, fingerprint.SampleSize, img, resize.Bilinear)
	bounds := small.Bounds()
	for x := 0; x < fingerprint.SampleSize; x++ {
		for y := 0; y < fingerprint.SampleSize; y++ {
			r, g, b, _ := small.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			sum[x][y] += int(math.Round(lum))
		}
	}
}

// awaitFirst suspends until the event channel fires, the delay elapses, or
// the context ends, whichever comes first. This is the single wait
// primitive behind "frame advance or fixed delay".
func awaitFirst(ctx context.Context, event <-chan struct{}, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CodeTimeout, "sampling interrupted")
	case <-event:
		return nil
	case <-timer.C:
		return nil
	}
}
