package sampler

import (
	"context"
	"image"
	"time"
)

// Source is a frame provider: a playing video element, a decoded file, a
// capture device. Implementations live outside the core; the sampler only
// relies on this contract.
type Source interface {
	// Ready blocks until the source can produce frames, or the context
	// ends. The sampler bounds this wait with its own timeout.
	Ready(ctx context.Context) error

	// Duration returns the total length of the clip, or zero when unknown.
	Duration() time.Duration

	// Capture returns the current visual frame at any resolution. It may
	// fail per frame, e.g. for protected content; the sampler skips
	// failed frames rather than aborting.
	Capture(ctx context.Context) (image.Image, error)

	// FrameAdvance returns a channel that fires when a new frame becomes
	// available, or nil when the source cannot signal frame boundaries.
	// With a nil channel the sampler falls back to its fixed delay.
	FrameAdvance() <-chan struct{}

	// Muted and SetMuted expose the source's mute state. The sampler
	// mutes during capture and restores the previous state on exit.
	Muted() bool
	SetMuted(bool)

	// Position and Seek expose the playback position. Seek is best
	// effort; failures are non-fatal and capture proceeds in place.
	Position() time.Duration
	Seek(time.Duration) error
}
