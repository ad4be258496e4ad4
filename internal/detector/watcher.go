package detector

import (
	"context"

	"github.com/corona10/goimagehash"

	"clipguard/internal/sampler"
	"clipguard/internal/syncx"
	"clipguard/internal/trace"
)

// Watcher checks one source repeatedly, as happens when page mutations
// re-trigger detection for the same clip. A cheap perceptual hash of a
// preview frame gates the full DCT pipeline: visually unchanged content
// reuses the previous verdict.
type Watcher struct {
	d     *Detector
	src   sampler.Source
	state *syncx.Guard[watchState]
}

type watchState struct {
	hash    *goimagehash.ImageHash
	verdict Verdict
	valid   bool
}

// NewWatcher creates a watcher bound to one source.
func (d *Detector) NewWatcher(src sampler.Source) *Watcher {
	return &Watcher{d: d, src: src, state: syncx.NewGuard(watchState{})}
}

// Check returns the current verdict, reporting whether it was served from
// the cache. Preview failures fall through to a full check.
func (w *Watcher) Check(ctx context.Context) (Verdict, bool, error) {
	ctx, span := trace.StartSpan(ctx, "watcher_check")
	defer span.End()

	log := trace.Logger(ctx)

	h := w.previewHash(ctx)
	if h != nil {
		var cached Verdict
		hit := w.state.Update(func(s *watchState) bool {
			if !s.valid || s.hash == nil {
				return false
			}
			dist, err := s.hash.Distance(h)
			if err != nil || dist > UnchangedHashDistance {
				return false
			}
			cached = s.verdict
			return true
		})
		if hit {
			span.SetAttr("cached", true)
			log.Debug("source unchanged, reusing verdict", "status", cached.Status.String())
			return cached, true, nil
		}
	}

	verdict, err := w.d.Check(ctx, w.src, CheckPriority)
	if err != nil {
		return Verdict{}, false, err
	}

	w.state.Set(watchState{hash: h, verdict: verdict, valid: true})
	return verdict, false, nil
}

// Invalidate drops the cached verdict. The next check runs the full
// pipeline regardless of the preview hash.
func (w *Watcher) Invalidate() {
	w.state.Set(watchState{})
}

// previewHash grabs one frame at the clip start and hashes it cheaply,
// restoring the playback position so successive probes compare like
// frames. Any failure returns nil and disables the gate for this round.
func (w *Watcher) previewHash(ctx context.Context) *goimagehash.ImageHash {
	orig := w.src.Position()
	if err := w.src.Seek(0); err != nil {
		return nil
	}
	img, err := w.src.Capture(ctx)
	_ = w.src.Seek(orig)
	if err != nil {
		return nil
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil
	}
	return h
}
