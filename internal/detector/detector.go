// Package detector runs the full fingerprinting pipeline: frames are
// sampled and averaged, hashed, quality-gated, and matched against the
// block registry. Expensive work goes through the bounded queue.
package detector

import (
	"context"

	"github.com/google/uuid"

	"clipguard/internal/config"
	"clipguard/internal/errors"
	"clipguard/internal/fingerprint"
	"clipguard/internal/queue"
	"clipguard/internal/registry"
	"clipguard/internal/sampler"
	"clipguard/internal/store"
	"clipguard/internal/trace"
)

// Status is the outcome of a check.
type Status int

const (
	// StatusClean means a usable fingerprint matched nothing blocked.
	StatusClean Status = iota
	// StatusBlocked means the fingerprint matched a blocklist record.
	StatusBlocked
	// StatusNoSignal means no usable fingerprint could be derived:
	// zero frames captured or a trivial hash. Not a failure.
	StatusNoSignal
)

func (s Status) String() string {
	return [...]string{"clean", "blocked", "no-signal"}[s]
}

// Verdict is the structured result of a check. Match is set only for
// StatusBlocked; Fingerprint is empty for StatusNoSignal.
type Verdict struct {
	Status      Status
	Fingerprint fingerprint.Fingerprint
	Match       *registry.Match
}

// Detector coordinates the pipeline components.
type Detector struct {
	cfg      *config.Config
	queue    *queue.Queue
	sampler  *sampler.Sampler
	registry *registry.Registry
	store    *store.Store
}

// New creates a detector over shared components.
func New(cfg *config.Config, q *queue.Queue, s *sampler.Sampler, reg *registry.Registry, st *store.Store) *Detector {
	return &Detector{cfg: cfg, queue: q, sampler: s, registry: reg, store: st}
}

// Fingerprint derives a fingerprint from a source through the queue.
// Returns a NO_SIGNAL error when the source yields nothing usable, a
// TIMEOUT error when the job exceeded its deadline, QUEUE_CLEARED when
// the job was rejected before starting, and the plain context error when
// the caller cancelled while waiting.
func (d *Detector) Fingerprint(ctx context.Context, src sampler.Source, priority int) (fingerprint.Fingerprint, error) {
	ctx, span := trace.StartSpan(ctx, "fingerprint_source")
	defer span.End()
	span.SetAttr("priority", priority)

	resultCh := d.queue.Enqueue(uuid.NewString(), priority, d.fingerprintTask(src))

	select {
	case <-ctx.Done():
		// The job itself stays queued; only this caller gives up. The
		// bare context error keeps caller abandonment distinguishable
		// from a job timeout, which is retryable.
		return "", ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			span.SetAttr("error", res.Err.Error())
			return "", res.Err
		}
		return res.Fingerprint, nil
	}
}

// fingerprintTask builds the queue task: sample, hash, quality-gate.
func (d *Detector) fingerprintTask(src sampler.Source) queue.Task {
	return func(ctx context.Context) (fingerprint.Fingerprint, error) {
		m, err := d.sampler.Sample(ctx, src, d.cfg.FramesToCapture, d.cfg.FrameDelay())
		if err != nil {
			return "", err
		}

		fp := fingerprint.Hash(m)
		if fp.IsTrivial(d.cfg.MinOnesZeros) {
			return "", errors.Newf(errors.CodeNoSignal, "trivial fingerprint, ones/zeros below %d", d.cfg.MinOnesZeros)
		}
		return fp, nil
	}
}

// Check fingerprints a source and matches it against the registry. A
// no-signal outcome is a valid verdict, not an error.
func (d *Detector) Check(ctx context.Context, src sampler.Source, priority int) (Verdict, error) {
	ctx, span := trace.StartSpan(ctx, "check_source")
	defer span.End()

	log := trace.Logger(ctx)

	fp, err := d.Fingerprint(ctx, src, priority)
	if err != nil {
		if errors.IsCode(err, errors.CodeNoSignal) {
			log.Debug("no usable fingerprint", "reason", err)
			return Verdict{Status: StatusNoSignal}, nil
		}
		return Verdict{}, err
	}

	if m, ok := d.registry.Match(fp, d.cfg.HammingThreshold); ok {
		span.SetAttr("distance", m.Distance)
		log.Info("source matched blocklist", "distance", m.Distance, "origin", m.Record.Origin)
		return Verdict{Status: StatusBlocked, Fingerprint: fp, Match: &m}, nil
	}
	return Verdict{Status: StatusClean, Fingerprint: fp}, nil
}

// Block fingerprints a source and persists it to the blocklist. Returns
// the fingerprint and whether a new record was created; a near-duplicate
// with a byte-identical fingerprint is reported as not added.
func (d *Detector) Block(ctx context.Context, src sampler.Source, origin registry.Origin) (fingerprint.Fingerprint, bool, error) {
	ctx, span := trace.StartSpan(ctx, "block_source")
	defer span.End()

	fp, err := d.Fingerprint(ctx, src, BlockPriority)
	if err != nil {
		return "", false, err
	}

	added, err := d.store.Add(ctx, registry.Record{Fingerprint: fp, Origin: origin})
	if err != nil {
		return "", false, err
	}
	return fp, added, nil
}

// Threshold returns the active match threshold.
func (d *Detector) Threshold() int { return d.cfg.HammingThreshold }
