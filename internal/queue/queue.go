// Package queue schedules fingerprinting jobs with bounded parallelism so
// expensive DCT work never overwhelms the host. Jobs carry a priority,
// race a per-job timeout, and settle exactly once.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipguard/internal/errors"
	"clipguard/internal/fingerprint"
)

const (
	// DefaultMaxConcurrent bounds simultaneously running jobs.
	DefaultMaxConcurrent = 3
	// DefaultJobTimeout bounds a single job's runtime.
	DefaultJobTimeout = 5 * time.Second
	// MinConcurrent and MaxConcurrent bound the configurable capacity.
	MinConcurrent = 1
	MaxConcurrent = 10

	// waitPollInterval is how often Wait re-checks for quiescence.
	waitPollInterval = 50 * time.Millisecond
)

// Task computes a fingerprint. It receives a context that is cancelled when
// the job times out; cancellation is cooperative. A task that ignores it is
// abandoned, not killed, so tasks must be side-effect-light enough that an
// abandoned run does no detectable harm.
type Task func(ctx context.Context) (fingerprint.Fingerprint, error)

// Result is a settled job outcome. Err carries a TIMEOUT or QUEUE_CLEARED
// code when the task itself never ran to completion.
type Result struct {
	Fingerprint fingerprint.Fingerprint
	Err         error
}

type job struct {
	id       string
	priority int
	task     Task
	created  time.Time
	result   chan Result
}

// Queue admits pending jobs into a bounded active set, highest priority
// first, FIFO within equal priority. Settlement of any active job is the
// sole re-entry point for draining pending.
type Queue struct {
	mu            sync.Mutex
	maxConcurrent int
	timeout       time.Duration
	pending       []*job
	active        map[string]*job
}

// New creates a queue. Out-of-range capacity falls back to the default.
func New(maxConcurrent int, timeout time.Duration) *Queue {
	if maxConcurrent < MinConcurrent || maxConcurrent > MaxConcurrent {
		maxConcurrent = DefaultMaxConcurrent
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Queue{
		maxConcurrent: maxConcurrent,
		timeout:       timeout,
		active:        make(map[string]*job),
	}
}

// Enqueue inserts a job into pending ordered by descending priority,
// preserving insertion order among equal priorities, then admits as many
// pending jobs as capacity allows. The returned channel delivers exactly
// one Result.
func (q *Queue) Enqueue(id string, priority int, task Task) <-chan Result {
	if id == "" {
		id = uuid.NewString()
	}
	j := &job{
		id:       id,
		priority: priority,
		task:     task,
		created:  time.Now(),
		result:   make(chan Result, 1),
	}

	q.mu.Lock()
	idx := len(q.pending)
	for i, p := range q.pending {
		if p.priority < priority {
			idx = i
			break
		}
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = j
	q.admitLocked()
	q.mu.Unlock()

	return j.result
}

// admitLocked moves pending jobs into the active set while capacity
// remains. Caller holds q.mu.
func (q *Queue) admitLocked() {
	for len(q.active) < q.maxConcurrent && len(q.pending) > 0 {
		j := q.pending[0]
		q.pending = q.pending[1:]
		q.active[j.id] = j
		go q.run(j)
	}
}

// run races the task against the job timeout. Whichever settles first wins;
// a timed-out task keeps running in the background with a cancelled context
// and its eventual result is discarded.
func (q *Queue) run(j *job) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		fp, err := j.task(ctx)
		done <- Result{Fingerprint: fp, Err: err}
	}()

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	var res Result
	select {
	case res = <-done:
	case <-timer.C:
		res = Result{Err: errors.Newf(errors.CodeTimeout, "job %s exceeded %v", j.id, q.timeout)}
		slog.Warn("job timed out, abandoning task", "job", j.id, "timeout", q.timeout)
	}

	q.settle(j, res)
}

// settle removes the job from active, delivers its result, and admits more
// pending jobs.
func (q *Queue) settle(j *job, res Result) {
	q.mu.Lock()
	delete(q.active, j.id)
	q.admitLocked()
	q.mu.Unlock()

	j.result <- res
}

// Clear rejects every pending job with a QUEUE_CLEARED error carrying the
// reason, and empties the pending list. Active jobs run to completion.
// Returns the number of rejected jobs.
func (q *Queue) Clear(reason string) int {
	q.mu.Lock()
	rejected := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, j := range rejected {
		j.result <- Result{Err: errors.Newf(errors.CodeQueueCleared, "queue cleared: %s", reason)}
	}
	if len(rejected) > 0 {
		slog.Info("cleared pending jobs", "count", len(rejected), "reason", reason)
	}
	return len(rejected)
}

// Wait blocks until both active and pending are empty, polling rather than
// being notified. The sets may become non-empty again between polls; only
// eventual quiescence detection is guaranteed.
func (q *Queue) Wait(ctx context.Context) error {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		q.mu.Lock()
		idle := len(q.active) == 0 && len(q.pending) == 0
		q.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SetMaxConcurrent updates capacity. Values outside [MinConcurrent,
// MaxConcurrent] are logged and ignored. Growth immediately admits more
// pending jobs; shrinkage only throttles future admissions.
func (q *Queue) SetMaxConcurrent(n int) {
	if n < MinConcurrent || n > MaxConcurrent {
		slog.Warn("rejected max concurrency outside valid range", "requested", n, "min", MinConcurrent, "max", MaxConcurrent)
		return
	}

	q.mu.Lock()
	q.maxConcurrent = n
	q.admitLocked()
	q.mu.Unlock()
}

// Lens returns the current active and pending counts.
func (q *Queue) Lens() (active, pending int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active), len(q.pending)
}
