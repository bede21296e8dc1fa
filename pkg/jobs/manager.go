// Package jobs tracks long-running browser operations as jobs with a
// monotonic status machine, so callers can start work, return at once and
// poll for the outcome.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/entrhq/operator/pkg/logging"
)

const (
	// DefaultRetention is how long a terminal job is kept before Sweep drops it.
	DefaultRetention = time.Hour
	// DefaultSweepInterval is how often StartSweeper runs Sweep.
	DefaultSweepInterval = 5 * time.Minute
)

type record struct {
	job       Job
	startedAt time.Time
	cancel    context.CancelCauseFunc
	done      chan struct{}
}

// Manager owns the job table. All methods are safe for concurrent use.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*record

	retention     time.Duration
	sweepInterval time.Duration
	slots         *semaphore.Weighted
	metrics       *Metrics
	logger        *logging.Logger
	now           func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetention sets how long terminal jobs are kept.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// WithSweepInterval sets the sweeper period.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithMaxConcurrent caps how many jobs execute work at once. Jobs over the
// cap stay running and wait for a slot; the wait counts against the timeout.
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithMetrics records job counts and durations.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates an empty job manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		jobs:          make(map[string]*record),
		retention:     DefaultRetention,
		sweepInterval: DefaultSweepInterval,
		logger:        logging.Nop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a pending job and returns its id.
func (m *Manager) Create(op OperationType, description string, params map[string]any) string {
	id := uuid.NewString()
	now := m.now()

	m.mu.Lock()
	m.jobs[id] = &record{
		job: Job{
			ID:          id,
			Operation:   op,
			Description: description,
			Status:      StatusPending,
			Params:      params,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		done: make(chan struct{}),
	}
	m.mu.Unlock()

	m.logger.Debugf("created job %s (%s): %s", id, op, description)
	return id
}

// Run moves a pending job to running, executes work and blocks until the job
// is terminal. A timeout of zero disables the deadline. The returned error
// only reports misuse (unknown or already started job); the outcome of the
// work is recorded on the job.
func (m *Manager) Run(ctx context.Context, id string, timeout time.Duration, work Work) error {
	runCtx, err := m.start(ctx, id)
	if err != nil {
		return err
	}
	m.await(runCtx, id, timeout, work)
	return nil
}

// Submit is Run without waiting. The job is running when Submit returns.
// Cancellation of ctx does not reach the work; use Cancel.
func (m *Manager) Submit(ctx context.Context, id string, timeout time.Duration, work Work) error {
	runCtx, err := m.start(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	go m.await(runCtx, id, timeout, work)
	return nil
}

func (m *Manager) start(ctx context.Context, id string) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if !r.job.Status.CanTransition(StatusRunning) {
		return nil, fmt.Errorf("%w: %s is %s", ErrJobNotPending, id, r.job.Status)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	now := m.now()
	r.job.Status = StatusRunning
	r.job.UpdatedAt = now
	r.startedAt = now
	r.cancel = cancel
	m.metrics.started()
	return runCtx, nil
}

type outcome struct {
	result any
	err    error
}

func (m *Manager) await(ctx context.Context, id string, timeout time.Duration, work Work) {
	op := m.operation(id)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, fmt.Errorf("%w after %s", ErrTimeout, timeout))
		defer cancel()
	}

	if m.slots != nil {
		if err := m.slots.Acquire(ctx, 1); err != nil {
			m.interrupted(ctx, id)
			return
		}
		defer m.slots.Release(1)
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				m.logger.Errorf("job %s (%s) panicked: %v", id, op, p)
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		result, err := work(ctx)
		done <- outcome{result: result, err: err}
	}()

	// the work may ignore ctx; stop waiting for it once ctx is done
	select {
	case o := <-done:
		switch {
		case o.err == nil:
			if o.result == nil {
				o.result = map[string]any{}
			}
			m.finish(id, StatusCompleted, o.result, "")
		case ctx.Err() != nil:
			m.interrupted(ctx, id)
		default:
			msg := o.err.Error()
			if msg == "" {
				msg = "job failed"
			}
			m.finish(id, StatusFailed, nil, msg)
		}
	case <-ctx.Done():
		m.interrupted(ctx, id)
	}
}

// interrupted records a job whose context ended before the work did.
func (m *Manager) interrupted(ctx context.Context, id string) {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrTimeout) {
		m.finish(id, StatusTimeout, nil, cause.Error())
		return
	}
	if cause == nil {
		cause = ErrCancelled
	}
	m.finish(id, StatusCancelled, nil, cause.Error())
}

// finish applies a terminal status. Transitions out of a terminal state are
// ignored, which keeps the status monotonic when a cancel races completion.
func (m *Manager) finish(id string, status Status, result any, errMsg string) {
	m.mu.Lock()
	r, ok := m.jobs[id]
	if !ok || !r.job.Status.CanTransition(status) {
		m.mu.Unlock()
		return
	}
	wasRunning := r.job.Status == StatusRunning
	now := m.now()
	r.job.Status = status
	r.job.Result = result
	r.job.Error = errMsg
	r.job.UpdatedAt = now
	if r.cancel != nil {
		r.cancel(ErrCancelled)
	}
	elapsed := now.Sub(r.startedAt)
	op := r.job.Operation
	close(r.done)
	m.mu.Unlock()

	m.metrics.finished(op, status, elapsed.Seconds(), wasRunning)
	if status == StatusCompleted {
		m.logger.Infof("job %s (%s) completed in %s", id, op, elapsed.Round(time.Millisecond))
	} else {
		m.logger.Warnf("job %s (%s) %s: %s", id, op, status, errMsg)
	}
}

func (m *Manager) operation(id string) OperationType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.jobs[id]; ok {
		return r.job.Operation
	}
	return ""
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return r.job.clone(), nil
}

// Wait blocks until the job is terminal or ctx ends, and returns the final
// snapshot.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	m.mu.RLock()
	r, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return r.job.clone(), nil
}

// List returns up to limit jobs, most recently updated first. A limit of
// zero or less returns every job.
func (m *Manager) List(limit int) []Job {
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, r := range m.jobs {
		out = append(out, r.job.clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Cancel stops a pending or running job. A running job's work sees its
// context cancelled; the job is marked cancelled without waiting for it.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	r, ok := m.jobs[id]
	var status Status
	if ok {
		status = r.job.Status
	}
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, id, status)
	}
	m.finish(id, StatusCancelled, nil, ErrCancelled.Error())
	return nil
}

// SetProgress attaches a progress note to a job that is not yet terminal.
func (m *Manager) SetProgress(id, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.jobs[id]
	if !ok || r.job.Status.IsTerminal() {
		return
	}
	r.job.Progress = text
	r.job.UpdatedAt = m.now()
}

// Len returns the number of tracked jobs.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// Sweep drops terminal jobs last updated more than the retention period
// ago and returns how many were removed. Pending and running jobs are kept.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.retention)

	m.mu.Lock()
	removed := 0
	for id, r := range m.jobs {
		if r.job.Status.IsTerminal() && r.job.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Infof("swept %d finished jobs", removed)
	}
	return removed
}

// StartSweeper runs Sweep every sweep interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Shutdown cancels every job that is not yet terminal.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0)
	for id, r := range m.jobs {
		if !r.job.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.finish(id, StatusCancelled, nil, "job cancelled: shutting down")
	}
}
