package jobs

import (
	"context"
	"errors"
	"maps"
	"time"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether s is absorbing.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from s to next. Status only
// moves forward: pending to running or cancelled, running to any terminal
// state.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next.IsTerminal()
	default:
		return false
	}
}

// OperationType names what a job does.
type OperationType string

const (
	OpCreateBrowser OperationType = "create-browser"
	OpNavigate      OperationType = "navigate"
	OpOperate       OperationType = "operate"
	OpClose         OperationType = "close"
)

// Job is a snapshot of a unit of background work.
//
// Result and Error are mutually exclusive and both unset until the job is
// terminal: a completed job has a Result, every other terminal job an Error.
type Job struct {
	ID          string         `json:"id"`
	Operation   OperationType  `json:"operation"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	Params      map[string]any `json:"params,omitempty"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Progress    string         `json:"progress,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (j *Job) clone() Job {
	c := *j
	c.Params = maps.Clone(j.Params)
	return c
}

// Work is the function a job runs. It must return promptly once ctx is done.
type Work func(ctx context.Context) (any, error)

var (
	// ErrJobNotFound is returned for unknown or swept job IDs.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotPending is returned when Run or Submit is called on a job
	// that has already been started or cancelled.
	ErrJobNotPending = errors.New("job is not pending")
	// ErrJobFinished is returned when cancelling a terminal job.
	ErrJobFinished = errors.New("job already finished")

	// ErrTimeout is the cancellation cause of a job that ran out of time.
	ErrTimeout = errors.New("job timed out")
	// ErrCancelled is the cancellation cause of a job cancelled with Cancel.
	ErrCancelled = errors.New("job cancelled")
)
