package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/operator/pkg/agent"
	"github.com/entrhq/operator/pkg/jobs"
)

// SectionIDJobs is the identifier for the jobs section.
const SectionIDJobs = "jobs"

// DefaultJobTimeout bounds a single browser job.
const DefaultJobTimeout = 10 * time.Minute

// JobsSection configures background job execution.
type JobsSection struct {
	// OperateMaxSteps is the step budget of one operate-browser call.
	OperateMaxSteps int
	JobTimeout      time.Duration
	Retention       time.Duration
	SweepInterval   time.Duration
	// MaxConcurrent caps jobs executing at once; zero means no cap.
	MaxConcurrent int

	mu sync.RWMutex
}

// NewJobsSection creates a jobs section with default settings.
func NewJobsSection() *JobsSection {
	s := &JobsSection{}
	s.Reset()
	return s
}

func (s *JobsSection) ID() string          { return SectionIDJobs }
func (s *JobsSection) Title() string       { return "Jobs" }
func (s *JobsSection) Description() string { return "Timeouts, retention and concurrency of browser jobs." }

func (s *JobsSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"operate_max_steps": s.OperateMaxSteps,
		"job_timeout":       s.JobTimeout.String(),
		"retention":         s.Retention.String(),
		"sweep_interval":    s.SweepInterval.String(),
		"max_concurrent":    s.MaxConcurrent,
	}
}

func (s *JobsSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := setInt(data, "operate_max_steps", &s.OperateMaxSteps); err != nil {
		return err
	}
	if err := setInt(data, "max_concurrent", &s.MaxConcurrent); err != nil {
		return err
	}
	if err := setDuration(data, "job_timeout", &s.JobTimeout); err != nil {
		return err
	}
	if err := setDuration(data, "retention", &s.Retention); err != nil {
		return err
	}
	return setDuration(data, "sweep_interval", &s.SweepInterval)
}

func (s *JobsSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.OperateMaxSteps <= 0:
		return fmt.Errorf("operate_max_steps must be positive")
	case s.JobTimeout <= 0:
		return fmt.Errorf("job_timeout must be positive")
	case s.Retention <= 0:
		return fmt.Errorf("retention must be positive")
	case s.SweepInterval <= 0:
		return fmt.Errorf("sweep_interval must be positive")
	case s.MaxConcurrent < 0:
		return fmt.Errorf("max_concurrent must not be negative")
	}
	return nil
}

func (s *JobsSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OperateMaxSteps = agent.ReactiveMaxSteps
	s.JobTimeout = DefaultJobTimeout
	s.Retention = jobs.DefaultRetention
	s.SweepInterval = jobs.DefaultSweepInterval
	s.MaxConcurrent = 0
}

// ManagerOptions converts the section into job manager options.
func (s *JobsSection) ManagerOptions() []jobs.Option {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return []jobs.Option{
		jobs.WithRetention(s.Retention),
		jobs.WithSweepInterval(s.SweepInterval),
		jobs.WithMaxConcurrent(s.MaxConcurrent),
	}
}

// Timeout returns the per-job timeout.
func (s *JobsSection) Timeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.JobTimeout
}

// MaxSteps returns the operate-browser step budget.
func (s *JobsSection) MaxSteps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.OperateMaxSteps
}
