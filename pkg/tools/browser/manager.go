package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/entrhq/operator/pkg/logging"
)

var (
	// ErrSessionNotFound is returned when no browser is open for a project.
	ErrSessionNotFound = errors.New("browser session not found")
	// ErrSessionExists is returned by Start when the project already has a browser.
	ErrSessionExists = errors.New("browser session already exists")
	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = errors.New("maximum number of browser sessions reached")
)

type session struct {
	project    string
	driver     ManagedDriver
	headless   bool
	createdAt  time.Time
	lastUsedAt time.Time
	// one holder at a time: actions on a page are strictly sequential
	lock *semaphore.Weighted
}

// SessionManager keeps one browser per project. It is safe for concurrent
// use; the per-project lock is taken with Acquire.
type SessionManager struct {
	mu          sync.RWMutex
	sessions    map[string]*session
	factory     DriverFactory
	maxSessions int
	idleTimeout time.Duration
	now         func() time.Time
	logger      *logging.Logger
}

// ManagerOption configures a SessionManager.
type ManagerOption func(*SessionManager)

// WithMaxSessions caps the number of concurrently open browsers.
func WithMaxSessions(n int) ManagerOption {
	return func(m *SessionManager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithIdleTimeout sets how long an unused session survives CloseIdle.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *logging.Logger) ManagerOption {
	return func(m *SessionManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithManagerClock replaces time.Now, for tests.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSessionManager creates a session manager that launches browsers with factory.
func NewSessionManager(factory DriverFactory, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		sessions:    make(map[string]*session),
		factory:     factory,
		maxSessions: DefaultMaxSessions,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches a browser for project. The launch happens outside the
// manager lock so a slow browser start does not stall other projects.
func (m *SessionManager) Start(ctx context.Context, project string, opts SessionOptions) (Driver, error) {
	if project == "" {
		return nil, fmt.Errorf("project name is required")
	}

	m.mu.Lock()
	if _, exists := m.sessions[project]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrSessionExists, project)
	}
	if len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrTooManySessions, m.maxSessions)
	}
	// reserve the slot while launching
	placeholder := &session{project: project, lock: semaphore.NewWeighted(1)}
	m.sessions[project] = placeholder
	m.mu.Unlock()

	driver, err := m.factory(ctx, opts)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, project)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to start browser for %q: %w", project, err)
	}

	now := m.now()
	m.mu.Lock()
	if m.sessions[project] != placeholder {
		// CloseAll ran during the launch
		m.mu.Unlock()
		_ = driver.Close()
		return nil, fmt.Errorf("browser for %q closed during startup", project)
	}
	placeholder.driver = driver
	placeholder.headless = opts.Headless
	placeholder.createdAt = now
	placeholder.lastUsedAt = now
	m.mu.Unlock()

	m.logger.Infof("started browser for project %q (headless=%t)", project, opts.Headless)
	return driver, nil
}

// Get returns the driver for project without locking it.
func (m *SessionManager) Get(project string) (Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[project]
	if !ok || s.driver == nil {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, project)
	}
	return s.driver, nil
}

// Acquire waits for exclusive use of project's browser. The returned
// release func must be called exactly once; extra calls are ignored.
func (m *SessionManager) Acquire(ctx context.Context, project string) (Driver, func(), error) {
	m.mu.RLock()
	s, ok := m.sessions[project]
	m.mu.RUnlock()
	if !ok || s.driver == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrSessionNotFound, project)
	}

	if err := s.lock.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}

	// the session may have been closed while we waited
	m.mu.Lock()
	current, ok := m.sessions[project]
	if !ok || current != s {
		m.mu.Unlock()
		s.lock.Release(1)
		return nil, nil, fmt.Errorf("%w: %q", ErrSessionNotFound, project)
	}
	s.lastUsedAt = m.now()
	m.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			s.lastUsedAt = m.now()
			m.mu.Unlock()
			s.lock.Release(1)
		})
	}
	return s.driver, release, nil
}

// Close closes and removes project's browser.
func (m *SessionManager) Close(project string) error {
	m.mu.Lock()
	s, ok := m.sessions[project]
	if !ok || s.driver == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSessionNotFound, project)
	}
	delete(m.sessions, project)
	m.mu.Unlock()

	m.logger.Infof("closing browser for project %q", project)
	return s.driver.Close()
}

// List returns metadata about every open session, sorted by project.
func (m *SessionManager) List(ctx context.Context) []SessionInfo {
	m.mu.RLock()
	snapshot := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.driver != nil {
			snapshot = append(snapshot, s)
		}
	}
	infos := make([]SessionInfo, 0, len(snapshot))
	for _, s := range snapshot {
		infos = append(infos, SessionInfo{
			Project:    s.project,
			Headless:   s.headless,
			CreatedAt:  s.createdAt,
			LastUsedAt: s.lastUsedAt,
		})
	}
	m.mu.RUnlock()

	// CurrentURL may block on the browser; read it outside the lock
	for i, s := range snapshot {
		if u, err := s.driver.CurrentURL(ctx); err == nil {
			infos[i].CurrentURL = u
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Project < infos[j].Project })
	return infos
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseIdle closes sessions unused for longer than the idle timeout and
// not currently held. It returns the closed project names.
func (m *SessionManager) CloseIdle() ([]string, error) {
	now := m.now()
	var idle []*session

	m.mu.Lock()
	for name, s := range m.sessions {
		if s.driver == nil || now.Sub(s.lastUsedAt) <= m.idleTimeout {
			continue
		}
		if !s.lock.TryAcquire(1) {
			continue
		}
		delete(m.sessions, name)
		idle = append(idle, s)
	}
	m.mu.Unlock()

	var errs []error
	closed := make([]string, 0, len(idle))
	for _, s := range idle {
		if err := s.driver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.project, err))
		}
		s.lock.Release(1)
		closed = append(closed, s.project)
		m.logger.Infof("closed idle browser for project %q", s.project)
	}
	sort.Strings(closed)
	return closed, errors.Join(errs...)
}

// CloseAll closes every session.
func (m *SessionManager) CloseAll() error {
	m.mu.Lock()
	all := make([]*session, 0, len(m.sessions))
	for name, s := range m.sessions {
		if s.driver != nil {
			all = append(all, s)
		}
		delete(m.sessions, name)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := s.driver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.project, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sessions: %w", errors.Join(errs...))
	}
	return nil
}
