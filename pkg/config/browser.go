package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/operator/pkg/tools/browser"
)

// SectionIDBrowser is the identifier for the browser section.
const SectionIDBrowser = "browser"

// BrowserSection configures launched browsers and the session pool.
type BrowserSection struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	ActionTimeout  time.Duration
	MaxSessions    int
	IdleTimeout    time.Duration

	mu sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	s := &BrowserSection{}
	s.Reset()
	return s
}

func (s *BrowserSection) ID() string    { return SectionIDBrowser }
func (s *BrowserSection) Title() string { return "Browser" }
func (s *BrowserSection) Description() string {
	return "Browser window, action timeout and session pool limits."
}

func (s *BrowserSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"headless":        s.Headless,
		"viewport_width":  s.ViewportWidth,
		"viewport_height": s.ViewportHeight,
		"action_timeout":  s.ActionTimeout.String(),
		"max_sessions":    s.MaxSessions,
		"idle_timeout":    s.IdleTimeout.String(),
	}
}

func (s *BrowserSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := data["headless"]; ok {
		headless, ok := v.(bool)
		if !ok {
			return fmt.Errorf("headless: expected a boolean, got %v", v)
		}
		s.Headless = headless
	}
	for key, dst := range map[string]*int{
		"viewport_width":  &s.ViewportWidth,
		"viewport_height": &s.ViewportHeight,
		"max_sessions":    &s.MaxSessions,
	} {
		if err := setInt(data, key, dst); err != nil {
			return err
		}
	}
	if err := setDuration(data, "action_timeout", &s.ActionTimeout); err != nil {
		return err
	}
	return setDuration(data, "idle_timeout", &s.IdleTimeout)
}

func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", s.ViewportWidth, s.ViewportHeight)
	}
	if s.ActionTimeout <= 0 {
		return fmt.Errorf("action_timeout must be positive")
	}
	if s.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive")
	}
	if s.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	return nil
}

func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Headless = true
	s.ViewportWidth = browser.DefaultViewportWidth
	s.ViewportHeight = browser.DefaultViewportHeight
	s.ActionTimeout = time.Duration(browser.DefaultTimeout) * time.Millisecond
	s.MaxSessions = browser.DefaultMaxSessions
	s.IdleTimeout = browser.DefaultIdleTimeout
}

// SessionOptions converts the section into launch options.
func (s *BrowserSection) SessionOptions() browser.SessionOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return browser.SessionOptions{
		Headless: s.Headless,
		Viewport: &browser.Viewport{Width: s.ViewportWidth, Height: s.ViewportHeight},
		Timeout:  float64(s.ActionTimeout.Milliseconds()),
	}
}

// ManagerOptions converts the pool limits into session manager options.
func (s *BrowserSection) ManagerOptions() []browser.ManagerOption {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return []browser.ManagerOption{
		browser.WithMaxSessions(s.MaxSessions),
		browser.WithIdleTimeout(s.IdleTimeout),
	}
}
