package config

import (
	"fmt"
	"sync"
	"time"
)

const (
	// SectionIDLLM is the identifier for the LLM settings section
	SectionIDLLM = "llm"

	DefaultRequestsPerSecond = 1.0
	DefaultMaxRetries        = 3
	DefaultRetryBaseDelay    = 2 * time.Second
	DefaultMaxContextTokens  = 100000
)

// LLMSection configures the decision service client.
type LLMSection struct {
	Model   string
	BaseURL string
	APIKey  string

	// RequestsPerSecond throttles decision calls; zero disables throttling.
	RequestsPerSecond float64
	// MaxRetries is the total number of attempts per decision.
	MaxRetries     int
	RetryBaseDelay time.Duration
	// MaxContextTokens bounds the replayed conversation; zero disables trimming.
	MaxContextTokens int

	mu sync.RWMutex
}

// NewLLMSection creates a new LLM section with default settings.
func NewLLMSection() *LLMSection {
	s := &LLMSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *LLMSection) ID() string {
	return SectionIDLLM
}

// Title returns the section title.
func (s *LLMSection) Title() string {
	return "LLM Settings"
}

// Description returns the section description.
func (s *LLMSection) Description() string {
	return "Decision service endpoint, credentials, throttling and retry settings."
}

// Data returns the current configuration data.
func (s *LLMSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"model":               s.Model,
		"base_url":            s.BaseURL,
		"api_key":             s.APIKey,
		"requests_per_second": s.RequestsPerSecond,
		"max_retries":         s.MaxRetries,
		"retry_base_delay":    s.RetryBaseDelay.String(),
		"max_context_tokens":  s.MaxContextTokens,
	}
}

// SetData updates the configuration from the provided data.
func (s *LLMSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if model, ok := data["model"].(string); ok {
		s.Model = model
	}
	if baseURL, ok := data["base_url"].(string); ok {
		s.BaseURL = baseURL
	}
	if apiKey, ok := data["api_key"].(string); ok {
		s.APIKey = apiKey
	}
	if v, ok := data["requests_per_second"]; ok {
		rps, ok := floatValue(v)
		if !ok {
			return fmt.Errorf("requests_per_second: expected a number, got %v", v)
		}
		s.RequestsPerSecond = rps
	}
	if err := setInt(data, "max_retries", &s.MaxRetries); err != nil {
		return err
	}
	if err := setDuration(data, "retry_base_delay", &s.RetryBaseDelay); err != nil {
		return err
	}
	return setInt(data, "max_context_tokens", &s.MaxContextTokens)
}

// Validate validates the current configuration. Credentials are checked
// when the client is built, not here.
func (s *LLMSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.RequestsPerSecond < 0:
		return fmt.Errorf("requests_per_second must not be negative")
	case s.MaxRetries < 1:
		return fmt.Errorf("max_retries must be at least 1")
	case s.RetryBaseDelay < 0:
		return fmt.Errorf("retry_base_delay must not be negative")
	case s.MaxContextTokens < 0:
		return fmt.Errorf("max_context_tokens must not be negative")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *LLMSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = ""
	s.BaseURL = ""
	s.APIKey = ""
	s.RequestsPerSecond = DefaultRequestsPerSecond
	s.MaxRetries = DefaultMaxRetries
	s.RetryBaseDelay = DefaultRetryBaseDelay
	s.MaxContextTokens = DefaultMaxContextTokens
}

// Snapshot returns a copy of the settings safe to read without locking.
func (s *LLMSection) Snapshot() LLMSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return LLMSettings{
		Model:             s.Model,
		BaseURL:           s.BaseURL,
		APIKey:            s.APIKey,
		RequestsPerSecond: s.RequestsPerSecond,
		MaxRetries:        s.MaxRetries,
		RetryBaseDelay:    s.RetryBaseDelay,
		MaxContextTokens:  s.MaxContextTokens,
	}
}

// LLMSettings is a plain copy of LLMSection.
type LLMSettings struct {
	Model             string
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	MaxRetries        int
	RetryBaseDelay    time.Duration
	MaxContextTokens  int
}
