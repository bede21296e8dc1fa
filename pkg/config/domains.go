package config

import (
	"slices"
	"sync"

	"github.com/entrhq/operator/pkg/security/domain"
)

// SectionIDDomains is the identifier for the navigation domains section.
const SectionIDDomains = "domains"

// DomainsSection holds the navigation allow-list and block-list. An empty
// allow-list leaves navigation unconfined.
type DomainsSection struct {
	Allowed []string
	Blocked []string

	mu sync.RWMutex
}

// NewDomainsSection creates a section that blocks the default domains.
func NewDomainsSection() *DomainsSection {
	s := &DomainsSection{}
	s.Reset()
	return s
}

func (s *DomainsSection) ID() string    { return SectionIDDomains }
func (s *DomainsSection) Title() string { return "Navigation Domains" }
func (s *DomainsSection) Description() string {
	return "Domains the agent may visit and domains it must never visit. Entries may use * wildcards."
}

func (s *DomainsSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"allowed": slices.Clone(s.Allowed),
		"blocked": slices.Clone(s.Blocked),
	}
}

func (s *DomainsSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := data["allowed"]; ok {
		allowed, err := stringsValue("allowed", v)
		if err != nil {
			return err
		}
		s.Allowed = allowed
	}
	if v, ok := data["blocked"]; ok {
		blocked, err := stringsValue("blocked", v)
		if err != nil {
			return err
		}
		s.Blocked = blocked
	}
	return nil
}

func (s *DomainsSection) Validate() error {
	_, err := s.Filter()
	return err
}

func (s *DomainsSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Allowed = nil
	s.Blocked = slices.Clone(domain.DefaultBlocked)
}

// Filter builds the safety filter from the configured entries.
func (s *DomainsSection) Filter() (*domain.Filter, error) {
	s.mu.RLock()
	allowed := slices.Clone(s.Allowed)
	blocked := slices.Clone(s.Blocked)
	s.mu.RUnlock()
	return domain.NewFilter(allowed, blocked)
}
