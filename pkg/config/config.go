// Package config loads the operator's settings from a sectioned JSON file.
//
// There is no process-wide configuration: Load returns a Manager that the
// caller passes to whatever needs it.
package config

// Load opens the file store at path (DefaultPath when empty), registers the
// operator sections and applies the stored values.
func Load(path string) (*Manager, error) {
	store, err := NewFileStore(path)
	if err != nil {
		return nil, err
	}
	return New(store)
}

// New registers the operator sections on a manager over store and loads
// them.
func New(store Store) (*Manager, error) {
	m := NewManager(store)
	for _, section := range []Section{
		NewLLMSection(),
		NewBrowserSection(),
		NewDomainsSection(),
		NewJobsSection(),
	} {
		if err := m.RegisterSection(section); err != nil {
			return nil, err
		}
	}
	if err := m.LoadAll(); err != nil {
		return nil, err
	}
	return m, nil
}

func sectionAs[T Section](m *Manager, id string, fallback func() T) T {
	if m != nil {
		if s, ok := m.GetSection(id); ok {
			if typed, ok := s.(T); ok {
				return typed
			}
		}
	}
	return fallback()
}

// LLM returns the llm section, or defaults when not registered.
func (m *Manager) LLM() *LLMSection {
	return sectionAs(m, SectionIDLLM, NewLLMSection)
}

// Browser returns the browser section, or defaults when not registered.
func (m *Manager) Browser() *BrowserSection {
	return sectionAs(m, SectionIDBrowser, NewBrowserSection)
}

// Domains returns the domains section, or defaults when not registered.
func (m *Manager) Domains() *DomainsSection {
	return sectionAs(m, SectionIDDomains, NewDomainsSection)
}

// Jobs returns the jobs section, or defaults when not registered.
func (m *Manager) Jobs() *JobsSection {
	return sectionAs(m, SectionIDJobs, NewJobsSection)
}
