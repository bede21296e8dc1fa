package config

import (
	"errors"
	"testing"
)

type mockSection struct {
	id          string
	data        map[string]any
	setErr      error
	validateErr error
	resets      int
}

func (m *mockSection) ID() string           { return m.id }
func (m *mockSection) Title() string        { return "Mock " + m.id }
func (m *mockSection) Description() string  { return "" }
func (m *mockSection) Data() map[string]any { return m.data }
func (m *mockSection) SetData(data map[string]any) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data = data
	return nil
}
func (m *mockSection) Validate() error { return m.validateErr }
func (m *mockSection) Reset()          { m.resets++; m.data = map[string]any{} }

type mockStore struct {
	sections map[string]map[string]any
	loadErr  error
	saveErr  error
	saves    int
}

func newMockStore() *mockStore {
	return &mockStore{sections: make(map[string]map[string]any)}
}

func (m *mockStore) Load() error { return m.loadErr }

func (m *mockStore) Save() error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	return nil
}

func (m *mockStore) GetSection(id string) (map[string]any, error) {
	if data, ok := m.sections[id]; ok {
		return data, nil
	}
	return map[string]any{}, nil
}

func (m *mockStore) SetSection(id string, data map[string]any) error {
	m.sections[id] = data
	return nil
}

func (m *mockStore) GetAll() (map[string]map[string]any, error) { return m.sections, nil }

func (m *mockStore) SetAll(data map[string]map[string]any) error {
	m.sections = data
	return nil
}

func TestNewManager(t *testing.T) {
	store := newMockStore()
	manager := NewManager(store)

	if manager.Store() != store {
		t.Error("Manager does not reference correct store")
	}
	if len(manager.GetSections()) != 0 {
		t.Errorf("Expected 0 sections, got %d", len(manager.GetSections()))
	}
}

func TestRegisterSection(t *testing.T) {
	manager := NewManager(newMockStore())

	if err := manager.RegisterSection(&mockSection{id: "a"}); err != nil {
		t.Fatalf("RegisterSection failed: %v", err)
	}
	if err := manager.RegisterSection(&mockSection{id: "b"}); err != nil {
		t.Fatalf("RegisterSection failed: %v", err)
	}
	if err := manager.RegisterSection(&mockSection{id: "a"}); err == nil {
		t.Error("Expected error registering duplicate section")
	}

	sections := manager.GetSections()
	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(sections))
	}
	if sections[0].ID() != "a" || sections[1].ID() != "b" {
		t.Errorf("Sections not in registration order: %s, %s", sections[0].ID(), sections[1].ID())
	}

	if _, ok := manager.GetSection("b"); !ok {
		t.Error("GetSection did not find registered section")
	}
	if _, ok := manager.GetSection("missing"); ok {
		t.Error("GetSection found unregistered section")
	}
}

func TestLoadAll(t *testing.T) {
	t.Run("applies stored data", func(t *testing.T) {
		store := newMockStore()
		store.sections["a"] = map[string]any{"key": "value"}
		section := &mockSection{id: "a"}
		manager := NewManager(store)
		_ = manager.RegisterSection(section)

		if err := manager.LoadAll(); err != nil {
			t.Fatalf("LoadAll failed: %v", err)
		}
		if section.data["key"] != "value" {
			t.Errorf("Expected stored value, got %v", section.data["key"])
		}
	})

	t.Run("skips sections without data", func(t *testing.T) {
		section := &mockSection{id: "a", data: map[string]any{"keep": true}}
		manager := NewManager(newMockStore())
		_ = manager.RegisterSection(section)

		if err := manager.LoadAll(); err != nil {
			t.Fatalf("LoadAll failed: %v", err)
		}
		if section.data["keep"] != true {
			t.Error("Section without stored data was overwritten")
		}
	})

	t.Run("store load error", func(t *testing.T) {
		store := newMockStore()
		store.loadErr = errors.New("disk gone")
		manager := NewManager(store)

		if err := manager.LoadAll(); err == nil {
			t.Error("Expected load error")
		}
	})

	t.Run("invalid stored values", func(t *testing.T) {
		store := newMockStore()
		store.sections["a"] = map[string]any{"key": 1}
		manager := NewManager(store)
		_ = manager.RegisterSection(&mockSection{id: "a", validateErr: errors.New("bad")})

		if err := manager.LoadAll(); err == nil {
			t.Error("Expected validation error")
		}
	})

	t.Run("set data error", func(t *testing.T) {
		store := newMockStore()
		store.sections["a"] = map[string]any{"key": 1}
		manager := NewManager(store)
		_ = manager.RegisterSection(&mockSection{id: "a", setErr: errors.New("wrong type")})

		if err := manager.LoadAll(); err == nil {
			t.Error("Expected set data error")
		}
	})
}

func TestSaveAll(t *testing.T) {
	t.Run("writes every section", func(t *testing.T) {
		store := newMockStore()
		manager := NewManager(store)
		_ = manager.RegisterSection(&mockSection{id: "a", data: map[string]any{"x": 1}})
		_ = manager.RegisterSection(&mockSection{id: "b", data: map[string]any{"y": 2}})

		if err := manager.SaveAll(); err != nil {
			t.Fatalf("SaveAll failed: %v", err)
		}
		if store.saves != 1 {
			t.Errorf("Expected 1 save, got %d", store.saves)
		}
		if store.sections["a"]["x"] != 1 || store.sections["b"]["y"] != 2 {
			t.Errorf("Unexpected stored sections: %v", store.sections)
		}
	})

	t.Run("invalid section prevents save", func(t *testing.T) {
		store := newMockStore()
		manager := NewManager(store)
		_ = manager.RegisterSection(&mockSection{id: "a", data: map[string]any{"x": 1}})
		_ = manager.RegisterSection(&mockSection{id: "b", validateErr: errors.New("bad")})

		if err := manager.SaveAll(); err == nil {
			t.Fatal("Expected validation error")
		}
		if store.saves != 0 || len(store.sections) != 0 {
			t.Error("Nothing should be written when a section is invalid")
		}
	})

	t.Run("store save error", func(t *testing.T) {
		store := newMockStore()
		store.saveErr = errors.New("read-only")
		manager := NewManager(store)
		_ = manager.RegisterSection(&mockSection{id: "a"})

		if err := manager.SaveAll(); err == nil {
			t.Error("Expected save error")
		}
	})
}

func TestResetAll(t *testing.T) {
	a := &mockSection{id: "a"}
	b := &mockSection{id: "b"}
	manager := NewManager(newMockStore())
	_ = manager.RegisterSection(a)
	_ = manager.RegisterSection(b)

	manager.ResetAll()

	if a.resets != 1 || b.resets != 1 {
		t.Errorf("Expected one reset each, got %d and %d", a.resets, b.resets)
	}
}
