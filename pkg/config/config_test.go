package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		m, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)

		ids := make([]string, 0, 4)
		for _, s := range m.GetSections() {
			ids = append(ids, s.ID())
		}
		assert.Equal(t, []string{SectionIDLLM, SectionIDBrowser, SectionIDDomains, SectionIDJobs}, ids)
		assert.True(t, m.Browser().Headless)
		assert.Equal(t, DefaultJobTimeout, m.Jobs().Timeout())
	})

	t.Run("applies file values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		body := `{
  "version": "1.0",
  "sections": {
    "llm": {"model": "gpt-4o-mini", "max_retries": 2},
    "browser": {"headless": false, "action_timeout": "15s"},
    "domains": {"allowed": ["example.com"]},
    "jobs": {"job_timeout": 120, "operate_max_steps": 3}
  }
}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0600))

		m, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", m.LLM().Snapshot().Model)
		assert.Equal(t, 2, m.LLM().Snapshot().MaxRetries)
		assert.False(t, m.Browser().SessionOptions().Headless)
		assert.Equal(t, 15000.0, m.Browser().SessionOptions().Timeout)
		assert.Equal(t, 2*time.Minute, m.Jobs().Timeout())
		assert.Equal(t, 3, m.Jobs().MaxSteps())

		f, err := m.Domains().Filter()
		require.NoError(t, err)
		assert.True(t, f.IsAllowed("https://example.com/a"))
		assert.False(t, f.IsAllowed("https://example.org"))
	})

	t.Run("invalid values fail the load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"sections": {"jobs": {"job_timeout": "never"}}}`), 0600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jobs")
	})

	t.Run("save and reload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		m, err := Load(path)
		require.NoError(t, err)

		require.NoError(t, m.Domains().SetData(map[string]any{"allowed": []string{"shop.example"}}))
		require.NoError(t, m.LLM().SetData(map[string]any{"requests_per_second": 2.5}))
		require.NoError(t, m.SaveAll())

		reloaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"shop.example"}, reloaded.Domains().Allowed)
		assert.Equal(t, 2.5, reloaded.LLM().Snapshot().RequestsPerSecond)
		assert.Equal(t, m.Browser().SessionOptions(), reloaded.Browser().SessionOptions())
	})
}

func TestSectionAccessorsFallBack(t *testing.T) {
	var m *Manager
	assert.Equal(t, DefaultMaxRetries, m.LLM().MaxRetries)
	assert.True(t, m.Browser().Headless)
	assert.Empty(t, m.Domains().Allowed)
	assert.Equal(t, DefaultJobTimeout, m.Jobs().Timeout())

	empty := NewManager(newMockStore())
	assert.Equal(t, DefaultJobTimeout, empty.Jobs().Timeout())
}
