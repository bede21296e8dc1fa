package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/operator/pkg/artifact"
	"github.com/entrhq/operator/pkg/types"
)

func TestRenderSummary(t *testing.T) {
	t.Run("pass", func(t *testing.T) {
		out := renderSummary(&artifact.Report{
			Task:     "check the heading",
			Duration: 3 * time.Second,
			Result: &types.AgentResult{
				Success:  true,
				Outcome:  types.OutcomePass,
				Message:  "The heading reads Example Domain.",
				Steps:    2,
				FinalURL: "https://example.com/",
			},
		}, "out/run")

		assert.Contains(t, out, "PASS")
		assert.Contains(t, out, "check the heading")
		assert.Contains(t, out, "https://example.com/")
		assert.Contains(t, out, "out/run")
		assert.Contains(t, out, "Example Domain")
	})

	t.Run("error without result", func(t *testing.T) {
		out := renderSummary(&artifact.Report{Task: "t", Error: "browser failed to start"}, "")
		assert.Contains(t, out, "ERROR")
		assert.Contains(t, out, "browser failed to start")
		assert.NotContains(t, out, "Output:")
	})

	t.Run("uncertain", func(t *testing.T) {
		out := renderSummary(&artifact.Report{
			Task:   "t",
			Result: &types.AgentResult{Outcome: types.OutcomeUncertain, Steps: 60},
		}, "")
		assert.Contains(t, out, "UNCERTAIN")
		assert.Contains(t, out, "60")
	})
}
