package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/operator/pkg/llm"
	"github.com/entrhq/operator/pkg/types"
)

func TestIsDone(t *testing.T) {
	tests := []struct {
		name     string
		decision *llm.Decision
		step     int
		want     bool
	}{
		{"verdict", &llm.Decision{Verdict: &types.Verdict{Success: true}}, 1, true},
		{"marker line", message("Checked the form.\nTest PASSED: submitted"), 1, true},
		{"inline marker", message("Everything fine, so the test passed"), 1, true},
		{"no actions on first step", message("Looking at the page"), 1, false},
		{"no actions after exchange", message("Looking at the page"), 2, true},
		{"actions pending", actions(click(1, 2)), 3, false},
		{"nil decision first step", nil, 1, false},
		{"nil decision later", nil, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDone(tt.decision, tt.step))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		verdict *types.Verdict
		want    types.Outcome
		prefix  string
	}{
		{"explicit pass line", "Test PASSED. loaded the page.", nil, types.OutcomePass, "Test PASSED. loaded"},
		{"explicit fail line", "Summary:\ntest failed - button missing", nil, types.OutcomeFail, "Test FAILED. Summary:"},
		{"trailing passed", "I checked every field and the check passed", nil, types.OutcomePass, "Test PASSED. I checked"},
		{"not passed is a failure", "The login has not passed, it failed", nil, types.OutcomeFail, "Test FAILED. "},
		{"trailing failed", "Submitting the form failed", nil, types.OutcomeFail, "Test FAILED. "},
		{"no marker", "I looked at the homepage.", nil, types.OutcomeUncertain, "UNCERTAIN: Test FAILED. Could not determine"},
		{"empty", "", nil, types.OutcomeUncertain, "UNCERTAIN:"},
		{"verdict wins over text", "Test PASSED", &types.Verdict{Success: false, Summary: "wrong total"}, types.OutcomeFail, "Test FAILED. wrong total"},
		{"verdict success", "", &types.Verdict{Success: true, Summary: "Test passed, cart shows 2 items"}, types.OutcomePass, "Test passed, cart"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := Classify(tt.message, tt.verdict)
			assert.Equal(t, tt.want, got)
			assert.True(t, strings.HasPrefix(msg, tt.prefix), "message %q", msg)
		})
	}
}

func TestClassifyUsesTrailingSectionOnly(t *testing.T) {
	long := "passed the first screen. " + strings.Repeat("then I looked around some more. ", 10)
	got, _ := Classify(long, nil)
	assert.Equal(t, types.OutcomeUncertain, got)
}

func TestClassifyLastWord(t *testing.T) {
	got, msg := Classify("Overall result: PASS", nil)
	assert.Equal(t, types.OutcomePass, got)
	assert.Equal(t, "Test PASSED. Overall result: PASS", msg)

	got, _ = Classify("Overall result: fail.", nil)
	assert.Equal(t, types.OutcomeFail, got)
}
