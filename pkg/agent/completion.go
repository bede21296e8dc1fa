package agent

import (
	"strings"

	"github.com/entrhq/operator/pkg/llm"
	"github.com/entrhq/operator/pkg/types"
)

const (
	passPrefix      = "Test PASSED. "
	failPrefix      = "Test FAILED. "
	uncertainPrefix = "UNCERTAIN: Test FAILED. Could not determine a clear pass/fail status. Full output: "
)

// IsDone reports whether the run should stop after decision. A run is done
// when the service reported a verdict, when its last message carries a pass
// or fail marker, or when it asked for no actions after at least one prior
// exchange.
func IsDone(decision *llm.Decision, step int) bool {
	if decision == nil {
		return step > 1
	}
	if decision.Verdict != nil {
		return true
	}
	if hasTerminalMarker(decision.LastMessage()) {
		return true
	}
	return len(decision.Actions()) == 0 && step > 1
}

func hasTerminalMarker(text string) bool {
	lower := strings.ToLower(text)
	if lower == "" {
		return false
	}
	for _, line := range strings.Split(lower, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "test passed") || strings.HasPrefix(line, "test failed") {
			return true
		}
	}
	if strings.Contains(lower, " test passed") || strings.Contains(lower, " test failed") {
		return true
	}
	tail := lastRunes(lower, 100)
	return strings.Contains(tail, "passed") || strings.Contains(tail, "failed")
}

// Classify turns the final assistant message, or the structured verdict
// when there is one, into an outcome and a normalized message. Text that
// carries no recognizable verdict is reported as uncertain, never as a pass.
func Classify(lastMessage string, verdict *types.Verdict) (types.Outcome, string) {
	if verdict != nil {
		summary := strings.TrimSpace(verdict.Summary)
		if summary == "" {
			summary = strings.TrimSpace(lastMessage)
		}
		if verdict.Success {
			return types.OutcomePass, withPrefix(passPrefix, summary)
		}
		return types.OutcomeFail, withPrefix(failPrefix, summary)
	}

	text := strings.TrimSpace(lastMessage)
	switch classifyText(text) {
	case types.OutcomePass:
		return types.OutcomePass, withPrefix(passPrefix, text)
	case types.OutcomeFail:
		return types.OutcomeFail, withPrefix(failPrefix, text)
	default:
		return types.OutcomeUncertain, uncertainPrefix + text
	}
}

func classifyText(text string) types.Outcome {
	lower := strings.ToLower(text)

	// an explicit marker at the start of a line wins
	for _, line := range strings.Split(lower, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "test passed") {
			return types.OutcomePass
		}
		if strings.HasPrefix(line, "test failed") {
			return types.OutcomeFail
		}
	}

	tail := lastRunes(lower, 200)
	if strings.Contains(tail, "passed") && !strings.Contains(tail, "not passed") && !strings.Contains(tail, "failed") {
		return types.OutcomePass
	}
	if strings.Contains(tail, "failed") {
		return types.OutcomeFail
	}

	if words := strings.Fields(lower); len(words) > 0 {
		switch strings.TrimRight(words[len(words)-1], ".!") {
		case "pass", "passed":
			return types.OutcomePass
		case "fail", "failed":
			return types.OutcomeFail
		}
	}
	return types.OutcomeUncertain
}

// withPrefix prepends prefix unless text already opens with its marker.
func withPrefix(prefix, text string) string {
	marker := strings.ToLower(strings.TrimSuffix(prefix, ". "))
	if strings.HasPrefix(strings.ToLower(text), marker) {
		return text
	}
	return prefix + text
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// lastAssistantMessage returns the text of the most recent assistant message.
func lastAssistantMessage(history []types.TurnItem) string {
	for i := len(history) - 1; i >= 0; i-- {
		item := history[i]
		if item.Role == types.RoleAssistant && item.Kind == types.KindMessage {
			return item.Text
		}
	}
	return ""
}
