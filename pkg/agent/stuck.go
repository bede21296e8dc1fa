package agent

import (
	"fmt"
	"strings"

	"github.com/entrhq/operator/pkg/types"
)

// StuckReport describes a click the model keeps repeating.
type StuckReport struct {
	At    types.Point
	Count int
}

// DetectStuck looks at the trailing window of actions for a click at the
// same coordinate issued more than twice. Only the first offending
// coordinate, in order of first appearance, is reported.
func DetectStuck(actions []types.Action, window int) (StuckReport, bool) {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(actions) > window {
		actions = actions[len(actions)-window:]
	}

	counts := make(map[types.Point]int)
	var order []types.Point
	for _, a := range actions {
		if a.Type != types.ActionClick {
			continue
		}
		p := types.Point{X: a.X, Y: a.Y}
		if counts[p] == 0 {
			order = append(order, p)
		}
		counts[p]++
	}
	for _, p := range order {
		if counts[p] > 2 {
			return StuckReport{At: p, Count: counts[p]}, true
		}
	}
	return StuckReport{}, false
}

// stuckDirective is injected into the continuation prompt when the model
// is repeating itself.
func stuckDirective(r StuckReport, currentURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ STUCK DETECTION: You're repeating the same click at (%d, %d) (%d times).\n\n", r.At.X, r.At.Y, r.Count)
	b.WriteString("TRY THESE ALTERNATIVE APPROACHES:\n")
	b.WriteString(`1. Use "goto" with a FULL URL, e.g. {"type": "goto", "url": "https://example.com"}` + "\n")
	b.WriteString("2. Click at a completely different location\n")
	b.WriteString("3. Try a different action type (type, scroll, keypress)\n")

	lower := strings.ToLower(currentURL)
	switch {
	case strings.Contains(lower, "search"):
		b.WriteString("\nSPECIFIC SUGGESTION: Click on a specific result listing, not the same spot.\n")
	case strings.Contains(lower, "google."):
		b.WriteString("\nSPECIFIC SUGGESTION: Use goto directly with the destination URL.\n")
	}
	return b.String()
}
