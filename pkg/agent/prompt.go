package agent

import (
	"fmt"
	"strings"

	"github.com/entrhq/operator/pkg/tools/browser"
	"github.com/entrhq/operator/pkg/types"
)

// AutoReply answers a short clarifying question so an unattended run keeps going.
const AutoReply = "Yes, please continue with the task. Close any popups or dialogs, and proceed with the test instructions."

var actionReasoning = map[types.ActionType]string{
	types.ActionClick:       "Clicking on an element to interact with the page interface. This helps navigate through the content to find the requested information.",
	types.ActionDoubleClick: "Double-clicking on an element to open or expand content that may contain relevant information.",
	types.ActionTypeText:    "Typing text to provide input needed for this step. This text narrows down the page to the specific information requested.",
	types.ActionKeypress:    "Pressing keys to submit or control the current input. This executes the step and retrieves the resulting page.",
	types.ActionScroll:      "Scrolling the page to view additional content that might contain the requested information.",
	types.ActionGoto:        "Navigating to a website to find information about the requested topic.",
	types.ActionWait:        "Waiting for the page to respond so all content is displayed before proceeding.",
	types.ActionMove:        "Moving the cursor to prepare for the next interaction.",
	types.ActionDrag:        "Adjusting the view or interacting with content by dragging.",
	types.ActionScreenshot:  "Capturing a screenshot to record the visual information displayed.",
}

// ActionReasoning returns the templated justification recorded for an
// action that arrived without reasoning of its own.
func ActionReasoning(a types.Action) string {
	base, ok := actionReasoning[a.Type]
	if !ok {
		base = fmt.Sprintf("Performing %s action to find the requested information.", a.Type)
	}

	switch a.Type {
	case types.ActionClick:
		return fmt.Sprintf("Clicking at position (%d, %d) - %s", a.X, a.Y, base)
	case types.ActionTypeText:
		text := a.Text
		if r := []rune(text); len(r) > 30 {
			text = string(r[:30]) + "..."
		}
		return fmt.Sprintf("Typing '%s' - %s", text, base)
	case types.ActionKeypress:
		return fmt.Sprintf("Pressing keys: %s - %s", strings.Join(a.Keys, ", "), base)
	case types.ActionScroll:
		direction := "down"
		if a.ScrollY < 0 {
			direction = "up"
		}
		return fmt.Sprintf("Scrolling %s - %s", direction, base)
	case types.ActionGoto:
		return fmt.Sprintf("Navigating to %s - %s", a.URL, base)
	case types.ActionWait:
		return "Waiting - " + base
	}
	return base
}

// isShortQuestion reports whether the model paused to ask something.
func isShortQuestion(text string) bool {
	return strings.Contains(text, "?") && len(text) < 250
}

type continuation struct {
	task       string
	summaries  []string
	currentURL string
	page       *browser.PageContext
	stuck      *StuckReport
	autoReply  bool
}

// String renders the continuation user turn.
func (c continuation) String() string {
	var b strings.Builder
	if c.autoReply {
		b.WriteString(AutoReply)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "CONTINUE THE TASK: %s\n\n", c.task)

	b.WriteString("RECENT ACTIONS:\n")
	if len(c.summaries) == 0 {
		b.WriteString("None yet\n")
	}
	for _, s := range c.summaries {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if c.page != nil {
		b.WriteString(c.page.String())
	} else {
		fmt.Fprintf(&b, "CURRENT PAGE:\n• URL: %s\n", c.currentURL)
	}
	b.WriteByte('\n')

	if c.stuck != nil {
		b.WriteString(stuckDirective(*c.stuck, c.currentURL))
		b.WriteByte('\n')
	}

	b.WriteString(`INSTRUCTIONS:
1. Take the IMMEDIATE NEXT ACTION (goto, click, type, scroll)
2. Use goto with FULL URLs (https://site.com) for navigation
3. If your current strategy isn't working, try something completely different
4. When the task is finished, call report_result or answer with "Test PASSED" or "Test FAILED" and a short reason

EXECUTE THE NEXT ACTION NOW:
`)
	return b.String()
}
