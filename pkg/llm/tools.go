package llm

import (
	"encoding/json"
	"fmt"

	"github.com/entrhq/operator/pkg/types"
)

// ReportResultTool is the name of the structured completion tool.
const ReportResultTool = "report_result"

// ToolSpec declares one callable tool with a JSON-schema parameter contract.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func object(props map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

var (
	intProp  = map[string]any{"type": "integer"}
	coordXY  = map[string]any{"x": intProp, "y": intProp}
	pointObj = object(coordXY, "x", "y")
)

// ActionTools returns the fixed browser action vocabulary.
func ActionTools() []ToolSpec {
	return []ToolSpec{
		{
			Name:        string(types.ActionClick),
			Description: "Click at a viewport coordinate.",
			Parameters: object(map[string]any{
				"x": intProp,
				"y": intProp,
				"button": map[string]any{
					"type": "string",
					"enum": []string{"left", "right", "middle", "back", "forward", "wheel"},
				},
			}, "x", "y"),
		},
		{
			Name:        string(types.ActionDoubleClick),
			Description: "Double-click at a viewport coordinate.",
			Parameters:  object(coordXY, "x", "y"),
		},
		{
			Name:        string(types.ActionTypeText),
			Description: "Type text into the focused element.",
			Parameters:  object(map[string]any{"text": map[string]any{"type": "string"}}, "text"),
		},
		{
			Name:        string(types.ActionKeypress),
			Description: "Press a key combination, e.g. [\"CTRL\", \"A\"] or [\"ENTER\"].",
			Parameters: object(map[string]any{
				"keys": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			}, "keys"),
		},
		{
			Name:        string(types.ActionScroll),
			Description: "Scroll by scroll_x/scroll_y pixels with the mouse at x,y.",
			Parameters: object(map[string]any{
				"x": intProp, "y": intProp, "scroll_x": intProp, "scroll_y": intProp,
			}, "x", "y", "scroll_x", "scroll_y"),
		},
		{
			Name:        string(types.ActionGoto),
			Description: "Navigate to a full URL including the scheme.",
			Parameters:  object(map[string]any{"url": map[string]any{"type": "string"}}, "url"),
		},
		{
			Name:        string(types.ActionWait),
			Description: "Wait ms milliseconds for the page to settle. 0 waits 1000 ms.",
			Parameters:  object(map[string]any{"ms": intProp}, "ms"),
		},
		{
			Name:        string(types.ActionMove),
			Description: "Move the mouse to a viewport coordinate.",
			Parameters:  object(coordXY, "x", "y"),
		},
		{
			Name:        string(types.ActionDrag),
			Description: "Drag the mouse along a path of points.",
			Parameters: object(map[string]any{
				"path": map[string]any{"type": "array", "items": pointObj},
			}, "path"),
		},
		{
			Name:        string(types.ActionScreenshot),
			Description: "Capture the current screen without acting.",
			Parameters:  object(map[string]any{}),
		},
	}
}

// ReportResultSpec returns the tool the service calls to end a run with an
// explicit verdict.
func ReportResultSpec() ToolSpec {
	return ToolSpec{
		Name:        ReportResultTool,
		Description: "Finish the task and report whether it passed. Call this once, after the last action.",
		Parameters: object(map[string]any{
			"success": map[string]any{"type": "boolean"},
			"summary": map[string]any{"type": "string"},
		}, "success", "summary"),
	}
}

// DefaultTools is the action vocabulary plus report_result.
func DefaultTools() []ToolSpec {
	return append(ActionTools(), ReportResultSpec())
}

// ParseAction decodes a tool call of the action vocabulary.
func ParseAction(name, arguments, callID string) (types.Action, error) {
	t := types.ActionType(name)
	if !t.Known() {
		return types.Action{}, fmt.Errorf("unknown action %q", name)
	}

	a := types.Action{Type: t, CallID: callID}
	if arguments != "" && arguments != "{}" {
		if err := json.Unmarshal([]byte(arguments), &a); err != nil {
			return types.Action{}, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		// The arguments cannot override the tool name.
		a.Type = t
		a.CallID = callID
	}
	if t == types.ActionClick && a.Button == "" {
		a.Button = "left"
	}
	if err := a.Validate(); err != nil {
		return types.Action{}, err
	}
	return a, nil
}

// ParseVerdict decodes a report_result call.
func ParseVerdict(arguments string) (*types.Verdict, error) {
	var v types.Verdict
	if err := json.Unmarshal([]byte(arguments), &v); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", ReportResultTool, err)
	}
	return &v, nil
}
