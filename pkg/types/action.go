package types

import (
	"fmt"
	"strings"
)

// ActionType is one entry of the fixed browser action vocabulary.
type ActionType string

const (
	ActionClick       ActionType = "click"
	ActionDoubleClick ActionType = "double_click"
	ActionTypeText    ActionType = "type"
	ActionKeypress    ActionType = "keypress"
	ActionScroll      ActionType = "scroll"
	ActionGoto        ActionType = "goto"
	ActionWait        ActionType = "wait"
	ActionMove        ActionType = "move"
	ActionDrag        ActionType = "drag"
	ActionScreenshot  ActionType = "screenshot"
)

// AllActionTypes lists the vocabulary in the order it is declared to the decision service.
var AllActionTypes = []ActionType{
	ActionClick, ActionDoubleClick, ActionTypeText, ActionKeypress, ActionScroll,
	ActionGoto, ActionWait, ActionMove, ActionDrag, ActionScreenshot,
}

// Known reports whether t is part of the vocabulary.
func (t ActionType) Known() bool {
	for _, k := range AllActionTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Navigates reports whether executing t can change the page URL.
func (t ActionType) Navigates() bool {
	switch t {
	case ActionGoto, ActionClick, ActionDoubleClick, ActionKeypress:
		return true
	}
	return false
}

// Point is a viewport coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Action is a requested browser action. It is treated as immutable once issued.
type Action struct {
	Type    ActionType `json:"type"`
	X       int        `json:"x,omitempty"`
	Y       int        `json:"y,omitempty"`
	Button  string     `json:"button,omitempty"`
	Text    string     `json:"text,omitempty"`
	URL     string     `json:"url,omitempty"`
	Keys    []string   `json:"keys,omitempty"`
	ScrollX int        `json:"scroll_x,omitempty"`
	ScrollY int        `json:"scroll_y,omitempty"`
	Path    []Point    `json:"path,omitempty"`
	Ms      int        `json:"ms,omitempty"`

	// CallID is the decision service's identifier for the request, when it has one.
	CallID string `json:"call_id,omitempty"`
}

// Validate checks the type-specific required fields.
func (a Action) Validate() error {
	switch a.Type {
	case ActionClick, ActionDoubleClick, ActionMove, ActionScreenshot, ActionScroll:
		return nil
	case ActionTypeText:
		if a.Text == "" {
			return fmt.Errorf("type action requires text")
		}
	case ActionKeypress:
		if len(a.Keys) == 0 {
			return fmt.Errorf("keypress action requires keys")
		}
	case ActionGoto:
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("goto action requires url")
		}
	case ActionWait:
		if a.Ms < 0 {
			return fmt.Errorf("wait action requires a non-negative duration")
		}
	case ActionDrag:
		if len(a.Path) < 2 {
			return fmt.Errorf("drag action requires at least two path points")
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

// String renders the compact summary used in prompts and logs,
// e.g. click(x=10, y=20).
func (a Action) String() string {
	switch a.Type {
	case ActionClick:
		if a.Button != "" && a.Button != "left" {
			return fmt.Sprintf("click(x=%d, y=%d, button=%s)", a.X, a.Y, a.Button)
		}
		return fmt.Sprintf("click(x=%d, y=%d)", a.X, a.Y)
	case ActionDoubleClick:
		return fmt.Sprintf("double_click(x=%d, y=%d)", a.X, a.Y)
	case ActionMove:
		return fmt.Sprintf("move(x=%d, y=%d)", a.X, a.Y)
	case ActionTypeText:
		return fmt.Sprintf("type(text=%q)", a.Text)
	case ActionKeypress:
		return fmt.Sprintf("keypress(keys=%s)", strings.Join(a.Keys, "+"))
	case ActionScroll:
		return fmt.Sprintf("scroll(x=%d, y=%d, scroll_x=%d, scroll_y=%d)", a.X, a.Y, a.ScrollX, a.ScrollY)
	case ActionGoto:
		return fmt.Sprintf("goto(url=%s)", a.URL)
	case ActionWait:
		return fmt.Sprintf("wait(ms=%d)", a.Ms)
	case ActionDrag:
		return fmt.Sprintf("drag(points=%d)", len(a.Path))
	case ActionScreenshot:
		return "screenshot()"
	default:
		return string(a.Type) + "()"
	}
}
