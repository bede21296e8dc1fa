package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"click", Action{Type: ActionClick, X: 1, Y: 2}, false},
		{"type without text", Action{Type: ActionTypeText}, true},
		{"type", Action{Type: ActionTypeText, Text: "hi"}, false},
		{"keypress without keys", Action{Type: ActionKeypress}, true},
		{"goto blank url", Action{Type: ActionGoto, URL: "  "}, true},
		{"goto", Action{Type: ActionGoto, URL: "https://example.com"}, false},
		{"negative wait", Action{Type: ActionWait, Ms: -1}, true},
		{"short drag", Action{Type: ActionDrag, Path: []Point{{1, 1}}}, true},
		{"drag", Action{Type: ActionDrag, Path: []Point{{1, 1}, {2, 2}}}, false},
		{"unknown", Action{Type: "teleport"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "click(x=10, y=20)", Action{Type: ActionClick, X: 10, Y: 20}.String())
	assert.Equal(t, "click(x=1, y=2, button=right)", Action{Type: ActionClick, X: 1, Y: 2, Button: "right"}.String())
	assert.Equal(t, `type(text="hello")`, Action{Type: ActionTypeText, Text: "hello"}.String())
	assert.Equal(t, "keypress(keys=CTRL+A)", Action{Type: ActionKeypress, Keys: []string{"CTRL", "A"}}.String())
	assert.Equal(t, "goto(url=https://example.com)", Action{Type: ActionGoto, URL: "https://example.com"}.String())
	assert.Equal(t, "screenshot()", Action{Type: ActionScreenshot}.String())
}

func TestActionTypeNavigates(t *testing.T) {
	assert.True(t, ActionGoto.Navigates())
	assert.True(t, ActionClick.Navigates())
	assert.False(t, ActionWait.Navigates())
	assert.False(t, ActionScreenshot.Navigates())
	assert.True(t, ActionDrag.Known())
	assert.False(t, ActionType("fly").Known())
}

func TestCountRole(t *testing.T) {
	history := []TurnItem{
		UserMessage("task", "img"),
		Reasoning("because"),
		ActionRequest(Action{Type: ActionGoto, URL: "https://example.com"}),
		ActionOutcome(Action{Type: ActionGoto}, true, "ok"),
		UserMessage("continue", ""),
	}
	assert.Equal(t, 2, CountRole(history, RoleUser))
	assert.Equal(t, 3, CountRole(history, RoleAssistant))
}

func TestLastScreenCapture(t *testing.T) {
	var r *AgentResult
	assert.Nil(t, r.LastScreenCapture())

	r = &AgentResult{ScreenCaptures: [][]byte{[]byte("a"), []byte("b")}}
	assert.Equal(t, []byte("b"), r.LastScreenCapture())
}
