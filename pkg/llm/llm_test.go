package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/operator/pkg/types"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &ServiceError{StatusCode: http.StatusTooManyRequests}, true},
		{"wrapped 429", fmt.Errorf("call: %w", &ServiceError{StatusCode: 429}), true},
		{"500", &ServiceError{StatusCode: 500}, false},
		{"400", &ServiceError{StatusCode: 400}, false},
		{"transport", errors.New("dial tcp: connection refused"), true},
		{"cancelled", context.Canceled, false},
		{"client timeout", fmt.Errorf("post: %w", context.DeadlineExceeded), true},
		{"protocol", &ProtocolError{Reason: "no choices"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"429", &ServiceError{StatusCode: 429, Body: "slow down"}, CategoryRateLimit},
		{"429 quota", &ServiceError{StatusCode: 429, Body: `{"error":{"code":"insufficient_quota"}}`}, CategoryQuota},
		{"401", &ServiceError{StatusCode: 401, Body: "nope"}, CategoryAuth},
		{"403", &ServiceError{StatusCode: 403}, CategoryAuth},
		{"text rate limit", errors.New("Rate limit reached"), CategoryRateLimit},
		{"text auth", errors.New("Incorrect API key provided"), CategoryAuth},
		{"text quota", errors.New("monthly quota used"), CategoryQuota},
		{"other", &ServiceError{StatusCode: 500, Body: "boom"}, CategoryGeneric},
		{"nil", nil, CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestDescribeMentionsCategory(t *testing.T) {
	assert.Contains(t, Describe(&ServiceError{StatusCode: 429}), "rate limit")
	assert.Contains(t, Describe(&ServiceError{StatusCode: 401}), "authentication")
	assert.Contains(t, Describe(errors.New("quota")), "quota")
	assert.Contains(t, Describe(errors.New("boom")), "boom")
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("click", `{"x": 10, "y": 20}`, "call_1")
	require.NoError(t, err)
	assert.Equal(t, types.Action{Type: types.ActionClick, X: 10, Y: 20, Button: "left", CallID: "call_1"}, a)

	a, err = ParseAction("drag", `{"path": [{"x":1,"y":2},{"x":3,"y":4}]}`, "")
	require.NoError(t, err)
	assert.Equal(t, []types.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, a.Path)

	a, err = ParseAction("screenshot", "", "")
	require.NoError(t, err)
	assert.Equal(t, types.ActionScreenshot, a.Type)

	a, err = ParseAction("goto", `{"url":"https://example.com","type":"click"}`, "")
	require.NoError(t, err)
	assert.Equal(t, types.ActionGoto, a.Type)

	_, err = ParseAction("fly", `{}`, "")
	assert.Error(t, err)
	_, err = ParseAction("goto", `{"url":`, "")
	assert.Error(t, err)
	_, err = ParseAction("type", `{}`, "")
	assert.Error(t, err)
}

func TestParseVerdict(t *testing.T) {
	v, err := ParseVerdict(`{"success": true, "summary": "loaded"}`)
	require.NoError(t, err)
	assert.Equal(t, &types.Verdict{Success: true, Summary: "loaded"}, v)

	_, err = ParseVerdict("nope")
	assert.Error(t, err)
}

func TestToolVocabulary(t *testing.T) {
	tools := DefaultTools()
	require.Len(t, tools, len(types.AllActionTypes)+1)
	for i, at := range types.AllActionTypes {
		assert.Equal(t, string(at), tools[i].Name)
		assert.Equal(t, "object", tools[i].Parameters["type"])
	}
	assert.Equal(t, ReportResultTool, tools[len(tools)-1].Name)

	wait := tools[6]
	require.Equal(t, string(types.ActionWait), wait.Name)
	assert.Contains(t, wait.Description, "0 waits 1000 ms")
}

func TestDecisionHelpers(t *testing.T) {
	d := &Decision{Items: []types.TurnItem{
		types.AssistantMessage("first"),
		types.Reasoning("why"),
		types.ActionRequest(types.Action{Type: types.ActionWait, Ms: 10}),
		types.AssistantMessage("last"),
	}}
	assert.Equal(t, "last", d.LastMessage())
	assert.Len(t, d.Actions(), 1)

	var nilDecision *Decision
	assert.Empty(t, nilDecision.Actions())
	assert.Empty(t, nilDecision.LastMessage())
}
