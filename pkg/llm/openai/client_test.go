package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/operator/pkg/llm"
	"github.com/entrhq/operator/pkg/llm/retry"
	"github.com/entrhq/operator/pkg/types"
)

const toolCallReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "<thinking>the page is blank</thinking>Opening the site.",
      "tool_calls": [
        {"id": "call_1", "type": "function", "function": {"name": "goto", "arguments": "{\"url\":\"https://example.com\"}"}},
        {"id": "call_2", "type": "function", "function": {"name": "teleport", "arguments": "{}"}},
        {"id": "call_3", "type": "function", "function": {"name": "click", "arguments": "{\"x\":"}},
        {"id": "call_4", "type": "function", "function": {"name": "report_result", "arguments": "{\"success\":true,\"summary\":\"done\"}"}}
      ]
    }
  }]
}`

func textReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "gpt-4o",
		"choices": []any{map[string]any{
			"index": 0, "finish_reason": "stop",
			"message": map[string]any{"role": "assistant", "content": content, "reasoning_content": "thought about it"},
		}},
	})
	return string(b)
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func newTestClient(t *testing.T, url string, opts ...ClientOption) *Client {
	t.Helper()
	opts = append([]ClientOption{WithBaseURL(url), WithRetryPolicy(fastRetry())}, opts...)
	c, err := NewClient("test-key", opts...)
	require.NoError(t, err)
	return c
}

func conversation() []types.TurnItem {
	return []types.TurnItem{
		types.UserMessage("navigate to https://example.com", "FIRSTIMAGE"),
		types.Reasoning("go there"),
		types.ActionRequest(types.Action{Type: types.ActionGoto, URL: "https://example.com"}),
		types.ActionOutcome(types.Action{Type: types.ActionGoto}, true, "navigated"),
		types.UserMessage("continue", "LATESTIMAGE"),
	}
}

func TestDecideNormalizesToolCalls(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))
		_, _ = io.WriteString(w, toolCallReply)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	d, err := c.Decide(context.Background(), conversation(), llm.DefaultTools())
	require.NoError(t, err)

	require.Len(t, d.Items, 4)
	assert.Equal(t, types.Reasoning("the page is blank"), d.Items[0])
	assert.Equal(t, types.AssistantMessage("Opening the site."), d.Items[1])
	require.Equal(t, types.KindAction, d.Items[2].Kind)
	assert.Equal(t, "https://example.com", d.Items[2].Action.URL)
	assert.Equal(t, "call_1", d.Items[2].Action.CallID)
	assert.Equal(t, types.KindMessage, d.Items[3].Kind)
	assert.Contains(t, d.Items[3].Text, "malformed click")
	assert.Equal(t, &types.Verdict{Success: true, Summary: "done"}, d.Verdict)

	// Request shape: system prompt, the first user turn as plain text, the
	// assistant items folded together, the action result as user text, and
	// only the latest screenshot attached.
	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 5)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

	first := msgs[1].(map[string]any)
	assert.Equal(t, "navigate to https://example.com", first["content"])

	folded := msgs[2].(map[string]any)
	assert.Equal(t, "assistant", folded["role"])
	assert.Contains(t, folded["content"], "Action: goto(url=https://example.com)")
	assert.NotContains(t, folded["content"], "Result")

	outcome := msgs[3].(map[string]any)
	assert.Equal(t, "user", outcome["role"])
	assert.Equal(t, "Result (ok): navigated", outcome["content"])

	last := msgs[4].(map[string]any)
	parts := last["content"].([]any)
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	assert.Equal(t, "data:image/png;base64,LATESTIMAGE", img["image_url"].(map[string]any)["url"])

	assert.Len(t, captured["tools"].([]any), len(llm.DefaultTools()))
}

func TestDecideReasoningContentAndText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, textReply("Test PASSED. loaded the page."))
	}))
	defer srv.Close()

	d, err := newTestClient(t, srv.URL).Decide(context.Background(), conversation(), nil)
	require.NoError(t, err)
	assert.Equal(t, []types.TurnItem{
		types.Reasoning("thought about it"),
		types.AssistantMessage("Test PASSED. loaded the page."),
	}, d.Items)
	assert.Nil(t, d.Verdict)
	assert.Empty(t, d.Actions())
}

func TestDecideRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, "slow down")
			return
		}
		_, _ = io.WriteString(w, textReply("ok"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Decide(context.Background(), conversation(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDecideGivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "rate limit reached")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Decide(context.Background(), conversation(), nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, llm.CategoryRateLimit, llm.Classify(err))
}

func TestDecideFailsFastOnOtherStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid key"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Decide(context.Background(), conversation(), nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var se *llm.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "invalid key")
	assert.Equal(t, llm.CategoryAuth, llm.Classify(err))
}

func TestDecideRetriesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	var retries atomic.Int32
	p := fastRetry()
	p.OnRetry = func(int, error, time.Duration) { retries.Add(1) }

	_, err := newTestClient(t, url, WithRetryPolicy(p)).Decide(context.Background(), conversation(), nil)
	require.Error(t, err)
	assert.Equal(t, int32(2), retries.Load())
}

func TestDecideRetriesClientTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
			return
		}
		_, _ = io.WriteString(w, textReply("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))
	d, err := c.Decide(context.Background(), conversation(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, types.AssistantMessage("ok"), d.Items[1])
}

func TestDecideStopsWhenCallerDeadlinePasses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, srv.URL).Decide(ctx, conversation(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestActionResultsReplayAsUserText(t *testing.T) {
	click := types.Action{Type: types.ActionClick, X: 1, Y: 2}
	items := []types.TurnItem{
		types.UserMessage("open the menu", ""),
		types.ActionRequest(click),
		types.ActionOutcome(click, false, "Error: boom"),
		types.UserMessage("continue", ""),
	}

	var got []map[string]any
	for _, m := range convertToOpenAIMessages("", items) {
		raw, err := json.Marshal(m)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		got = append(got, decoded)
	}

	require.Len(t, got, 4)
	assert.Equal(t, "assistant", got[1]["role"])
	assert.Equal(t, "Action: click(x=1, y=2)", got[1]["content"])
	assert.Equal(t, "user", got[2]["role"])
	assert.Equal(t, "Result (failed): Error: boom", got[2]["content"])
	assert.Equal(t, "user", got[3]["role"])
}

func TestDecideRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Decide(context.Background(), conversation(), nil)
	var pe *llm.ProtocolError
	assert.True(t, errors.As(err, &pe))
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient("")
	assert.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_BASE_URL", "http://local:8080/v1/")
	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", c.apiKey)
	assert.Equal(t, "http://local:8080/v1", c.ModelInfo().BaseURL)
	assert.Equal(t, DefaultModel, c.ModelInfo().Name)
}

func TestLatestImageIndex(t *testing.T) {
	items := conversation()
	assert.Equal(t, 4, latestImageIndex(items))

	items[4].Image = ""
	assert.Equal(t, -1, latestImageIndex(items))
	assert.Equal(t, -1, latestImageIndex(nil))
}
