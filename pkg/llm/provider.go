// Package llm defines the decision service contract used by the agent loop.
//
// A Decider receives the normalized conversation and the declared tools and
// returns the next items to act on. Provider-specific request and reply
// shapes never cross this boundary:
//
//	decider, err := openai.NewClient("", openai.WithModel("gpt-4o"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	decision, err := decider.Decide(ctx, history, llm.DefaultTools())
package llm

import (
	"context"

	"github.com/entrhq/operator/pkg/types"
)

// Decider asks the decision service what to do next.
type Decider interface {
	// Decide sends the conversation and returns the reply normalized into
	// message, reasoning and action items. Only the most recent user turn
	// may carry its screenshot to the service.
	//
	// Errors are classified with Classify. Implementations retry transient
	// failures themselves.
	Decide(ctx context.Context, conversation []types.TurnItem, tools []ToolSpec) (*Decision, error)
}

// Decision is one normalized decision service reply.
type Decision struct {
	// Items holds message, reasoning and action items in reply order.
	Items []types.TurnItem

	// Verdict is set when the service called the report_result tool.
	Verdict *types.Verdict
}

// Actions returns the action items of the decision.
func (d *Decision) Actions() []types.Action {
	if d == nil {
		return nil
	}
	var out []types.Action
	for _, item := range d.Items {
		if item.Kind == types.KindAction && item.Action != nil {
			out = append(out, *item.Action)
		}
	}
	return out
}

// LastMessage returns the text of the last message item, or "".
func (d *Decision) LastMessage() string {
	if d == nil {
		return ""
	}
	for i := len(d.Items) - 1; i >= 0; i-- {
		if d.Items[i].Kind == types.KindMessage {
			return d.Items[i].Text
		}
	}
	return ""
}

// ModelInfo describes the model behind a Decider.
type ModelInfo struct {
	Provider  string
	Name      string
	BaseURL   string
	MaxTokens int
}

// Describer is implemented by deciders that can report their model.
type Describer interface {
	ModelInfo() ModelInfo
}
