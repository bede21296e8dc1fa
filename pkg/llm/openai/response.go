package openai

import (
	"fmt"
	"strings"

	"github.com/entrhq/operator/pkg/llm"
	"github.com/entrhq/operator/pkg/llm/parser"
	"github.com/entrhq/operator/pkg/logging"
	"github.com/entrhq/operator/pkg/types"
)

// normalize turns a completion into reasoning, message and action items.
func normalize(c *completion, logger *logging.Logger) (*llm.Decision, error) {
	if len(c.chat.Choices) == 0 {
		return nil, &llm.ProtocolError{Reason: "no choices in reply"}
	}
	msg := c.chat.Choices[0].Message
	decision := &llm.Decision{}

	inlineReasoning, text := parser.Split(msg.Content)
	var reasoning []string
	for _, r := range []string{strings.TrimSpace(c.reasoning), inlineReasoning} {
		if r != "" {
			reasoning = append(reasoning, r)
		}
	}
	if len(reasoning) > 0 {
		decision.Items = append(decision.Items, types.Reasoning(strings.Join(reasoning, "\n")))
	}
	if text != "" {
		decision.Items = append(decision.Items, types.AssistantMessage(text))
	}
	if msg.Refusal != "" {
		decision.Items = append(decision.Items, types.AssistantMessage("Refused: "+msg.Refusal))
	}

	for _, call := range msg.ToolCalls {
		name := call.Function.Name
		if name == llm.ReportResultTool {
			v, err := llm.ParseVerdict(call.Function.Arguments)
			if err != nil {
				logger.Warnf("ignoring report_result call: %v", err)
				continue
			}
			decision.Verdict = v
			continue
		}
		if !types.ActionType(name).Known() {
			logger.Warnf("dropping call to unknown tool %q", name)
			continue
		}
		action, err := llm.ParseAction(name, call.Function.Arguments, call.ID)
		if err != nil {
			logger.Warnf("malformed %s call: %v", name, err)
			decision.Items = append(decision.Items, types.AssistantMessage(fmt.Sprintf("Ignored malformed %s call: %v", name, err)))
			continue
		}
		decision.Items = append(decision.Items, types.ActionRequest(action))
	}
	return decision, nil
}
