package openai

import (
	"strings"

	"github.com/openai/openai-go"

	"github.com/entrhq/operator/pkg/llm"
	"github.com/entrhq/operator/pkg/types"
)

// SystemPrompt frames every conversation.
const SystemPrompt = `You operate a web browser to carry out a task.
Each user turn shows a screenshot of the browser viewport. Reply by calling one or more browser tools:
click, double_click, type, keypress, scroll, goto, wait, move, drag and screenshot.
Coordinates are viewport pixels. Always pass complete URLs with a scheme to goto.
Act without asking for confirmation. Close popups and cookie banners that get in the way.
When the task is finished, call report_result once and end your final message with a line
that starts with "Test PASSED" or "Test FAILED" followed by a short explanation.`

// buildParams converts the normalized conversation into a chat completion request.
func buildParams(model, systemPrompt string, conversation []types.TurnItem, tools []llm.ToolSpec) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertToOpenAIMessages(systemPrompt, conversation),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}
	return params
}

// latestImageIndex is the index of the most recent user item when it carries
// a screenshot, otherwise -1. Older screenshots are never sent.
func latestImageIndex(items []types.TurnItem) int {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Role != types.RoleUser {
			continue
		}
		if items[i].Image != "" {
			return i
		}
		return -1
	}
	return -1
}

// convertToOpenAIMessages folds consecutive assistant items into a single
// assistant message and attaches only the latest screenshot. Action results
// are replayed as user text so the model reads them as observations.
func convertToOpenAIMessages(systemPrompt string, items []types.TurnItem) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(items)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}

	imageAt := latestImageIndex(items)
	var assistant []string
	flush := func() {
		if len(assistant) > 0 {
			out = append(out, openai.AssistantMessage(strings.Join(assistant, "\n")))
			assistant = nil
		}
	}

	for i, item := range items {
		if item.Role == types.RoleUser {
			flush()
			if i == imageAt {
				out = append(out, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
					openai.TextContentPart(item.Text),
					openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL: "data:image/png;base64," + item.Image,
					}),
				}))
				continue
			}
			out = append(out, openai.UserMessage(item.Text))
			continue
		}
		if item.Kind == types.KindActionResult {
			flush()
			out = append(out, openai.UserMessage(resultText(item)))
			continue
		}
		if line := assistantLine(item); line != "" {
			assistant = append(assistant, line)
		}
	}
	flush()
	return out
}

// assistantLine renders an assistant item as replayed text.
func assistantLine(item types.TurnItem) string {
	switch item.Kind {
	case types.KindMessage:
		return item.Text
	case types.KindReasoning:
		return "Reasoning: " + item.Text
	case types.KindAction:
		if item.Action != nil {
			return "Action: " + item.Action.String()
		}
	}
	return ""
}

// resultText renders the outcome of an executed action.
func resultText(item types.TurnItem) string {
	status := "ok"
	if !item.Success {
		status = "failed"
	}
	if item.Text != "" {
		return "Result (" + status + "): " + item.Text
	}
	return "Result: " + status
}

func convertTools(tools []llm.ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		def := openai.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: openai.FunctionParameters(t.Parameters),
		}
		if t.Description != "" {
			def.Description = openai.String(t.Description)
		}
		out = append(out, openai.ChatCompletionToolParam{Function: def})
	}
	return out
}
