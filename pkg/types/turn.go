package types

// Role identifies which side of the exchange produced a turn item.
type Role string

const (
	RoleUser      Role = "user"      // RoleUser marks items sent to the decision service.
	RoleAssistant Role = "assistant" // RoleAssistant marks items produced by the decision service or the loop acting on its behalf.
)

// Kind identifies what a turn item carries.
type Kind string

const (
	KindMessage      Kind = "message"       // KindMessage is free text.
	KindReasoning    Kind = "reasoning"     // KindReasoning is a justification attached to upcoming actions.
	KindAction       Kind = "action"        // KindAction is a requested browser action.
	KindActionResult Kind = "action_result" // KindActionResult records the outcome of executing an action.
)

// TurnItem is one element of the agent/decision-service exchange.
// Items are appended in strict chronological order and replayed as context.
type TurnItem struct {
	// Role is the producer of the item.
	Role Role `json:"role"`

	// Kind selects which of the remaining fields are meaningful.
	Kind Kind `json:"kind"`

	// Text is the content of message, reasoning and action_result items.
	Text string `json:"text,omitempty"`

	// Action is set for action and action_result items.
	Action *Action `json:"action,omitempty"`

	// Success reports whether an action_result item describes a successful execution.
	Success bool `json:"success,omitempty"`

	// Image is a base64 PNG screenshot. Only user turns carry one and it is
	// never serialized into histories.
	Image string `json:"-"`
}

// UserMessage builds a user message item with an optional screenshot.
func UserMessage(text, image string) TurnItem {
	return TurnItem{Role: RoleUser, Kind: KindMessage, Text: text, Image: image}
}

// AssistantMessage builds an assistant message item.
func AssistantMessage(text string) TurnItem {
	return TurnItem{Role: RoleAssistant, Kind: KindMessage, Text: text}
}

// Reasoning builds an assistant reasoning item.
func Reasoning(text string) TurnItem {
	return TurnItem{Role: RoleAssistant, Kind: KindReasoning, Text: text}
}

// ActionRequest builds an assistant action item.
func ActionRequest(a Action) TurnItem {
	return TurnItem{Role: RoleAssistant, Kind: KindAction, Action: &a}
}

// ActionOutcome builds the action_result item recorded after executing a.
func ActionOutcome(a Action, success bool, text string) TurnItem {
	return TurnItem{Role: RoleAssistant, Kind: KindActionResult, Action: &a, Success: success, Text: text}
}

// CountRole returns how many items in history were produced by role.
func CountRole(history []TurnItem, role Role) int {
	n := 0
	for _, item := range history {
		if item.Role == role {
			n++
		}
	}
	return n
}
