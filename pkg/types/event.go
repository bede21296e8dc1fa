package types

import "time"

// EventType defines the type of progress event emitted by the agent loop.
type EventType string

const (
	EventRunStart      EventType = "run_start"      // EventRunStart is emitted once before the first decision.
	EventDecision      EventType = "decision"       // EventDecision is emitted after each decision service call.
	EventAction        EventType = "action"         // EventAction is emitted after each executed action.
	EventActionBlocked EventType = "action_blocked" // EventActionBlocked is emitted when a navigation target is rejected.
	EventRedirect      EventType = "redirect"       // EventRedirect is emitted when the loop forces the browser back into the allow-list.
	EventStuck         EventType = "stuck"          // EventStuck is emitted when repeated clicks are detected.
	EventRunEnd        EventType = "run_end"        // EventRunEnd is emitted once with the classified outcome.
	EventError         EventType = "error"          // EventError is emitted when a decision or action fails.
)

// Event is a progress notification from a running agent loop.
type Event struct {
	Type      EventType `json:"type"`
	Step      int       `json:"step"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHandler receives events synchronously on the loop goroutine.
type EventHandler func(Event)
