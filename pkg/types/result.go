package types

// Outcome is the classified verdict of an agent run.
type Outcome string

const (
	OutcomePass      Outcome = "pass"      // OutcomePass means the run reported an explicit success.
	OutcomeFail      Outcome = "fail"      // OutcomeFail means the run reported an explicit failure.
	OutcomeUncertain Outcome = "uncertain" // OutcomeUncertain means no clear verdict could be found.
	OutcomeError     Outcome = "error"     // OutcomeError means the run aborted on a decision service failure.
)

// Verdict is the structured completion signal returned by the decision service.
type Verdict struct {
	Success bool   `json:"success"`
	Summary string `json:"summary"`
}

// AgentResult is the final product of one agent run.
type AgentResult struct {
	// Success is true only for OutcomePass.
	Success bool `json:"success"`

	// Outcome classifies the run.
	Outcome Outcome `json:"outcome"`

	// Message is the final natural-language verdict.
	Message string `json:"message"`

	// TurnHistory is every item exchanged during the run, in order.
	TurnHistory []TurnItem `json:"turn_history"`

	// ScreenCaptures holds one PNG per executed action.
	ScreenCaptures [][]byte `json:"-"`

	// Steps is the number of decision service calls made.
	Steps int `json:"steps"`

	// FinalURL is the page URL observed when the run ended.
	FinalURL string `json:"final_url,omitempty"`
}

// LastScreenCapture returns the most recent capture, or nil.
func (r *AgentResult) LastScreenCapture() []byte {
	if r == nil || len(r.ScreenCaptures) == 0 {
		return nil
	}
	return r.ScreenCaptures[len(r.ScreenCaptures)-1]
}
