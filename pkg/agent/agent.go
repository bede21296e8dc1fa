// Package agent runs the decide, act, observe loop that turns a natural
// language task into browser actions.
//
// Each step sends the conversation to a llm.Decider, executes the returned
// actions one at a time on a browser.Driver, screenshots the result and
// asks again with a continuation prompt. Navigation is kept inside the
// domain.Filter allow-list. The run ends when the decision service reports
// a verdict, stops requesting actions, or the step budget is spent.
//
// The agent borrows its driver; opening and closing the browser is the
// caller's job.
package agent

import (
	"github.com/entrhq/operator/pkg/llm"
	"github.com/entrhq/operator/pkg/logging"
	"github.com/entrhq/operator/pkg/security/domain"
	"github.com/entrhq/operator/pkg/tools/browser"
	"github.com/entrhq/operator/pkg/types"
)

const (
	// DefaultMaxSteps bounds a full run.
	DefaultMaxSteps = 60
	// ReactiveMaxSteps bounds a single reactive batch issued by a caller.
	ReactiveMaxSteps = 10
	// DefaultHistoryWindow is how many recent actions the continuation
	// prompt and stuck detection look at.
	DefaultHistoryWindow = 10
	// DefaultStartURL is the neutral page a run starts from.
	DefaultStartURL = "about:blank"
)

// State is the loop phase, reported in logs.
type State string

const (
	StateAwaitingDecision     State = "AWAITING_DECISION"
	StateExecutingActions     State = "EXECUTING_ACTIONS"
	StateEvaluatingCompletion State = "EVALUATING_COMPLETION"
	StateDone                 State = "DONE"
)

// Agent drives one browser page with a decision service. An Agent holds no
// per-run state and may be reused for sequential runs on the same driver.
type Agent struct {
	decider       llm.Decider
	driver        browser.Driver
	filter        *domain.Filter
	tools         []llm.ToolSpec
	maxSteps      int
	startURL      string
	startFromTask bool
	stayOnPage    bool
	historyWindow int
	logger        *logging.Logger
	observer      types.EventHandler
}

// Option is a function that configures an agent
type Option func(*Agent)

// WithFilter confines navigation with the given filter.
func WithFilter(f *domain.Filter) Option {
	return func(a *Agent) {
		a.filter = f
	}
}

// WithMaxSteps caps the number of decision service calls.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithStartURL sets the page loaded before the first decision.
func WithStartURL(u string) Option {
	return func(a *Agent) {
		if u != "" {
			a.startURL = u
		}
	}
}

// WithCurrentPage starts the run on whatever page the driver already shows
// instead of loading the start URL. The start URL is still the fallback
// target of a correction.
func WithCurrentPage() Option {
	return func(a *Agent) {
		a.stayOnPage = true
	}
}

// WithStartFromTask navigates to a URL mentioned in the task, when one is
// found and the filter permits it, before the first screenshot.
func WithStartFromTask(enabled bool) Option {
	return func(a *Agent) {
		a.startFromTask = enabled
	}
}

// WithHistoryWindow sets how many recent actions are summarized.
func WithHistoryWindow(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.historyWindow = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithObserver receives progress events on the loop goroutine.
func WithObserver(h types.EventHandler) Option {
	return func(a *Agent) {
		a.observer = h
	}
}

// WithTools replaces the tools declared to the decision service.
func WithTools(tools []llm.ToolSpec) Option {
	return func(a *Agent) {
		if len(tools) > 0 {
			a.tools = tools
		}
	}
}

// New creates an agent. Without WithFilter navigation is unconfined and
// only the default block-list applies.
func New(decider llm.Decider, driver browser.Driver, opts ...Option) *Agent {
	a := &Agent{
		decider:       decider,
		driver:        driver,
		filter:        &domain.Filter{Blocked: domain.MustDomainList(domain.DefaultBlocked...)},
		tools:         llm.DefaultTools(),
		maxSteps:      DefaultMaxSteps,
		startURL:      DefaultStartURL,
		historyWindow: DefaultHistoryWindow,
		logger:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaxSteps returns the configured step budget.
func (a *Agent) MaxSteps() int {
	return a.maxSteps
}
