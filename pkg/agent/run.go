package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/operator/pkg/llm"
	"github.com/entrhq/operator/pkg/logging"
	"github.com/entrhq/operator/pkg/tools/browser"
	"github.com/entrhq/operator/pkg/types"
)

// run is the mutable state of one Run call.
type run struct {
	a      *Agent
	task   string
	log    *logging.Logger
	state  State
	step   int
	result *types.AgentResult

	history   []types.TurnItem
	actions   []types.Action
	summaries []string

	// set when the most recent batch stopped on a driver error
	batchFailed bool
	verdict     *types.Verdict
}

// Run executes task until completion, the step budget, or ctx ending.
//
// Decision service and browser failures are reported inside the result.
// A non-nil error is returned when ctx is cancelled or times out, with the
// partial result alongside it, or when the agent was built without a
// decider or driver.
func (a *Agent) Run(ctx context.Context, task string) (*types.AgentResult, error) {
	if a.decider == nil || a.driver == nil {
		return nil, errors.New("agent requires a decider and a driver")
	}
	r := &run{
		a:      a,
		task:   task,
		log:    a.logger,
		result: &types.AgentResult{},
	}
	r.emit(types.EventRunStart, fmt.Sprintf("task: %s", task))
	r.log.Infof("run started (max steps %d): %s", a.maxSteps, task)

	err := r.loop(ctx)
	r.finish(ctx)
	if err != nil {
		return r.result, err
	}
	return r.result, nil
}

func (r *run) setState(s State) {
	if r.state != s {
		r.log.Debugf("step %d: %s -> %s", r.step, r.state, s)
		r.state = s
	}
}

func (r *run) emit(t types.EventType, msg string) {
	if r.a.observer == nil {
		return
	}
	r.a.observer(types.Event{Type: t, Step: r.step, Message: msg, Timestamp: time.Now()})
}

func (r *run) loop(ctx context.Context) error {
	shot, err := r.start(ctx)
	if err != nil {
		return err
	}
	r.history = append(r.history, types.UserMessage(r.task, shot))

	for r.step < r.a.maxSteps {
		r.step++
		r.setState(StateAwaitingDecision)

		decision, err := r.a.decider.Decide(ctx, r.history, r.a.tools)
		r.result.Steps = r.step
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.decisionFailed(err)
			return nil
		}
		if decision == nil {
			decision = &llm.Decision{}
		}
		r.emit(types.EventDecision, fmt.Sprintf("%d items, %d actions", len(decision.Items), len(decision.Actions())))
		if decision.Verdict != nil {
			r.verdict = decision.Verdict
		}

		r.setState(StateExecutingActions)
		if err := r.apply(ctx, decision); err != nil {
			return err
		}

		r.setState(StateEvaluatingCompletion)
		if IsDone(decision, r.step) {
			r.log.Infof("step %d: completion detected", r.step)
			return nil
		}
		if r.step >= r.a.maxSteps {
			r.log.Warnf("step budget of %d exhausted", r.a.maxSteps)
			return nil
		}

		prompt, shot, err := r.observe(ctx, decision)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// the page is gone; nothing more can be decided from it
			r.log.Errorf("re-observation failed: %v", err)
			r.batchFailed = true
			return nil
		}
		r.history = append(r.history, types.UserMessage(prompt, shot))
	}
	return nil
}

// start loads the start page unless the run continues on the current page,
// then optionally the page named in the task, and takes the first
// screenshot. The screenshot is not a screen capture.
func (r *run) start(ctx context.Context) (string, error) {
	if !r.a.stayOnPage {
		if err := r.a.driver.Goto(ctx, r.a.startURL); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			r.log.Warnf("failed to load start page %s: %v", r.a.startURL, err)
		}
	}

	if r.a.startFromTask {
		if u := ExtractURL(r.task); u != "" {
			if r.rejects(u) {
				r.log.Warnf("task URL %s is outside the permitted domains, not opening it", u)
			} else if err := r.a.driver.Goto(ctx, u); err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				r.log.Warnf("failed to open task URL %s: %v", u, err)
			} else {
				r.log.Infof("opened task URL %s", u)
			}
		}
	}

	shot, err := r.a.driver.Screenshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.log.Warnf("initial screenshot failed: %v", err)
		return "", nil
	}
	return shot, nil
}

// rejects reports whether a navigation target must not be dispatched.
func (r *run) rejects(u string) bool {
	f := r.a.filter
	return f.IsBlocked(u) || (f.Confined() && !f.IsAllowed(u))
}

func (r *run) decisionFailed(err error) {
	msg := llm.Describe(err)
	r.log.Errorf("decision failed at step %d (%s): %v", r.step, llm.Classify(err), err)
	r.emit(types.EventError, msg)
	r.result.Outcome = types.OutcomeError
	r.result.Message = msg
}

// apply records the decision items and executes its actions in order.
// A driver error stops the rest of the batch.
func (r *run) apply(ctx context.Context, decision *llm.Decision) error {
	r.batchFailed = false
	reasoned := false

	for _, item := range decision.Items {
		switch item.Kind {
		case types.KindReasoning:
			r.history = append(r.history, item)
			reasoned = true
			continue
		case types.KindAction:
		default:
			r.history = append(r.history, item)
			continue
		}

		if item.Action == nil {
			continue
		}
		action := *item.Action
		if !reasoned {
			r.history = append(r.history, types.Reasoning(ActionReasoning(action)))
		}
		reasoned = false

		if r.batchFailed {
			// keep the request in the record but do not run it
			r.history = append(r.history, item, types.ActionOutcome(action, false, "skipped: an earlier action in this batch failed"))
			continue
		}

		r.history = append(r.history, item)
		r.actions = append(r.actions, action)
		if err := r.execute(ctx, action); err != nil {
			return err
		}
	}
	return nil
}

// execute dispatches one action and records its outcome and a capture.
// Every executed action, blocked ones included, adds exactly one capture.
// Only context errors are returned.
func (r *run) execute(ctx context.Context, action types.Action) error {
	d := r.a.driver

	if action.Type == types.ActionGoto && r.rejects(action.URL) {
		msg := fmt.Sprintf("Navigation to %s blocked by the safety filter", action.URL)
		r.log.Warnf("step %d: %s", r.step, msg)
		r.emit(types.EventActionBlocked, msg)
		if target, ok := r.correct(ctx); ok {
			msg += "; returned to " + target
		}
		r.history = append(r.history, types.ActionOutcome(action, true, msg))
		r.summaries = append(r.summaries, fmt.Sprintf("%s -> blocked", action))
		r.capture(ctx, "")
		return ctx.Err()
	}

	var shot string
	var err error
	switch action.Type {
	case types.ActionClick:
		err = d.Click(ctx, action.X, action.Y, action.Button)
	case types.ActionDoubleClick:
		err = d.DoubleClick(ctx, action.X, action.Y)
	case types.ActionTypeText:
		err = d.Type(ctx, action.Text)
	case types.ActionKeypress:
		err = d.Keypress(ctx, action.Keys)
	case types.ActionScroll:
		err = d.Scroll(ctx, action.X, action.Y, action.ScrollX, action.ScrollY)
	case types.ActionGoto:
		err = d.Goto(ctx, action.URL)
	case types.ActionWait:
		err = d.Wait(ctx, action.Ms)
	case types.ActionMove:
		err = d.Move(ctx, action.X, action.Y)
	case types.ActionDrag:
		err = d.Drag(ctx, action.Path)
	case types.ActionScreenshot:
		shot, err = d.Screenshot(ctx)
	default:
		err = fmt.Errorf("unsupported action %q", action.Type)
	}

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Errorf("step %d: %s failed: %v", r.step, action, err)
		r.emit(types.EventError, fmt.Sprintf("%s failed: %v", action, err))
		r.history = append(r.history, types.ActionOutcome(action, false, fmt.Sprintf("Error: %v", err)))
		r.summaries = append(r.summaries, fmt.Sprintf("%s -> failed: %v", action, err))
		r.batchFailed = true
		r.capture(ctx, "")
		return nil
	}

	text := "ok"
	if action.Type.Navigates() {
		if target, redirected := r.confine(ctx); redirected {
			text = "ok; left the permitted domains, returned to " + target
		}
	}
	r.log.Infof("step %d: %s -> %s", r.step, action, text)
	r.emit(types.EventAction, action.String())
	r.history = append(r.history, types.ActionOutcome(action, true, text))
	r.summaries = append(r.summaries, fmt.Sprintf("%s -> %s", action, text))

	// a screenshot action already produced the capture
	if action.Type == types.ActionScreenshot {
		r.capture(ctx, shot)
	} else {
		r.capture(ctx, "")
	}
	return ctx.Err()
}

// confine checks the page after a navigating action and sends the browser
// back inside the permitted domains when it strayed.
func (r *run) confine(ctx context.Context) (string, bool) {
	current, err := r.a.driver.CurrentURL(ctx)
	if err != nil {
		r.log.Warnf("could not read current URL: %v", err)
		return "", false
	}
	if !r.rejects(current) {
		return "", false
	}
	r.log.Warnf("step %d: %s is outside the permitted domains", r.step, current)
	return r.correct(ctx)
}

// correct navigates to the first allow-listed domain, or to the start page
// when no allow-list is configured.
func (r *run) correct(ctx context.Context) (string, bool) {
	target, ok := r.a.filter.CorrectionURL()
	if !ok {
		current, err := r.a.driver.CurrentURL(ctx)
		if err != nil || !r.rejects(current) {
			// nothing to correct, the page never left
			return "", false
		}
		target = r.a.startURL
	}
	if err := r.a.driver.Goto(ctx, target); err != nil {
		r.log.Errorf("redirect to %s failed: %v", target, err)
		return "", false
	}
	r.log.Infof("step %d: redirected to %s", r.step, target)
	r.emit(types.EventRedirect, target)
	return target, true
}

// capture stores a PNG of the page. Capture failures are logged, not fatal.
func (r *run) capture(ctx context.Context, shot string) {
	if shot == "" {
		var err error
		shot, err = r.a.driver.Screenshot(ctx)
		if err != nil {
			r.log.Warnf("screen capture failed: %v", err)
			return
		}
	}
	png, err := base64.StdEncoding.DecodeString(shot)
	if err != nil {
		r.log.Warnf("screen capture is not valid base64: %v", err)
		return
	}
	r.result.ScreenCaptures = append(r.result.ScreenCaptures, png)
}

// observe takes a fresh screenshot and builds the continuation prompt.
func (r *run) observe(ctx context.Context, decision *llm.Decision) (string, string, error) {
	shot, err := r.a.driver.Screenshot(ctx)
	if err != nil {
		return "", "", err
	}
	current, err := r.a.driver.CurrentURL(ctx)
	if err != nil {
		return "", "", err
	}

	c := continuation{
		task:       r.task,
		summaries:  lastN(r.summaries, r.a.historyWindow),
		currentURL: current,
	}
	if pd, ok := r.a.driver.(browser.PageDescriber); ok {
		if pc, err := pd.PageContext(ctx); err == nil {
			c.page = pc
		} else {
			r.log.Debugf("page context unavailable: %v", err)
		}
	}
	if report, stuck := DetectStuck(r.actions, r.a.historyWindow); stuck {
		r.log.Warnf("step %d: repeated click at (%d, %d) x%d", r.step, report.At.X, report.At.Y, report.Count)
		r.emit(types.EventStuck, fmt.Sprintf("click at (%d, %d) repeated %d times", report.At.X, report.At.Y, report.Count))
		c.stuck = &report
	}
	if len(decision.Actions()) == 0 && isShortQuestion(decision.LastMessage()) {
		r.log.Infof("step %d: answering model question automatically", r.step)
		c.autoReply = true
	}
	return c.String(), shot, nil
}

// finish classifies the run and fills in the result.
func (r *run) finish(ctx context.Context) {
	r.setState(StateDone)
	res := r.result
	res.TurnHistory = r.history

	// the final URL is best effort even when ctx already ended
	urlCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		urlCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
	}
	if u, err := r.a.driver.CurrentURL(urlCtx); err == nil {
		res.FinalURL = u
	}

	if res.Outcome == types.OutcomeError {
		res.Success = false
		r.emit(types.EventRunEnd, res.Message)
		return
	}

	outcome, msg := Classify(lastAssistantMessage(r.history), r.verdict)
	if ctx.Err() != nil && outcome == types.OutcomeUncertain {
		msg = fmt.Sprintf("UNCERTAIN: run interrupted: %v", context.Cause(ctx))
	}
	if r.batchFailed && r.verdict == nil && outcome == types.OutcomePass {
		outcome = types.OutcomeUncertain
		msg = "UNCERTAIN: the last browser action failed. " + msg
	}

	res.Outcome = outcome
	res.Success = outcome == types.OutcomePass
	res.Message = msg
	r.log.Infof("run finished after %d steps: %s", r.step, outcome)
	r.emit(types.EventRunEnd, msg)
}

func lastN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
