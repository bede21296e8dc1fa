package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/operator/pkg/agent"
	"github.com/entrhq/operator/pkg/jobs"
	"github.com/entrhq/operator/pkg/tools/browser"
	"github.com/entrhq/operator/pkg/types"
)

type toolHandler func(ctx context.Context, args map[string]any) (any, error)

type tool struct {
	def     ToolDefinition
	handler toolHandler
}

// ticket is the immediate answer of every browser tool.
type ticket struct {
	JobID   string      `json:"job_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

// OperateResult is the job result of operate-browser.
type OperateResult struct {
	Success    bool             `json:"success"`
	Outcome    types.Outcome    `json:"outcome"`
	Message    string           `json:"message"`
	FinalURL   string           `json:"final_url,omitempty"`
	Steps      int              `json:"steps"`
	History    []types.TurnItem `json:"history"`
	Screenshot string           `json:"screenshot,omitempty"`
}

func schema(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

var (
	projectProp = map[string]any{"type": "string", "description": "Name of the browser project"}
	jobIDProp   = map[string]any{"type": "string", "description": "Job id returned by a browser tool"}
)

func (s *Server) registerTools() {
	s.tools = make(map[string]tool)
	add := func(name, description string, inputSchema map[string]any, h toolHandler) {
		s.tools[name] = tool{
			def:     ToolDefinition{Name: name, Description: description, InputSchema: inputSchema},
			handler: h,
		}
		s.order = append(s.order, name)
	}

	add("create-browser",
		"Launch a browser for a project. Returns a job id to poll.",
		schema([]string{"project_name"}, map[string]any{"project_name": projectProp}),
		s.createBrowser)
	add("navigate-browser",
		"Navigate a project's browser to a URL. Returns a job id to poll.",
		schema([]string{"project_name", "url"}, map[string]any{
			"project_name": projectProp,
			"url":          map[string]any{"type": "string", "description": "Destination URL"},
		}),
		s.navigateBrowser)
	add("operate-browser",
		"Carry out a natural language instruction on a project's browser. Returns a job id to poll.",
		schema([]string{"project_name", "instruction"}, map[string]any{
			"project_name": projectProp,
			"instruction":  map[string]any{"type": "string", "description": "What to do on the current page"},
			"max_steps":    map[string]any{"type": "integer", "description": "Decision budget for this instruction"},
		}),
		s.operateBrowser)
	add("close-browser",
		"Close a project's browser. Returns a job id to poll.",
		schema([]string{"project_name"}, map[string]any{"project_name": projectProp}),
		s.closeBrowser)
	add("get-job-status",
		"Get the status and result of a job.",
		schema([]string{"job_id"}, map[string]any{"job_id": jobIDProp}),
		s.getJobStatus)
	add("list-jobs",
		"List recent jobs, most recently updated first.",
		schema(nil, map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum number of jobs", "default": DefaultListLimit},
		}),
		s.listJobs)
	add("cancel-job",
		"Cancel a pending or running job.",
		schema([]string{"job_id"}, map[string]any{"job_id": jobIDProp}),
		s.cancelJob)
}

func (s *Server) definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(s.order))
	for _, name := range s.order {
		defs = append(defs, s.tools[name].def)
	}
	return defs
}

func requiredString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("missing %s parameter", key)
	}
	return v, nil
}

// optionalInt reads a JSON number argument.
func optionalInt(args map[string]any, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

// submit creates a job and starts work on it.
func (s *Server) submit(ctx context.Context, op jobs.OperationType, description string, args map[string]any, work func(ctx context.Context, jobID string) (any, error)) (any, error) {
	id := s.jobs.Create(op, description, args)
	err := s.jobs.Submit(ctx, id, s.jobTimeout, func(ctx context.Context) (any, error) {
		return work(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	status := jobs.StatusRunning
	if job, err := s.jobs.Get(id); err == nil {
		status = job.Status
	}
	s.logger.Infof("job %s started: %s", id, description)
	return ticket{JobID: id, Status: status, Message: description}, nil
}

// withSession runs fn while holding the project's browser.
func (s *Server) withSession(ctx context.Context, project string, fn func(browser.Driver) (any, error)) (any, error) {
	drv, release, err := s.sessions.Acquire(ctx, project)
	if err != nil {
		return nil, err
	}
	defer release()
	return fn(drv)
}

func (s *Server) createBrowser(ctx context.Context, args map[string]any) (any, error) {
	project, err := requiredString(args, "project_name")
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, jobs.OpCreateBrowser, fmt.Sprintf("Creating browser for project %s", project), args,
		func(ctx context.Context, _ string) (any, error) {
			if _, err := s.sessions.Start(ctx, project, s.sessionOptions()); err != nil {
				if errors.Is(err, browser.ErrSessionExists) {
					return map[string]any{
						"project_name": project,
						"message":      fmt.Sprintf("Browser already running for project %s", project),
					}, nil
				}
				return nil, err
			}
			return map[string]any{
				"project_name": project,
				"message":      fmt.Sprintf("Browser created for project %s", project),
			}, nil
		})
}

// normalizeURL adds https:// to a bare host.
func normalizeURL(u string) string {
	if strings.Contains(u, "://") || strings.HasPrefix(u, "about:") || strings.HasPrefix(u, "data:") {
		return u
	}
	return "https://" + u
}

func (s *Server) navigateBrowser(ctx context.Context, args map[string]any) (any, error) {
	project, err := requiredString(args, "project_name")
	if err != nil {
		return nil, err
	}
	raw, err := requiredString(args, "url")
	if err != nil {
		return nil, err
	}
	target := normalizeURL(raw)
	if s.filter.IsBlocked(target) {
		return nil, fmt.Errorf("navigation to %s is blocked by the safety filter", target)
	}
	if s.filter.Confined() && !s.filter.IsAllowed(target) {
		return nil, fmt.Errorf("navigation to %s is outside the allowed domains", target)
	}

	return s.submit(ctx, jobs.OpNavigate, fmt.Sprintf("Navigating %s to %s", project, target), args,
		func(ctx context.Context, _ string) (any, error) {
			return s.withSession(ctx, project, func(drv browser.Driver) (any, error) {
				if err := drv.Goto(ctx, target); err != nil {
					return nil, err
				}
				current, err := drv.CurrentURL(ctx)
				if err != nil {
					return nil, err
				}
				result := map[string]any{
					"project_name": project,
					"url":          current,
					"message":      fmt.Sprintf("Navigated to %s", current),
				}
				if shot, err := drv.Screenshot(ctx); err == nil {
					result["screenshot"] = shot
				}
				return result, nil
			})
		})
}

func (s *Server) operateBrowser(ctx context.Context, args map[string]any) (any, error) {
	project, err := requiredString(args, "project_name")
	if err != nil {
		return nil, err
	}
	instruction, err := requiredString(args, "instruction")
	if err != nil {
		return nil, err
	}
	maxSteps, err := optionalInt(args, "max_steps", s.operateMaxSteps)
	if err != nil {
		return nil, err
	}
	if maxSteps <= 0 {
		return nil, fmt.Errorf("max_steps must be positive")
	}
	if s.decider == nil {
		return nil, fmt.Errorf("no decision service configured")
	}

	return s.submit(ctx, jobs.OpOperate, fmt.Sprintf("Operating %s: %s", project, instruction), args,
		func(ctx context.Context, jobID string) (any, error) {
			return s.withSession(ctx, project, func(drv browser.Driver) (any, error) {
				a := agent.New(s.decider, drv,
					agent.WithFilter(s.filter),
					agent.WithMaxSteps(maxSteps),
					agent.WithCurrentPage(),
					agent.WithLogger(s.logger.With("agent")),
					agent.WithObserver(func(e types.Event) {
						s.jobs.SetProgress(jobID, fmt.Sprintf("step %d: %s %s", e.Step, e.Type, e.Message))
					}),
				)
				res, err := a.Run(ctx, instruction)
				if err != nil {
					return nil, err
				}
				return newOperateResult(res), nil
			})
		})
}

func newOperateResult(res *types.AgentResult) OperateResult {
	out := OperateResult{
		Success:  res.Success,
		Outcome:  res.Outcome,
		Message:  res.Message,
		FinalURL: res.FinalURL,
		Steps:    res.Steps,
		History:  res.TurnHistory,
	}
	if png := res.LastScreenCapture(); png != nil {
		out.Screenshot = base64.StdEncoding.EncodeToString(png)
	}
	return out
}

func (s *Server) closeBrowser(ctx context.Context, args map[string]any) (any, error) {
	project, err := requiredString(args, "project_name")
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, jobs.OpClose, fmt.Sprintf("Closing browser for project %s", project), args,
		func(ctx context.Context, _ string) (any, error) {
			// wait for in-flight work on the page before closing it
			return s.withSession(ctx, project, func(browser.Driver) (any, error) {
				if err := s.sessions.Close(project); err != nil {
					return nil, err
				}
				return map[string]any{
					"project_name": project,
					"message":      fmt.Sprintf("Browser closed for project %s", project),
				}, nil
			})
		})
}

func (s *Server) getJobStatus(_ context.Context, args map[string]any) (any, error) {
	id, err := requiredString(args, "job_id")
	if err != nil {
		return nil, err
	}
	return s.jobs.Get(id)
}

func (s *Server) listJobs(_ context.Context, args map[string]any) (any, error) {
	limit, err := optionalInt(args, "limit", DefaultListLimit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"jobs": s.jobs.List(limit)}, nil
}

func (s *Server) cancelJob(_ context.Context, args map[string]any) (any, error) {
	id, err := requiredString(args, "job_id")
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Cancel(id); err != nil {
		return nil, err
	}
	job, err := s.jobs.Get(id)
	if err != nil {
		return nil, err
	}
	return ticket{JobID: id, Status: job.Status, Message: "Job cancelled"}, nil
}

// sessionOptions are the launch options for a new browser. The server's
// safety filter guards every request the browser makes unless the options
// already carry one.
func (s *Server) sessionOptions() browser.SessionOptions {
	opts := s.session
	if opts.Filter == nil {
		opts.Filter = s.filter
	}
	return opts
}
