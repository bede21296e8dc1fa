// Package server exposes the browser operator as JSON-RPC 2.0 tools over
// newline-delimited stdio.
//
// Every browser tool answers at once with a job ticket; the work runs in the
// background through the job manager and the client polls get-job-status.
// The server holds no global state: the job manager, the session manager and
// the decision service are injected.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/entrhq/operator/pkg/agent"
	"github.com/entrhq/operator/pkg/jobs"
	"github.com/entrhq/operator/pkg/llm"
	"github.com/entrhq/operator/pkg/logging"
	"github.com/entrhq/operator/pkg/security/domain"
	"github.com/entrhq/operator/pkg/tools/browser"
)

const (
	// DefaultJobTimeout bounds one browser job.
	DefaultJobTimeout = 10 * time.Minute
	// DefaultListLimit is the list-jobs page size.
	DefaultListLimit = 10
	// DefaultName is reported by initialize.
	DefaultName = "browser-operator"

	// methodPrefix lets clients call a tool directly as a method, e.g.
	// "mcp__browser-operator__create-browser".
	methodPrefix = "mcp__browser-operator__"
)

// Server dispatches protocol requests to tool handlers.
type Server struct {
	jobs     *jobs.Manager
	sessions *browser.SessionManager
	decider  llm.Decider

	filter          *domain.Filter
	session         browser.SessionOptions
	jobTimeout      time.Duration
	operateMaxSteps int
	name            string
	version         string
	logger          *logging.Logger

	tools map[string]tool
	order []string
}

// Option configures a Server.
type Option func(*Server)

// WithFilter sets the safety filter applied to navigation.
func WithFilter(f *domain.Filter) Option {
	return func(s *Server) {
		if f != nil {
			s.filter = f
		}
	}
}

// WithSessionOptions sets how create-browser launches browsers.
func WithSessionOptions(opts browser.SessionOptions) Option {
	return func(s *Server) {
		s.session = opts
	}
}

// WithJobTimeout bounds every browser job.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithOperateMaxSteps sets the step budget of operate-browser when the
// caller does not pass max_steps.
func WithOperateMaxSteps(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.operateMaxSteps = n
		}
	}
}

// WithVersion sets the version reported by initialize.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server. decider may be nil, in which case operate-browser
// reports an error.
func New(jobManager *jobs.Manager, sessions *browser.SessionManager, decider llm.Decider, opts ...Option) *Server {
	s := &Server{
		jobs:            jobManager,
		sessions:        sessions,
		decider:         decider,
		filter:          &domain.Filter{Blocked: domain.MustDomainList(domain.DefaultBlocked...)},
		session:         browser.SessionOptions{Headless: true},
		jobTimeout:      DefaultJobTimeout,
		operateMaxSteps: agent.ReactiveMaxSteps,
		name:            DefaultName,
		version:         "dev",
		logger:          logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// Serve reads requests from r and writes responses to w until r is
// exhausted or ctx is done. Requests are handled in arrival order.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	transport := NewTransport(r, w)

	type inbound struct {
		line []byte
		err  error
	}
	lines := make(chan inbound)
	go func() {
		defer close(lines)
		for {
			line, err := transport.Receive()
			select {
			case lines <- inbound{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	s.logger.Infof("%s %s serving on stdio", s.name, s.version)
	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("server stopping: %v", ctx.Err())
			return ctx.Err()
		case in, ok := <-lines:
			if !ok {
				return nil
			}
			if in.err != nil {
				if errors.Is(in.err, io.EOF) {
					s.logger.Infof("input closed, server stopping")
					return nil
				}
				return in.err
			}
			resp := s.Handle(ctx, in.line)
			if resp == nil {
				continue
			}
			if err := transport.Send(resp); err != nil {
				return err
			}
		}
	}
}

// Handle processes one raw message and returns the response, or nil for a
// notification.
func (s *Server) Handle(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.Warnf("unparseable message: %v", err)
		return newErrorResponse(nil, CodeParseError, "parse error: "+err.Error())
	}
	if req.JSONRPC != jsonrpcVersion || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return newErrorResponse(req.ID, CodeInvalidRequest, "invalid request")
	}
	if req.IsNotification() {
		s.logger.Debugf("notification %s ignored", req.Method)
		return nil
	}

	s.logger.Debugf("request %s %s", string(req.ID), req.Method)
	result, rpcErr := s.dispatch(ctx, &req)
	if rpcErr != nil {
		s.logger.Warnf("request %s %s failed: %s", string(req.ID), req.Method, rpcErr.Message)
		return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: rpcErr}
	}
	return newResponse(req.ID, result)
}

func (s *Server) dispatch(ctx context.Context, req *Request) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		}, nil
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return map[string]any{"tools": s.definitions()}, nil
	case "tools/call":
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
		}
		if params.Name == "" {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "missing required parameter: name"}
		}
		return s.call(ctx, params.Name, params.Arguments)
	}

	if name, ok := strings.CutPrefix(req.Method, methodPrefix); ok {
		var args map[string]any
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &args); err != nil {
				return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
			}
		}
		return s.call(ctx, name, args)
	}
	return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
}

func (s *Server) call(ctx context.Context, name string, args map[string]any) (any, *RPCError) {
	t, ok := s.tools[name]
	if !ok {
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown tool: %s", name)}
	}
	if args == nil {
		args = map[string]any{}
	}

	payload, err := t.handler(ctx, args)
	if err != nil {
		s.logger.Warnf("tool %s failed: %v", name, err)
		return errorResult(err), nil
	}
	result, err := textResult(payload)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return result, nil
}
