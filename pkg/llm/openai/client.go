// Package openai implements the decision service client for OpenAI-compatible
// chat completion APIs.
//
// Example usage:
//
//	client, err := openai.NewClient(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"),
//	    openai.WithRateLimit(1, 2),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	decision, err := client.Decide(ctx, history, llm.DefaultTools())
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/openai/openai-go"

	"github.com/entrhq/operator/pkg/llm"
	"github.com/entrhq/operator/pkg/llm/retry"
	"github.com/entrhq/operator/pkg/llm/tokenizer"
	"github.com/entrhq/operator/pkg/logging"
	"github.com/entrhq/operator/pkg/types"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"

	// DefaultMaxContextTokens bounds the replayed conversation.
	DefaultMaxContextTokens = 100000

	maxErrorBody = 4096
)

// Client implements llm.Decider over /chat/completions.
type Client struct {
	httpClient       *http.Client
	apiKey           string
	baseURL          string
	model            string
	systemPrompt     string
	policy           retry.Policy
	limiter          *rate.Limiter
	tokens           *tokenizer.Tokenizer
	maxContextTokens int
	logger           *logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithModel sets the model to use for completions.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryPolicy replaces the retry policy. A nil Retryable predicate is
// replaced with llm.IsRetryable.
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(c *Client) {
		if p.Retryable == nil {
			p.Retryable = llm.IsRetryable
		}
		c.policy = p
	}
}

// WithRateLimit allows rps requests per second with the given burst.
// A non-positive rps disables client-side limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxContextTokens bounds the conversation sent per request.
// Zero disables trimming.
func WithMaxContextTokens(n int) ClientOption {
	return func(c *Client) {
		c.maxContextTokens = n
	}
}

// WithSystemPrompt replaces the built-in system prompt.
func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client. An empty apiKey falls back to OPENAI_API_KEY
// and an unset base URL to OPENAI_BASE_URL.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	c := &Client{
		httpClient:       &http.Client{Timeout: 120 * time.Second},
		apiKey:           apiKey,
		baseURL:          DefaultBaseURL,
		model:            DefaultModel,
		systemPrompt:     SystemPrompt,
		policy:           retry.DefaultPolicy(llm.IsRetryable),
		maxContextTokens: DefaultMaxContextTokens,
		logger:           logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == DefaultBaseURL {
		if env := os.Getenv("OPENAI_BASE_URL"); env != "" {
			c.baseURL = strings.TrimRight(env, "/")
		}
	}
	c.tokens = tokenizer.New(c.model)

	userRetry := c.policy.OnRetry
	c.policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Warnf("decision attempt %d failed, retrying in %s: %v", attempt, delay, err)
		if userRetry != nil {
			userRetry(attempt, err, delay)
		}
	}
	return c, nil
}

// ModelInfo implements llm.Describer.
func (c *Client) ModelInfo() llm.ModelInfo {
	return llm.ModelInfo{
		Provider:  "openai",
		Name:      c.model,
		BaseURL:   c.baseURL,
		MaxTokens: c.maxContextTokens,
	}
}

// Decide implements llm.Decider.
func (c *Client) Decide(ctx context.Context, conversation []types.TurnItem, tools []llm.ToolSpec) (*llm.Decision, error) {
	before := len(conversation)
	conversation = c.tokens.Trim(conversation, c.maxContextTokens)
	if dropped := before - len(conversation); dropped > 0 {
		c.logger.Infof("trimmed %d oldest items to fit %d tokens", dropped, c.maxContextTokens)
	}

	params := buildParams(c.model, c.systemPrompt, conversation, tools)
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reply, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*completion, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return c.send(ctx, body)
	})
	if err != nil {
		c.logger.Errorf("decision failed (%s): %v", llm.Classify(err), err)
		return nil, err
	}
	return normalize(reply, c.logger)
}

// completion pairs the typed reply with fields the SDK type does not expose.
type completion struct {
	chat      openai.ChatCompletion
	reasoning string
}

func (c *Client) send(ctx context.Context, body []byte) (*completion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, &llm.ServiceError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	out := &completion{}
	if err := json.Unmarshal(raw, &out.chat); err != nil {
		return nil, &llm.ProtocolError{Reason: "decode completion", Err: err}
	}

	var extra struct {
		Choices []struct {
			Message struct {
				ReasoningContent string `json:"reasoning_content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if json.Unmarshal(raw, &extra) == nil && len(extra.Choices) > 0 {
		out.reasoning = extra.Choices[0].Message.ReasoningContent
	}
	return out, nil
}
