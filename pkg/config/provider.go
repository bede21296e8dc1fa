package config

import (
	"fmt"
	"os"

	"github.com/entrhq/operator/pkg/llm"
	"github.com/entrhq/operator/pkg/llm/openai"
	"github.com/entrhq/operator/pkg/llm/retry"
	"github.com/entrhq/operator/pkg/logging"
)

// Environment variables consulted by ResolveLLM.
const (
	EnvAPIKey  = "OPENAI_API_KEY"
	EnvBaseURL = "OPENAI_BASE_URL"
	EnvModel   = "OPERATOR_MODEL"
)

// LLMFlags are command line values. Empty fields defer to the environment,
// then the config file, then defaults.
type LLMFlags struct {
	Model   string
	BaseURL string
	APIKey  string
}

// ResolveLLM merges flags, environment and the llm section with that
// precedence. m may be nil.
func ResolveLLM(m *Manager, flags LLMFlags) (LLMSettings, error) {
	settings := m.LLM().Snapshot()

	settings.Model = firstNonEmpty(flags.Model, os.Getenv(EnvModel), settings.Model, openai.DefaultModel)
	settings.BaseURL = firstNonEmpty(flags.BaseURL, os.Getenv(EnvBaseURL), settings.BaseURL)
	settings.APIKey = firstNonEmpty(flags.APIKey, os.Getenv(EnvAPIKey), settings.APIKey)

	if settings.APIKey == "" {
		return settings, fmt.Errorf("API key is required. Set %s, use -api-key, or set llm.api_key in the config file", EnvAPIKey)
	}
	return settings, nil
}

// BuildDecider creates the decision service client from the resolved
// settings.
func BuildDecider(m *Manager, flags LLMFlags, logger *logging.Logger) (*openai.Client, error) {
	settings, err := ResolveLLM(m, flags)
	if err != nil {
		return nil, err
	}

	policy := retry.DefaultPolicy(llm.IsRetryable)
	policy.MaxAttempts = settings.MaxRetries
	policy.BaseDelay = settings.RetryBaseDelay

	opts := []openai.ClientOption{
		openai.WithModel(settings.Model),
		openai.WithRetryPolicy(policy),
		openai.WithRateLimit(settings.RequestsPerSecond, 1),
		openai.WithMaxContextTokens(settings.MaxContextTokens),
	}
	if settings.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(settings.BaseURL))
	}
	if logger != nil {
		opts = append(opts, openai.WithLogger(logger))
	}

	client, err := openai.NewClient(settings.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision client: %w", err)
	}
	return client, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
