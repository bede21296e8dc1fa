package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Category groups decision service failures for reporting.
type Category string

const (
	CategoryRateLimit Category = "rate_limit"
	CategoryAuth      Category = "auth"
	CategoryQuota     Category = "quota"
	CategoryGeneric   Category = "generic"
)

// ServiceError is a non-2xx reply from the decision service.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("decision service returned status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether err is worth another attempt: HTTP 429 and
// transport failures are, every other status and cancellation are not.
//
// A deadline error is a transport failure here. The HTTP client reports its
// own timeout as context.DeadlineExceeded; the caller's deadline is checked
// by retry.Do before this predicate runs.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return false
	}
	return true
}

// ProtocolError is a 2xx reply that could not be understood.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed decision service reply: %s: %v", e.Reason, e.Err)
	}
	return "malformed decision service reply: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Classify maps a decision failure to a reporting category.
func Classify(err error) Category {
	if err == nil {
		return CategoryGeneric
	}
	var se *ServiceError
	if errors.As(err, &se) {
		body := strings.ToLower(se.Body)
		switch {
		case strings.Contains(body, "quota") || strings.Contains(body, "billing"):
			return CategoryQuota
		case se.StatusCode == http.StatusTooManyRequests:
			return CategoryRateLimit
		case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
			return CategoryAuth
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit"):
		return CategoryRateLimit
	case strings.Contains(msg, "quota"):
		return CategoryQuota
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "api key") || strings.Contains(msg, "api_key"):
		return CategoryAuth
	}
	return CategoryGeneric
}

// Describe renders the user-facing explanation of a decision failure.
func Describe(err error) string {
	switch Classify(err) {
	case CategoryRateLimit:
		return fmt.Sprintf("Decision service rate limit exceeded. Reduce concurrent runs or retry later. (%v)", err)
	case CategoryAuth:
		return fmt.Sprintf("Decision service authentication failed. Check the configured API key. (%v)", err)
	case CategoryQuota:
		return fmt.Sprintf("Decision service quota exceeded. Check account billing and limits. (%v)", err)
	default:
		return fmt.Sprintf("Decision service error: %v", err)
	}
}
