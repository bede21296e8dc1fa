// Package domain decides which navigation targets the agent may visit.
//
// Two checks with opposite failure policies are provided. IsBlocked fails
// open: a URL that cannot be parsed is treated as not blocked, favouring
// availability. It is a guard rail, not a security boundary. IsAllowed
// fails closed: a URL that cannot be parsed is denied, which keeps an
// autonomous run inside its approved domains.
package domain

import (
	"net/url"
	"strings"
)

// internalSchemes are never blocked and always allowed.
var internalSchemes = []string{"data:", "about:", "chrome-error:", "chrome:", "edge:", "blob:"}

// loopbackHosts are always allowed.
var loopbackHosts = map[string]bool{"localhost": true, "127.0.0.1": true, "::1": true}

// Filter holds an allow-list and a block-list. The zero value blocks nothing
// and allows everything.
type Filter struct {
	Allowed DomainList
	Blocked DomainList
}

// NewFilter builds a filter from raw entries.
func NewFilter(allowed, blocked []string) (*Filter, error) {
	a, err := NewDomainList(allowed...)
	if err != nil {
		return nil, err
	}
	b, err := NewDomainList(blocked...)
	if err != nil {
		return nil, err
	}
	return &Filter{Allowed: a, Blocked: b}, nil
}

func isInternal(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range internalSchemes {
		if strings.HasPrefix(lower, s) {
			return true
		}
	}
	return false
}

// hostname extracts the host of raw. Scheme-less input such as
// "example.com/path" is parsed as if it had an https scheme.
func hostname(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

// IsBlocked reports whether raw targets a block-listed host.
// Internal schemes and unparseable input are never blocked.
func (f *Filter) IsBlocked(raw string) bool {
	if f == nil || f.Blocked.Len() == 0 || isInternal(raw) {
		return false
	}
	host, err := hostname(raw)
	if err != nil || host == "" {
		return false
	}
	return f.Blocked.Match(host)
}

// IsAllowed reports whether raw is inside the allow-list. An empty
// allow-list leaves navigation unconfined. Unparseable input is denied.
func (f *Filter) IsAllowed(raw string) bool {
	if isInternal(raw) {
		return true
	}
	if f == nil || f.Allowed.Len() == 0 {
		return true
	}
	host, err := hostname(raw)
	if err != nil || host == "" {
		return false
	}
	if loopbackHosts[strings.ToLower(host)] {
		return true
	}
	return f.Allowed.Match(host)
}

// Confined reports whether an allow-list is in force.
func (f *Filter) Confined() bool {
	return f != nil && f.Allowed.Len() > 0
}

// CorrectionURL returns the page a disallowed navigation is redirected to:
// https:// plus the first allow-list entry. It reports false when there is
// no concrete first entry to go to.
func (f *Filter) CorrectionURL() (string, bool) {
	if f == nil {
		return "", false
	}
	first, ok := f.Allowed.First()
	if !ok || strings.Contains(first, "*") {
		return "", false
	}
	return "https://" + first, true
}
