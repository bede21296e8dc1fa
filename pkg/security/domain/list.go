package domain

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultBlocked is the built-in block-list applied when none is configured.
var DefaultBlocked = []string{
	"maliciousbook.com",
	"evilvideos.com",
	"darkwebforum.com",
	"shadytok.com",
	"suspiciouspins.com",
}

// DomainList is an ordered set of hostname suffixes.
//
// An entry matches a host when host == entry or host ends with "."+entry.
// The entry "*" matches every host. Any other entry containing "*" is
// compiled as a glob with "." as separator, so "*.example.com" matches
// "a.example.com" but not "a.b.example.com".
type DomainList struct {
	entries  []string
	patterns map[string]glob.Glob
	any      bool
}

// NewDomainList normalizes and de-duplicates entries, keeping first-seen order.
func NewDomainList(entries ...string) (DomainList, error) {
	l := DomainList{patterns: make(map[string]glob.Glob)}
	seen := make(map[string]bool, len(entries))
	for _, raw := range entries {
		e := normalizeEntry(raw)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		switch {
		case e == "*":
			l.any = true
		case strings.Contains(e, "*"):
			g, err := glob.Compile(e, '.')
			if err != nil {
				return DomainList{}, fmt.Errorf("invalid domain pattern '%s': %w", raw, err)
			}
			l.patterns[e] = g
		}
		l.entries = append(l.entries, e)
	}
	return l, nil
}

// MustDomainList is NewDomainList for static lists; it panics on a bad pattern.
func MustDomainList(entries ...string) DomainList {
	l, err := NewDomainList(entries...)
	if err != nil {
		panic(err)
	}
	return l
}

// normalizeEntry lower-cases an entry and strips any scheme, path or port
// so "https://Example.com/x" and "example.com" are the same entry.
func normalizeEntry(raw string) string {
	e := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(e, "://"); i >= 0 {
		e = e[i+3:]
	}
	if i := strings.IndexAny(e, "/?#"); i >= 0 {
		e = e[:i]
	}
	if i := strings.LastIndex(e, ":"); i >= 0 {
		e = e[:i]
	}
	return strings.Trim(e, ".")
}

// Entries returns a copy of the normalized entries.
func (l DomainList) Entries() []string {
	return append([]string(nil), l.entries...)
}

// Len returns the number of entries.
func (l DomainList) Len() int {
	return len(l.entries)
}

// First returns the first entry.
func (l DomainList) First() (string, bool) {
	if len(l.entries) == 0 {
		return "", false
	}
	return l.entries[0], true
}

// Match reports whether host is covered by any entry.
func (l DomainList) Match(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	if l.any {
		return true
	}
	for _, e := range l.entries {
		if g, ok := l.patterns[e]; ok {
			if g.Match(host) {
				return true
			}
			continue
		}
		if host == e || strings.HasSuffix(host, "."+e) {
			return true
		}
	}
	return false
}
