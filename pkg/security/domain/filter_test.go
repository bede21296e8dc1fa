package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestFilter(t *testing.T, allowed, blocked []string) *Filter {
	t.Helper()
	f, err := NewFilter(allowed, blocked)
	require.NoError(t, err)
	return f
}

func TestIsBlocked(t *testing.T) {
	f := newTestFilter(t, nil, DefaultBlocked)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://maliciousbook.com", true},
		{"https://www.maliciousbook.com/path?q=1", true},
		{"http://MaliciousBook.com:8080", true},
		{"https://notmaliciousbook.com", false},
		{"https://example.com", false},
		{"shadytok.com/video", true},
		{"data:text/html,<h1>hi</h1>", false},
		{"about:blank", false},
		{"chrome-error://chromewebdata/", false},
		{"not a url at all", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsBlocked(tt.url))
		})
	}
}

func TestIsAllowed(t *testing.T) {
	f := newTestFilter(t, []string{"example.com", "docs.test.org"}, nil)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com", true},
		{"https://sub.example.com/a", true},
		{"https://badexample.com", false},
		{"https://docs.test.org", true},
		{"https://test.org", false},
		{"http://localhost:3000", true},
		{"http://127.0.0.1/admin", true},
		{"about:blank", true},
		{"data:image/png;base64,xx", true},
		{"chrome-error://chromewebdata/", true},
		{"not a url at all", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsAllowed(tt.url))
		})
	}
}

func TestIsAllowedWildcards(t *testing.T) {
	all := newTestFilter(t, []string{"*"}, nil)
	assert.True(t, all.IsAllowed("https://anything.net"))
	_, ok := all.CorrectionURL()
	assert.False(t, ok)

	pattern := newTestFilter(t, []string{"*.example.com"}, nil)
	assert.True(t, pattern.IsAllowed("https://a.example.com"))
	assert.False(t, pattern.IsAllowed("https://a.b.example.com"))
	assert.False(t, pattern.IsAllowed("https://example.org"))
}

func TestEmptyAllowListIsUnconfined(t *testing.T) {
	f := newTestFilter(t, nil, nil)
	assert.False(t, f.Confined())
	assert.True(t, f.IsAllowed("https://example.com"))

	var nilFilter *Filter
	assert.True(t, nilFilter.IsAllowed("https://example.com"))
	assert.False(t, nilFilter.IsBlocked("https://maliciousbook.com"))
}

func TestCorrectionURL(t *testing.T) {
	f := newTestFilter(t, []string{"https://Example.com/start", "other.com"}, nil)
	u, ok := f.CorrectionURL()
	require.True(t, ok)
	assert.Equal(t, "https://example.com", u)

	_, ok = newTestFilter(t, nil, nil).CorrectionURL()
	assert.False(t, ok)
}

func TestDomainListNormalizesAndDedupes(t *testing.T) {
	l := MustDomainList("Example.com", "example.com", " https://example.com/x ", "a.org:443", "")
	assert.Equal(t, []string{"example.com", "a.org"}, l.Entries())
}

func TestDomainListRejectsBadPattern(t *testing.T) {
	_, err := NewDomainList("[unclosed*")
	assert.Error(t, err)
}

func TestIsBlockedIsPure(t *testing.T) {
	f := newTestFilter(t, nil, append([]string{"blocked.example"}, DefaultBlocked...))

	rapid.Check(t, func(rt *rapid.T) {
		u := rapid.OneOf(
			rapid.StringMatching(`https?://[a-z]{1,8}(\.[a-z]{1,8}){0,2}\.(com|org|example)(/[a-z]{0,5})?`),
			rapid.String(),
		).Draw(rt, "url")

		first := f.IsBlocked(u)
		for i := 0; i < 3; i++ {
			if f.IsBlocked(u) != first {
				rt.Fatalf("IsBlocked(%q) changed between calls", u)
			}
		}
	})
}

func TestInternalSchemesNeverBlocked(t *testing.T) {
	// A block-list that covers everything still cannot block internal pages.
	f := newTestFilter(t, nil, []string{"*"})

	rapid.Check(t, func(rt *rapid.T) {
		scheme := rapid.SampledFrom([]string{"data:", "about:", "DATA:", "About:"}).Draw(rt, "scheme")
		rest := rapid.String().Draw(rt, "rest")
		if f.IsBlocked(scheme + rest) {
			rt.Fatalf("%q was blocked", scheme+rest)
		}
	})
	assert.True(t, f.IsBlocked("https://example.com"))
}
