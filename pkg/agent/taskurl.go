package agent

import (
	"regexp"
	"strings"
)

var (
	urlLinePattern = regexp.MustCompile(`URL:\s*(https?://\S+)`)

	urlWithScheme = []*regexp.Regexp{
		regexp.MustCompile(`(?i)navigate to (https?://\S+)`),
		regexp.MustCompile(`(?i)go to (https?://\S+)`),
		regexp.MustCompile(`(?i)visit (https?://\S+)`),
		regexp.MustCompile(`(?i)open (https?://\S+)`),
		regexp.MustCompile(`(?i)access (https?://\S+)`),
	}

	hostPattern = `([a-zA-Z0-9][a-zA-Z0-9-]*(?:\.[a-zA-Z0-9][a-zA-Z0-9-]*)+)`

	urlWithoutScheme = []*regexp.Regexp{
		regexp.MustCompile(`(?i)navigate to ` + hostPattern),
		regexp.MustCompile(`(?i)go to ` + hostPattern),
		regexp.MustCompile(`(?i)visit ` + hostPattern),
		regexp.MustCompile(`(?i)open ` + hostPattern),
		regexp.MustCompile(`(?i)access ` + hostPattern),
	}

	// a bare host must end in a letter TLD, so "open 1.5" is not a site
	tldPattern = regexp.MustCompile(`\.[a-zA-Z]{2,}$`)
)

// ExtractURL finds the page a task asks to start from: an explicit "URL:"
// line first, then "navigate to"/"go to"/"visit"/"open"/"access" followed by
// a full URL, then the same verbs followed by a bare host, which gets
// https:// prepended. It returns "" when nothing matches.
func ExtractURL(task string) string {
	if m := urlLinePattern.FindStringSubmatch(task); m != nil {
		return trimURL(m[1])
	}
	for _, re := range urlWithScheme {
		if m := re.FindStringSubmatch(task); m != nil {
			return trimURL(m[1])
		}
	}
	for _, re := range urlWithoutScheme {
		if m := re.FindStringSubmatch(task); m != nil && tldPattern.MatchString(m[1]) {
			return "https://" + m[1]
		}
	}
	return ""
}

func trimURL(u string) string {
	return strings.TrimRight(u, ".,;:)'\"")
}
