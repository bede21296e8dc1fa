package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURL(t *testing.T) {
	tests := map[string]string{
		"navigate to https://example.com":                     "https://example.com",
		"Navigate to https://example.com/login, then sign in": "https://example.com/login",
		"Test the form.\nURL: https://forms.example.org/new.":  "https://forms.example.org/new",
		"Please visit http://localhost:8080/app":              "http://localhost:8080/app",
		"Go to example.com and check the title":               "https://example.com",
		"open docs.python.org":                                "https://docs.python.org",
		"check the version is 1.5 or newer":                   "",
		"open 1.5":                                            "",
		"click the big red button":                            "",
	}
	for task, want := range tests {
		t.Run(task, func(t *testing.T) {
			assert.Equal(t, want, ExtractURL(task))
		})
	}
}
