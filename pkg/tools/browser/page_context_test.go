package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageContext(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		maxLinks    int
		wantTitle   string
		wantHeading string
		wantKind    PageKind
		wantLinks   int
		wantForms   int
	}{
		{
			name: "product page with script removed",
			input: `<html><head><title>Widget</title><script>var price = "add to cart";</script></head>
				<body><h1>Blue   Widget</h1><p>Price: $10</p>
				<a href="/cart">Cart</a><a href="/help">Help</a>
				<button>Add to cart</button><form></form></body></html>`,
			wantTitle:   "Widget",
			wantHeading: "Blue Widget",
			wantKind:    PageProduct,
			wantLinks:   2,
			wantForms:   1,
		},
		{
			name:      "search results by title",
			input:     `<title>Search - Shop</title><body><p>nothing</p></body>`,
			wantTitle: "Search - Shop",
			wantKind:  PageSearchResults,
		},
		{
			name:      "link cap",
			input:     `<body>` + strings.Repeat(`<a href="/x">x</a>`, 10) + `</body>`,
			maxLinks:  3,
			wantKind:  PageUnknown,
			wantLinks: 3,
		},
		{
			name:     "links without text skipped",
			input:    `<body><a href="/a"></a><a>no href</a></body>`,
			wantKind: PageUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := ParsePageContext(tt.input, tt.maxLinks)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, pc.Title)
			assert.Equal(t, tt.wantHeading, pc.Heading)
			assert.Equal(t, tt.wantKind, pc.Kind)
			assert.Len(t, pc.Links, tt.wantLinks)
			assert.Equal(t, tt.wantForms, pc.FormCount)
		})
	}
}

func TestTruncateLabel(t *testing.T) {
	assert.Equal(t, "a b", truncateLabel("  a \n\t b "))
	assert.Len(t, []rune(truncateLabel(strings.Repeat("é", 50))), 30)
}

func TestPageContextString(t *testing.T) {
	pc := &PageContext{
		URL:   "https://example.com",
		Title: "Example",
		Kind:  PageUnknown,
		Clickables: []Clickable{
			{Kind: "Link", Label: "More information", X: 100, Y: 200},
		},
	}
	out := pc.String()
	assert.Contains(t, out, "• URL: https://example.com")
	assert.Contains(t, out, "• Heading: None")
	assert.Contains(t, out, "• Link 'More information': (100, 200)")

	pc.Clickables = nil
	assert.Contains(t, pc.String(), "No clickable elements detected")

	var empty *PageContext
	assert.Equal(t, "", empty.String())
}
