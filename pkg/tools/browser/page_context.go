package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// PageKind is a coarse guess at what sort of page is showing.
type PageKind string

const (
	PageUnknown       PageKind = "unknown"
	PageProduct       PageKind = "product page"
	PageSearchResults PageKind = "search results page"
	PageCheckout      PageKind = "checkout page"
)

// Clickable is a visible element with the viewport point at its center.
type Clickable struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

// PageContext is a compact, text-only description of the current page used
// to ground the model between screenshots.
type PageContext struct {
	URL        string      `json:"url"`
	Title      string      `json:"title"`
	Heading    string      `json:"heading"`
	Kind       PageKind    `json:"kind"`
	FormCount  int         `json:"form_count"`
	Links      []Link      `json:"links,omitempty"`
	Buttons    []string    `json:"buttons,omitempty"`
	Clickables []Clickable `json:"clickables,omitempty"`
}

// String renders the context as the block the agent puts into its
// continuation prompt.
func (p *PageContext) String() string {
	if p == nil {
		return ""
	}
	heading := p.Heading
	if heading == "" {
		heading = "None"
	}
	var b strings.Builder
	b.WriteString("CURRENT PAGE:\n")
	fmt.Fprintf(&b, "• URL: %s\n", p.URL)
	fmt.Fprintf(&b, "• Title: %s\n", p.Title)
	fmt.Fprintf(&b, "• Type: %s\n", p.Kind)
	fmt.Fprintf(&b, "• Heading: %s\n", heading)

	b.WriteString("\nCLICKABLE ELEMENTS WITH COORDINATES:\n")
	if len(p.Clickables) == 0 {
		b.WriteString("No clickable elements detected\n")
	}
	for _, c := range p.Clickables {
		fmt.Fprintf(&b, "• %s '%s': (%d, %d)\n", c.Kind, c.Label, c.X, c.Y)
	}
	return b.String()
}

// ParsePageContext extracts title, first h1, up to maxLinks links and
// buttons, and a page-kind guess from raw HTML.
func ParsePageContext(rawHTML string, maxLinks int) (*PageContext, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if maxLinks <= 0 {
		maxLinks = DefaultMaxLinks
	}

	pc := &PageContext{
		Title:   extractTitle(doc),
		Heading: extractFirst(doc, "h1"),
	}

	var bodyText strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isSkippedElement(n.Data) {
			return
		}
		if n.Type == html.TextNode {
			bodyText.WriteString(strings.ToLower(n.Data))
			bodyText.WriteByte(' ')
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "form":
				pc.FormCount++
			case "a":
				href := attr(n, "href")
				text := truncateLabel(textContent(n))
				if href != "" && text != "" && len(pc.Links) < maxLinks {
					pc.Links = append(pc.Links, Link{Text: text, Href: href})
				}
			case "button":
				if text := truncateLabel(textContent(n)); text != "" && len(pc.Buttons) < maxLinks {
					pc.Buttons = append(pc.Buttons, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	pc.Kind = classifyPage(pc.Title, bodyText.String())
	return pc, nil
}

func classifyPage(title, body string) PageKind {
	switch {
	case strings.Contains(body, "add to cart") || strings.Contains(body, "product details") || strings.Contains(body, "price:"):
		return PageProduct
	case strings.Contains(strings.ToLower(title), "search") || strings.Contains(body, "search results") || strings.Contains(body, "items found"):
		return PageSearchResults
	case strings.Contains(body, "checkout") || strings.Contains(body, "payment") || strings.Contains(body, "shipping"):
		return PageCheckout
	default:
		return PageUnknown
	}
}

// truncateLabel collapses whitespace and caps labels at 30 characters.
func truncateLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > 30 {
		return string(r[:30])
	}
	return s
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.TrimSpace(b.String())
}

// isSkippedElement returns true for elements that never carry visible text
func isSkippedElement(tagName string) bool {
	switch strings.ToLower(tagName) {
	case "script", "style", "noscript", "template", "svg":
		return true
	}
	return false
}

// extractTitle extracts the page title from the document
func extractTitle(doc *html.Node) string {
	return extractFirst(doc, "title")
}

// extractFirst returns the text of the first element named tag.
func extractFirst(doc *html.Node, tag string) string {
	var found string
	var traverse func(*html.Node) bool
	traverse = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			found = strings.Join(strings.Fields(textContent(n)), " ")
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if traverse(c) {
				return true
			}
		}
		return false
	}
	traverse(doc)
	return found
}
