// Package parser separates model reasoning from message text in assistant replies.
package parser

import (
	"strings"
)

// reasoningTags are the open/close tag pairs treated as reasoning blocks.
var reasoningTags = map[string]string{
	"<thinking>":  "</thinking>",
	"<think>":     "</think>",
	"<reasoning>": "</reasoning>",
}

// ThinkingParser splits text into reasoning and message content. It keeps
// state between Parse calls so a tag split across chunks is still recognized.
type ThinkingParser struct {
	reasoning strings.Builder
	message   strings.Builder
	tagBuffer strings.Builder // potential tag between '<' and '>'
	closeTag  string          // non-empty while inside a reasoning block
	inTag     bool
}

// NewThinkingParser creates a new thinking parser.
func NewThinkingParser() *ThinkingParser {
	return &ThinkingParser{}
}

// Parse consumes a chunk and returns the reasoning and message text it
// completed. Text of a tag still being read is held back until a later
// Parse or Flush.
func (p *ThinkingParser) Parse(content string) (reasoning, message string) {
	for _, ch := range content {
		switch {
		case ch == '<':
			if p.inTag {
				// The earlier '<' did not start a tag.
				p.write(p.tagBuffer.String())
			}
			p.inTag = true
			p.tagBuffer.Reset()
			p.tagBuffer.WriteRune(ch)
		case ch == '>' && p.inTag:
			p.tagBuffer.WriteRune(ch)
			p.inTag = false
			p.handleTag(p.tagBuffer.String())
			p.tagBuffer.Reset()
		case p.inTag:
			p.tagBuffer.WriteRune(ch)
		default:
			p.write(string(ch))
		}
	}
	return p.drain()
}

func (p *ThinkingParser) handleTag(tag string) {
	lower := strings.ToLower(tag)
	if p.closeTag == "" {
		if closing, ok := reasoningTags[lower]; ok {
			p.closeTag = closing
			return
		}
	} else if lower == p.closeTag {
		p.closeTag = ""
		return
	}
	p.write(tag)
}

func (p *ThinkingParser) write(s string) {
	if p.closeTag != "" {
		p.reasoning.WriteString(s)
		return
	}
	p.message.WriteString(s)
}

func (p *ThinkingParser) drain() (string, string) {
	r, m := p.reasoning.String(), p.message.String()
	p.reasoning.Reset()
	p.message.Reset()
	return r, m
}

// IsInThinking returns true while inside a reasoning block.
func (p *ThinkingParser) IsInThinking() bool {
	return p.closeTag != ""
}

// Flush returns buffered content, including an unfinished tag as plain text.
func (p *ThinkingParser) Flush() (reasoning, message string) {
	if p.inTag {
		p.write(p.tagBuffer.String())
		p.tagBuffer.Reset()
		p.inTag = false
	}
	return p.drain()
}

// Reset resets the parser state.
func (p *ThinkingParser) Reset() {
	p.reasoning.Reset()
	p.message.Reset()
	p.tagBuffer.Reset()
	p.closeTag = ""
	p.inTag = false
}

// Split separates a complete reply into trimmed reasoning and message text.
// Besides tagged blocks, a leading "Reasoning:" paragraph is treated as
// reasoning when followed by a blank line.
func Split(text string) (reasoning, message string) {
	p := NewThinkingParser()
	r1, m1 := p.Parse(text)
	r2, m2 := p.Flush()
	reasoning = strings.TrimSpace(r1 + r2)
	message = strings.TrimSpace(m1 + m2)

	if reasoning == "" {
		if head, rest, ok := strings.Cut(message, "\n\n"); ok {
			for _, prefix := range []string{"Reasoning:", "[REASONING]"} {
				if strings.HasPrefix(head, prefix) {
					reasoning = strings.TrimSpace(strings.TrimPrefix(head, prefix))
					message = strings.TrimSpace(rest)
					break
				}
			}
		}
	}
	return reasoning, message
}
