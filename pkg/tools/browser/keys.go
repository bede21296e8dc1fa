package browser

import "strings"

var keyNames = map[string]string{
	"CTRL":       "Control",
	"CONTROL":    "Control",
	"CMD":        "Meta",
	"META":       "Meta",
	"SUPER":      "Meta",
	"ESC":        "Escape",
	"ESCAPE":     "Escape",
	"ALT":        "Alt",
	"OPTION":     "Alt",
	"SHIFT":      "Shift",
	"TAB":        "Tab",
	"ENTER":      "Enter",
	"RETURN":     "Enter",
	"BACKSPACE":  "Backspace",
	"DELETE":     "Delete",
	"HOME":       "Home",
	"END":        "End",
	"PAGEUP":     "PageUp",
	"PAGEDOWN":   "PageDown",
	"ARROWUP":    "ArrowUp",
	"ARROWDOWN":  "ArrowDown",
	"ARROWLEFT":  "ArrowLeft",
	"ARROWRIGHT": "ArrowRight",
	"UP":         "ArrowUp",
	"DOWN":       "ArrowDown",
	"LEFT":       "ArrowLeft",
	"RIGHT":      "ArrowRight",
	"SPACE":      " ",
}

// MapKey converts a model-issued key name to the name Playwright expects.
// Unknown names pass through unchanged.
func MapKey(key string) string {
	if mapped, ok := keyNames[strings.ToUpper(strings.TrimSpace(key))]; ok {
		return mapped
	}
	return key
}

func isModifier(key string) bool {
	switch key {
	case "Control", "Meta", "Alt", "Shift":
		return true
	}
	return false
}

// KeyPresses turns a keypress action into the sequence of Playwright press
// strings. ["CTRL", "A"] becomes a single "Control+A" chord; keys without a
// leading modifier are pressed one after another.
func KeyPresses(keys []string) []string {
	mapped := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		mapped = append(mapped, MapKey(k))
	}
	if len(mapped) > 1 && isModifier(mapped[0]) {
		return []string{strings.Join(mapped, "+")}
	}
	return mapped
}
