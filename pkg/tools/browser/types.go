package browser

import (
	"context"
	"time"

	"github.com/entrhq/operator/pkg/security/domain"
	"github.com/entrhq/operator/pkg/types"
)

// Driver is the set of primitive browser operations the agent loop issues.
// Coordinates are viewport pixels.
type Driver interface {
	// Screenshot returns the visible viewport as a base64-encoded PNG.
	Screenshot(ctx context.Context) (string, error)
	Click(ctx context.Context, x, y int, button string) error
	DoubleClick(ctx context.Context, x, y int) error
	Type(ctx context.Context, text string) error
	// Keypress presses keys in order; a leading modifier turns the list into
	// a chord, e.g. ["CTRL", "A"].
	Keypress(ctx context.Context, keys []string) error
	Scroll(ctx context.Context, x, y, dx, dy int) error
	// Wait sleeps for ms milliseconds; ms <= 0 waits DefaultWaitMs.
	Wait(ctx context.Context, ms int) error
	Move(ctx context.Context, x, y int) error
	Drag(ctx context.Context, path []types.Point) error
	Goto(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
}

// PageDescriber is implemented by drivers that can summarize the current
// page for the model without a screenshot.
type PageDescriber interface {
	PageContext(ctx context.Context) (*PageContext, error)
}

// ManagedDriver is a Driver that owns a browser and must be closed.
type ManagedDriver interface {
	Driver
	Close() error
}

// DriverFactory launches a fresh browser for a session.
type DriverFactory func(ctx context.Context, opts SessionOptions) (ManagedDriver, error)

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout sets the default timeout for operations (in milliseconds)
	Timeout float64

	// Filter aborts every request the page makes to a blocked host,
	// including subresources, frames and redirects. Nil blocks nothing.
	Filter *domain.Filter
}

// BlocksRequest reports whether a request to rawURL must be aborted.
// Only the block-list applies; the allow-list confines navigation, not the
// resources a permitted page loads.
func (o SessionOptions) BlocksRequest(rawURL string) bool {
	return o.Filter != nil && o.Filter.IsBlocked(rawURL)
}

// withDefaults fills unset fields.
func (o SessionOptions) withDefaults() SessionOptions {
	if o.Viewport == nil {
		o.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Link represents a hyperlink with text and URL.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// SessionInfo contains metadata about a browser session.
type SessionInfo struct {
	Project    string    `json:"project"`
	CurrentURL string    `json:"current_url"`
	Headless   bool      `json:"headless"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Default values for various operations
const (
	DefaultTimeout        = 30000.0 // 30 seconds in milliseconds
	DefaultGotoTimeout    = 10000.0
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxSessions    = 5
	DefaultIdleTimeout    = 30 * time.Minute
	DefaultMaxLinks       = 15
	DefaultWaitMs         = 1000
)
