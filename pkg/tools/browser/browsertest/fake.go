// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/entrhq/operator/pkg/tools/browser"
	"github.com/entrhq/operator/pkg/types"
)

// Call is one recorded driver invocation.
type Call struct {
	Method string
	Args   []any
}

// Driver records every call and simulates navigation by tracking the URL
// passed to Goto. It is safe for concurrent use.
type Driver struct {
	mu       sync.Mutex
	url      string
	calls    []Call
	failOn   map[string]error
	page     *browser.PageContext
	closed   bool
	inFlight int
	maxSeen  int
	delay    time.Duration
	opts     browser.SessionOptions
}

var (
	_ browser.ManagedDriver = (*Driver)(nil)
	_ browser.PageDescriber = (*Driver)(nil)
)

// NewDriver returns a driver sitting on about:blank.
func NewDriver() *Driver {
	return &Driver{url: "about:blank", failOn: make(map[string]error)}
}

// FailOn makes every later call to method return err.
func (d *Driver) FailOn(method string, err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failOn[method] = err
	return d
}

// WithPage sets the context returned by PageContext.
func (d *Driver) WithPage(pc *browser.PageContext) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.page = pc
	return d
}

// WithDelay makes every action sleep, honoring ctx.
func (d *Driver) WithDelay(delay time.Duration) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
	return d
}

func (d *Driver) record(ctx context.Context, method string, args ...any) error {
	d.mu.Lock()
	d.calls = append(d.calls, Call{Method: method, Args: args})
	err := d.failOn[method]
	delay := d.delay
	d.inFlight++
	if d.inFlight > d.maxSeen {
		d.maxSeen = d.inFlight
	}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return err
}

// Calls returns a copy of the recorded calls.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Methods returns the recorded method names in order.
func (d *Driver) Methods() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	for i, c := range d.calls {
		out[i] = c.Method
	}
	return out
}

// Visited returns every URL passed to Goto, in order.
func (d *Driver) Visited() []string {
	var urls []string
	for _, c := range d.Calls() {
		if c.Method == "Goto" {
			urls = append(urls, c.Args[0].(string))
		}
	}
	return urls
}

// Options returns the session options the driver was launched with.
func (d *Driver) Options() browser.SessionOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// MaxConcurrent is the highest number of overlapping calls observed.
func (d *Driver) MaxConcurrent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxSeen
}

// SetURL moves the page without recording a call, e.g. to simulate a
// redirect triggered by a click.
func (d *Driver) SetURL(u string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = u
}

func (d *Driver) Screenshot(ctx context.Context) (string, error) {
	if err := d.record(ctx, "Screenshot"); err != nil {
		return "", err
	}
	return PNG(), nil
}

func (d *Driver) Click(ctx context.Context, x, y int, button string) error {
	return d.record(ctx, "Click", x, y, button)
}

func (d *Driver) DoubleClick(ctx context.Context, x, y int) error {
	return d.record(ctx, "DoubleClick", x, y)
}

func (d *Driver) Type(ctx context.Context, text string) error {
	return d.record(ctx, "Type", text)
}

func (d *Driver) Keypress(ctx context.Context, keys []string) error {
	return d.record(ctx, "Keypress", keys)
}

func (d *Driver) Scroll(ctx context.Context, x, y, dx, dy int) error {
	return d.record(ctx, "Scroll", x, y, dx, dy)
}

func (d *Driver) Wait(ctx context.Context, ms int) error {
	return d.record(ctx, "Wait", ms)
}

func (d *Driver) Move(ctx context.Context, x, y int) error {
	return d.record(ctx, "Move", x, y)
}

func (d *Driver) Drag(ctx context.Context, path []types.Point) error {
	return d.record(ctx, "Drag", path)
}

func (d *Driver) Goto(ctx context.Context, url string) error {
	if err := d.record(ctx, "Goto", url); err != nil {
		return err
	}
	d.SetURL(url)
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failOn["CurrentURL"]; err != nil {
		return "", err
	}
	return d.url, nil
}

func (d *Driver) PageContext(ctx context.Context) (*browser.PageContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page == nil {
		return nil, fmt.Errorf("no page context")
	}
	pc := *d.page
	pc.URL = d.url
	return &pc, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return d.failOn["Close"]
}

var (
	pngOnce sync.Once
	pngB64  string
)

// PNG returns a base64-encoded 4x4 PNG.
func PNG() string {
	pngOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		for x := 0; x < 4; x++ {
			for y := 0; y < 4; y++ {
				img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
			}
		}
		var buf bytes.Buffer
		_ = png.Encode(&buf, img)
		pngB64 = base64.StdEncoding.EncodeToString(buf.Bytes())
	})
	return pngB64
}

// Factory returns a DriverFactory that hands out fresh fakes and records
// them in launched.
func Factory(launched *[]*Driver, mu *sync.Mutex) browser.DriverFactory {
	return func(ctx context.Context, opts browser.SessionOptions) (browser.ManagedDriver, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := NewDriver()
		d.opts = opts
		mu.Lock()
		*launched = append(*launched, d)
		mu.Unlock()
		return d, nil
	}
}
