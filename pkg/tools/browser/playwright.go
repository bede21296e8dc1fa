package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/operator/pkg/logging"
	"github.com/entrhq/operator/pkg/types"
)

// PlaywrightRuntime owns the Playwright driver process shared by every
// browser the process launches.
type PlaywrightRuntime struct {
	install bool
	logger  *logging.Logger

	once sync.Once
	mu   sync.Mutex
	pw   *playwright.Playwright
	err  error
}

// NewPlaywrightRuntime creates a runtime. When install is true the browser
// binaries are downloaded on first use if missing.
func NewPlaywrightRuntime(install bool, logger *logging.Logger) *PlaywrightRuntime {
	if logger == nil {
		logger = logging.Nop()
	}
	return &PlaywrightRuntime{install: install, logger: logger}
}

func (r *PlaywrightRuntime) start() (*playwright.Playwright, error) {
	r.once.Do(func() {
		// stdout carries the stdio protocol, keep the installer quiet
		opts := &playwright.RunOptions{
			Browsers: []string{"chromium"},
			Verbose:  false,
			Stdout:   io.Discard,
			Stderr:   io.Discard,
		}
		if r.install {
			if err := playwright.Install(opts); err != nil {
				r.err = fmt.Errorf("failed to install playwright: %w", err)
				return
			}
		}
		pw, err := playwright.Run(opts)
		if err != nil {
			r.err = fmt.Errorf("failed to start playwright: %w", err)
			return
		}
		r.mu.Lock()
		r.pw = pw
		r.mu.Unlock()
		r.logger.Infof("playwright started")
	})
	return r.pw, r.err
}

// Launch starts Chromium with a single page. It satisfies DriverFactory.
func (r *PlaywrightRuntime) Launch(ctx context.Context, opts SessionOptions) (ManagedDriver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := r.start()
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			fmt.Sprintf("--window-size=%d,%d", opts.Viewport.Width, opts.Viewport.Height),
			"--disable-extensions",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	if opts.Filter != nil {
		if err := bctx.Route("**/*", r.guard(opts)); err != nil {
			_ = bctx.Close()
			_ = browser.Close()
			return nil, fmt.Errorf("failed to install request filter: %w", err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(opts.Timeout)

	return &PlaywrightDriver{
		browser: browser,
		context: bctx,
		page:    page,
		logger:  r.logger.With("driver"),
	}, nil
}

// guard aborts requests to blocked hosts and lets the rest through.
func (r *PlaywrightRuntime) guard(opts SessionOptions) func(playwright.Route) {
	return func(route playwright.Route) {
		target := route.Request().URL()
		if opts.BlocksRequest(target) {
			r.logger.Warnf("blocking request to %s", target)
			if err := route.Abort("blockedbyclient"); err != nil {
				r.logger.Debugf("abort %s: %v", target, err)
			}
			return
		}
		if err := route.Continue(); err != nil {
			r.logger.Debugf("continue %s: %v", target, err)
		}
	}
}

// Stop shuts down the Playwright driver process.
func (r *PlaywrightRuntime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pw == nil {
		return nil
	}
	err := r.pw.Stop()
	r.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// PlaywrightDriver implements Driver and PageDescriber on one Chromium page.
type PlaywrightDriver struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	logger  *logging.Logger

	closeOnce sync.Once
}

var (
	_ ManagedDriver = (*PlaywrightDriver)(nil)
	_ PageDescriber = (*PlaywrightDriver)(nil)
)

func (d *PlaywrightDriver) Screenshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	png, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// Click presses a mouse button at (x, y). The pseudo-buttons back and
// forward walk history; wheel scrolls by (x, y).
func (d *PlaywrightDriver) Click(ctx context.Context, x, y int, button string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch button {
	case "back":
		if _, err := d.page.GoBack(); err != nil {
			return fmt.Errorf("go back failed: %w", err)
		}
		return nil
	case "forward":
		if _, err := d.page.GoForward(); err != nil {
			return fmt.Errorf("go forward failed: %w", err)
		}
		return nil
	case "wheel":
		return d.page.Mouse().Wheel(float64(x), float64(y))
	}

	mb := playwright.MouseButton("left")
	if button == "right" || button == "middle" {
		mb = playwright.MouseButton(button)
	}
	if err := d.page.Mouse().Click(float64(x), float64(y), playwright.MouseClickOptions{Button: &mb}); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) DoubleClick(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.Mouse().Dblclick(float64(x), float64(y)); err != nil {
		return fmt.Errorf("double click failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.Keyboard().Type(text); err != nil {
		return fmt.Errorf("type failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) Keypress(ctx context.Context, keys []string) error {
	for _, key := range KeyPresses(keys) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.page.Keyboard().Press(key); err != nil {
			return fmt.Errorf("keypress %q failed: %w", key, err)
		}
	}
	return nil
}

func (d *PlaywrightDriver) Scroll(ctx context.Context, x, y, dx, dy int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.Mouse().Move(float64(x), float64(y)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	if _, err := d.page.Evaluate("([dx, dy]) => window.scrollBy(dx, dy)", []int{dx, dy}); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) Wait(ctx context.Context, ms int) error {
	if ms <= 0 {
		ms = DefaultWaitMs
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *PlaywrightDriver) Move(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.Mouse().Move(float64(x), float64(y)); err != nil {
		return fmt.Errorf("move failed: %w", err)
	}
	return nil
}

// Drag presses the left button at the first point, moves through the rest
// and releases. An empty path is a no-op.
func (d *PlaywrightDriver) Drag(ctx context.Context, path []types.Point) error {
	if len(path) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	mouse := d.page.Mouse()
	if err := mouse.Move(float64(path[0].X), float64(path[0].Y)); err != nil {
		return fmt.Errorf("drag failed: %w", err)
	}
	if err := mouse.Down(); err != nil {
		return fmt.Errorf("drag failed: %w", err)
	}
	for _, p := range path[1:] {
		if err := ctx.Err(); err != nil {
			_ = mouse.Up()
			return err
		}
		if err := mouse.Move(float64(p.X), float64(p.Y)); err != nil {
			_ = mouse.Up()
			return fmt.Errorf("drag failed: %w", err)
		}
	}
	return mouse.Up()
}

// Goto navigates and waits for DOMContentLoaded. A page that is still
// loading when the timeout fires is left as is; the next screenshot shows
// whatever rendered.
func (d *PlaywrightDriver) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(DefaultGotoTimeout),
	})
	if err != nil {
		if strings.Contains(err.Error(), "Timeout") {
			d.logger.Warnf("navigation to %s timed out, continuing with partial load", url)
			return nil
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

const clickablesScript = `() => {
  const visible = el => {
    const r = el.getBoundingClientRect();
    const s = window.getComputedStyle(el);
    return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none' &&
      r.top < window.innerHeight && r.bottom > 0;
  };
  const center = el => {
    const r = el.getBoundingClientRect();
    return { x: Math.round(r.left + r.width / 2), y: Math.round(r.top + r.height / 2) };
  };
  const pick = (sel, kind, limit) => Array.from(document.querySelectorAll(sel))
    .filter(visible)
    .map(el => ({ kind, label: (el.innerText || el.placeholder || el.value || '').trim().substring(0, 30), ...center(el) }))
    .filter(c => c.label.length > 0)
    .slice(0, limit);
  return [
    ...pick('input[type="search"], input[name*="search"], input[placeholder*="earch"]', 'Search bar', 1),
    ...pick('button, a.button, [role="button"]', 'Button', 5),
    ...pick('a[href]', 'Link', 5),
  ];
}`

// PageContext parses the page HTML and adds visible clickable elements
// with their centers.
func (d *PlaywrightDriver) PageContext(ctx context.Context) (*PageContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := d.page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	pc, err := ParsePageContext(content, DefaultMaxLinks)
	if err != nil {
		return nil, err
	}
	pc.URL = d.page.URL()
	if title, err := d.page.Title(); err == nil && title != "" {
		pc.Title = title
	}

	raw, err := d.page.Evaluate(clickablesScript)
	if err != nil {
		d.logger.Debugf("clickable scan failed: %v", err)
		return pc, nil
	}
	// Evaluate hands back generic maps; round-trip through JSON to type them
	if data, err := json.Marshal(raw); err == nil {
		var clickables []Clickable
		if json.Unmarshal(data, &clickables) == nil {
			pc.Clickables = clickables
		}
	}
	return pc, nil
}

// Close releases the page, its context and the browser.
func (d *PlaywrightDriver) Close() error {
	var errs []error
	d.closeOnce.Do(func() {
		if err := d.page.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := d.context.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := d.browser.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("errors closing browser: %v", errs)
	}
	return nil
}
