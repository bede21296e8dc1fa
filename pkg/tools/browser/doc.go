// Package browser drives a real browser for the operator agent.
//
// The agent never sees DOM selectors. It works from screenshots and issues
// coordinate-based actions, so the package exposes a small Driver contract:
//
//   - Screenshot returns the viewport as a base64 PNG
//   - Click, DoubleClick, Move, Drag and Scroll take viewport pixels
//   - Type and Keypress send keyboard input to the focused element
//   - Goto, Wait and CurrentURL cover navigation and pacing
//
// # Sessions
//
// A SessionManager keeps at most one driver per project name. Operations on
// the same project are serialized through Acquire; different projects run
// concurrently, each in its own browser.
//
//	rt := browser.NewPlaywrightRuntime(true, logger)
//	mgr := browser.NewSessionManager(rt.Launch)
//	drv, err := mgr.Start(ctx, "checkout", browser.SessionOptions{Headless: true})
//	...
//	drv, release, err := mgr.Acquire(ctx, "checkout")
//	defer release()
//
// PlaywrightDriver is the production Driver backed by Chromium.
package browser
