// Package browser drives a real Chrome over the DevTools protocol. One Chrome
// value owns one tab and must only be used from a single goroutine.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"setupsync/pkg/config"
	"setupsync/pkg/logger"
)

// presencePoll is how often Present re-queries while waiting.
const presencePoll = 250 * time.Millisecond

// Chrome is a browser session with a persistent profile directory, so a login
// done once is reused by later runs.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      logger.Logger
}

// Options returns the exec allocator options for cfg.
func Options(cfg config.BrowserConfig, userAgent string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	return opts
}

// Launch starts Chrome and opens a tab. When downloadDir is set, downloads
// triggered in the page are saved there.
func Launch(ctx context.Context, cfg config.BrowserConfig, userAgent, downloadDir string, log logger.Logger) (*Chrome, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), Options(cfg, userAgent)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	c := &Chrome{ctx: tabCtx, cancel: cancel, allocCancel: allocCancel, logger: log}

	actions := []chromedp.Action{network.Enable()}
	if downloadDir != "" {
		actions = append(actions, cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true))
	}
	// The first Run allocates the browser, so it must use the tab context
	// itself; a derived context would take the browser down when it ends.
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx, actions...)
	stop()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	log.InfoWithFields("Browser started", map[string]interface{}{
		"headless":     cfg.Headless,
		"profile":      cfg.UserDataDir,
		"download_dir": downloadDir,
	})
	return c, nil
}

// Close shuts the tab and the browser process.
func (c *Chrome) Close() {
	c.cancel()
	c.allocCancel()
}

// run executes actions on the tab, stopping early when ctx ends.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (c *Chrome) runWithTimeout(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		return c.run(ctx, actions...)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.run(tctx, actions...)
}

// Navigate loads url and waits for the document body.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	c.logger.DebugWithFields("Navigating", map[string]interface{}{"url": url})
	return c.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// CurrentURL returns the address of the loaded document.
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := c.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// WaitPresent waits up to timeout for an element matching the CSS selector
// to exist in the document.
func (c *Chrome) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	return c.runWithTimeout(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// ScrollToBottom scrolls the window to the current end of the document and
// returns the document height.
func (c *Chrome) ScrollToBottom(ctx context.Context) (int64, error) {
	var height int64
	err := c.run(ctx, chromedp.Evaluate(
		`window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`, &height))
	return height, err
}

// ScrollHeight returns the document height.
func (c *Chrome) ScrollHeight(ctx context.Context) (int64, error) {
	var height int64
	err := c.run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &height))
	return height, err
}

// CountElements counts elements matching the CSS selector whose text contains
// text. An empty text counts every match.
func (c *Chrome) CountElements(ctx context.Context, selector, text string) (int, error) {
	script, err := countScript(selector, text)
	if err != nil {
		return 0, err
	}
	var n int
	err = c.run(ctx, chromedp.Evaluate(script, &n))
	return n, err
}

func countScript(selector, text string) (string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", err
	}
	txt, err := json.Marshal(text)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
	const text = %s;
	return Array.from(document.querySelectorAll(%s))
		.filter(el => !text || el.textContent.includes(text))
		.length;
})()`, txt, sel), nil
}

// PageHTML returns the rendered document.
func (c *Chrome) PageHTML(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Click clicks the first element matching the XPath expression, waiting up to
// timeout for it to become visible.
func (c *Chrome) Click(ctx context.Context, xpath string, timeout time.Duration) error {
	return c.runWithTimeout(ctx, timeout, chromedp.Click(xpath, chromedp.BySearch))
}

// Present reports whether an element matching the XPath expression appears
// within timeout. A zero timeout checks once.
func (c *Chrome) Present(ctx context.Context, xpath string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		var nodes []*cdp.Node
		if err := c.run(ctx, chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
			return false, err
		}
		if len(nodes) > 0 {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(presencePoll):
		}
	}
}

// Cookies exports the session cookies that apply to url.
func (c *Chrome) Cookies(ctx context.Context, url string) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithURLs([]string{url}).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read browser cookies: %w", err)
	}
	return toHTTPCookies(cookies), nil
}

func toHTTPCookies(in []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, ck := range in {
		if ck == nil {
			continue
		}
		out = append(out, &http.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HttpOnly: ck.HTTPOnly,
		})
	}
	return out
}
