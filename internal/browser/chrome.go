package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/pfrederiksen/heylo-register/internal/logger"
	"github.com/pfrederiksen/heylo-register/internal/textnorm"
)

// clickableRetry is how often FindClickable re-checks a visible but
// disabled element.
const clickableRetry = 100 * time.Millisecond

// DefaultNavigateTimeout bounds a page load when Options leaves it unset.
const DefaultNavigateTimeout = 30 * time.Second

// Options configure the Chrome process
type Options struct {
	// ExecPath overrides Chrome discovery when set.
	ExecPath string
	// UserDataDir is the Chrome user-data directory holding the logged-in
	// profile. Chrome refuses to share it with a running instance.
	UserDataDir string
	// Profile is the profile directory inside UserDataDir ("Default").
	Profile  string
	Headless bool
	// NavigateTimeout bounds each page load; a page that has not loaded by
	// then fails with ErrTimeout. Zero means DefaultNavigateTimeout.
	NavigateTimeout time.Duration
}

func (o Options) navigateTimeout() time.Duration {
	if o.NavigateTimeout <= 0 {
		return DefaultNavigateTimeout
	}
	return o.NavigateTimeout
}

// Chrome is a Session backed by a single Chrome tab
type Chrome struct {
	navTimeout  time.Duration
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewChrome starts Chrome with opts and opens one tab. The browser lives
// until Close is called or ctx is cancelled.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 900),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.Profile != "" {
		allocOpts = append(allocOpts, chromedp.Flag("profile-directory", opts.Profile))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Default().Printf),
		chromedp.WithErrorf(logger.Default().Warnf),
	)

	// An empty Run starts the browser so launch errors surface here.
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	logger.Debug("Chrome started", logger.Fields{
		"user_data_dir": opts.UserDataDir,
		"profile":       opts.Profile,
		"headless":      opts.Headless,
	})

	return &Chrome{
		navTimeout:  opts.navigateTimeout(),
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Close shuts down the tab and the browser process
func (c *Chrome) Close() {
	c.cancelTab()
	c.cancelAlloc()
}

// run executes actions on the tab. The caller's ctx bounds the call, and a
// non-zero timeout turns an expired wait into ErrTimeout.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.tab)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// Navigate implements Session
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, c.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// WaitFor implements Session
func (c *Chrome) WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	err := c.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrTimeout):
		return false, nil
	default:
		return false, fmt.Errorf("waiting for %s: %w", selector, err)
	}
}

// FindClickable implements Session
func (c *Chrome) FindClickable(ctx context.Context, labels []string, timeout time.Duration) (Element, error) {
	if len(labels) == 0 {
		return Element{}, errors.New("no labels to search for")
	}
	xpath := labelXPath(labels)
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Element{}, ErrTimeout
		}

		var nodes []*cdp.Node
		err := c.run(ctx, remaining, chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.NodeVisible))
		if err != nil {
			return Element{}, err
		}
		if len(nodes) > 0 && enabled(nodes[0]) {
			return Element{Label: strings.Join(labels, " / "), node: nodes[0]}, nil
		}

		select {
		case <-ctx.Done():
			return Element{}, ctx.Err()
		case <-time.After(clickableRetry):
		}
	}
}

// Click implements Session
func (c *Chrome) Click(ctx context.Context, el Element) error {
	if el.node == nil {
		return fmt.Errorf("element %q has no DOM node", el.Label)
	}
	if err := c.run(ctx, 0, chromedp.MouseClickNode(el.node)); err != nil {
		return fmt.Errorf("clicking %q: %w", el.Label, err)
	}
	return nil
}

// CurrentURL implements Session
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, 0, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return loc, nil
}

// HTML implements Session
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page HTML: %w", err)
	}
	return html, nil
}

func enabled(n *cdp.Node) bool {
	if _, disabled := n.Attribute("disabled"); disabled {
		return false
	}
	v, _ := n.Attribute("aria-disabled")
	return v != "true"
}

// labelXPath builds an XPath selecting the first element whose own text
// contains any of labels, in any of their rendered spellings.
func labelXPath(labels []string) string {
	var conds []string
	for _, label := range labels {
		for _, v := range textnorm.Variants(label) {
			conds = append(conds, "contains(text(), "+xpathLiteral(v)+")")
		}
	}
	return "(//*[self::div or self::button or self::span or self::a][" +
		strings.Join(conds, " or ") + "])[1]"
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
