// Package controller drives one heylo-register run: it waits for a logged-in
// session, polls for the event, registers, and keeps the browser open for the
// operator to check the result.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/heylo-register/internal/browser"
	"github.com/pfrederiksen/heylo-register/internal/discovery"
	"github.com/pfrederiksen/heylo-register/internal/event"
	"github.com/pfrederiksen/heylo-register/internal/logger"
	"github.com/pfrederiksen/heylo-register/internal/notifier"
	"github.com/pfrederiksen/heylo-register/internal/register"
)

// Config holds everything a run needs to know about its target
type Config struct {
	LoginURL   string
	ListingURL string
	EventKey   string
	Rule       event.Rule
	Steps      []register.Step

	// AuthPollInterval paces the checks while the operator logs in.
	AuthPollInterval time.Duration
	// RetryPause separates failed registration attempts.
	RetryPause time.Duration
	// HoldInterval paces the heartbeat once registration has succeeded.
	HoldInterval time.Duration
	// AutoStart skips the confirmation prompt for an already logged-in session.
	AutoStart bool
}

// Deps are the collaborators of a Controller
type Deps struct {
	Session   browser.Session
	Auth      browser.Authenticator
	Loop      *discovery.Loop
	Sequencer *register.Sequencer
	Operator  Operator
	Notifier  notifier.Notifier
}

// Controller owns the browser session for the whole run
type Controller struct {
	cfg  Config
	deps Deps
}

// New creates a Controller. Auth defaults to a login-URL check on the session.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Session == nil {
		return nil, errors.New("controller needs a browser session")
	}
	if deps.Loop == nil || deps.Sequencer == nil || deps.Operator == nil {
		return nil, errors.New("controller needs a discovery loop, a sequencer and an operator")
	}
	if err := cfg.Rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule for %s: %w", cfg.EventKey, err)
	}
	if err := register.ValidateSteps(cfg.Steps); err != nil {
		return nil, err
	}
	if cfg.AuthPollInterval <= 0 {
		cfg.AuthPollInterval = time.Second
	}
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = 3 * time.Second
	}
	if cfg.HoldInterval <= 0 {
		cfg.HoldInterval = 30 * time.Second
	}
	if deps.Auth == nil {
		deps.Auth = browser.LoginURLCheck{Session: deps.Session, LoginURL: cfg.LoginURL}
	}
	return &Controller{cfg: cfg, deps: deps}, nil
}

// EventURL is the page of event id under listingURL
func EventURL(listingURL, id string) string {
	return strings.TrimRight(listingURL, "/") + "/-" + id
}

// Run executes the whole flow. It only returns once ctx is done, or when
// the operator's input is closed while a confirmation is pending.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.openLogin(ctx); err != nil {
		return err
	}
	if err := c.authenticate(ctx); err != nil {
		return err
	}

	c.deps.Operator.Status("Waiting for event to be published...")
	logger.Info("Waiting for event to be published", logger.Fields{
		"event": c.cfg.EventKey,
		"rule":  c.cfg.Rule.String(),
	})
	id, err := c.deps.Loop.Discover(ctx, c.deps.Session, c.cfg.ListingURL, c.cfg.Rule)
	if err != nil {
		return err
	}

	eventURL := EventURL(c.cfg.ListingURL, id)
	c.deps.Operator.Status("Event found! Attempting to register...")

	attempts, err := c.registerUntilDone(ctx, eventURL)
	if err != nil {
		return err
	}

	c.deps.Operator.Status("Successfully registered for the event!")
	logger.Info("Registered", logger.Fields{"event_id": id, "url": eventURL, "attempts": attempts})
	c.notify(ctx, notifier.Registration{
		EventKey: c.cfg.EventKey,
		Rule:     c.cfg.Rule,
		EventID:  id,
		EventURL: eventURL,
		Attempts: attempts,
		At:       time.Now(),
	})

	return c.holdOpen(ctx)
}

// openLogin loads the login page. A logged-in profile is redirected away
// from it, which is what the authentication check relies on.
func (c *Controller) openLogin(ctx context.Context) error {
	for {
		err := c.deps.Session.Navigate(ctx, c.cfg.LoginURL)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("Could not open login page, retrying", logger.Fields{"url": c.cfg.LoginURL}, err)
		if err := sleep(ctx, c.cfg.RetryPause); err != nil {
			return err
		}
	}
}

// authenticate blocks until the session is logged in. Logging in is always
// left to the operator.
func (c *Controller) authenticate(ctx context.Context) error {
	state, err := c.state(ctx)
	if err != nil {
		return err
	}

	if state == browser.Authenticated {
		if c.cfg.AutoStart {
			return nil
		}
		return c.deps.Operator.Confirm(ctx, "Press Enter to start registration (you're already logged in)...")
	}

	c.deps.Operator.Status("Please log in manually in the browser window; waiting for the login to complete...")
	logger.Warn("Session is not authenticated", logger.Fields{"login_url": c.cfg.LoginURL})

	for state != browser.Authenticated {
		if err := sleep(ctx, c.cfg.AuthPollInterval); err != nil {
			return err
		}
		if state, err = c.state(ctx); err != nil {
			return err
		}
	}

	logger.Info("Login detected", nil)
	return nil
}

// state checks the session, treating a failed check as unauthenticated so a
// flaky browser call cannot end the run.
func (c *Controller) state(ctx context.Context) (browser.SessionState, error) {
	state, err := browser.State(ctx, c.deps.Auth)
	if err != nil {
		if ctx.Err() != nil {
			return browser.Unauthenticated, ctx.Err()
		}
		logger.Error("Authentication check failed", nil, err)
		return browser.Unauthenticated, nil
	}
	return state, nil
}

// registerUntilDone replays the whole registration flow, from navigation,
// until an attempt completes. It returns the number of attempts made.
func (c *Controller) registerUntilDone(ctx context.Context, eventURL string) (int, error) {
	for attempt := 1; ; attempt++ {
		logger.SetGauge("register.current_attempt", float64(attempt))
		res := c.deps.Sequencer.Register(ctx, c.deps.Session, eventURL, c.cfg.Steps)
		if res.OK() {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}

		logger.Error("Registration attempt failed", logger.Fields{
			"attempt": attempt,
			"state":   res.State.String(),
			"clicked": res.Clicked,
			"url":     eventURL,
		}, res.Err)
		c.deps.Operator.Status(fmt.Sprintf("Registration button not found or not clickable (%v); trying again in %s...",
			res.Err, c.cfg.RetryPause))

		if err := sleep(ctx, c.cfg.RetryPause); err != nil {
			return attempt, err
		}
	}
}

func (c *Controller) notify(ctx context.Context, reg notifier.Registration) {
	if c.deps.Notifier == nil {
		return
	}
	if err := c.deps.Notifier.Notify(ctx, reg); err != nil {
		logger.Error("Notification failed", logger.Fields{"event_id": reg.EventID}, err)
	}
}

// holdOpen keeps the session alive until ctx is cancelled
func (c *Controller) holdOpen(ctx context.Context) error {
	c.deps.Operator.Status("Keeping window open. Press Ctrl+C to exit...")

	ticker := time.NewTicker(c.cfg.HoldInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			logger.Debug("Holding session open", nil)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
