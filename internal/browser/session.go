package browser

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

// ErrTimeout is returned when an element did not appear, did not become
// clickable, or a page did not finish loading within the allowed wait.
var ErrTimeout = errors.New("browser wait timed out")

// Element is a clickable node located by FindClickable. It is only valid
// until the next navigation.
type Element struct {
	// Label describes what the element was located by, for log lines.
	Label string

	node *cdp.Node
}

// NewElement builds an Element without a backing DOM node, for sessions
// that are not backed by Chrome.
func NewElement(label string) Element {
	return Element{Label: label}
}

// Session is a controllable browser tab
type Session interface {
	// Navigate loads url and waits for the document to finish loading.
	Navigate(ctx context.Context, url string) error
	// WaitFor waits up to timeout for selector to match at least one node.
	// It reports false, with a nil error, when the wait runs out.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// FindClickable waits up to timeout for a visible, enabled element whose
	// text contains any of labels. It returns ErrTimeout when none appears.
	FindClickable(ctx context.Context, labels []string, timeout time.Duration) (Element, error)
	// Click clicks an element returned by FindClickable.
	Click(ctx context.Context, el Element) error
	// CurrentURL reports the URL of the loaded document.
	CurrentURL(ctx context.Context) (string, error)
	// HTML returns the serialized DOM of the loaded document.
	HTML(ctx context.Context) (string, error)
}

// SessionState says whether the browser profile is logged in
type SessionState int

const (
	Unauthenticated SessionState = iota
	Authenticated
)

func (s SessionState) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Authenticator answers whether the session is currently logged in.
// Implementations must re-check the live session on every call.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) (bool, error)
}

// LoginURLCheck treats the session as unauthenticated while the browser sits
// on the login page. Heylo redirects logged-in profiles away from it.
type LoginURLCheck struct {
	Session  Session
	LoginURL string
}

// IsAuthenticated implements Authenticator
func (c LoginURLCheck) IsAuthenticated(ctx context.Context) (bool, error) {
	current, err := c.Session.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	return !sameURL(current, c.LoginURL), nil
}

// State reports the session state as a SessionState
func State(ctx context.Context, a Authenticator) (SessionState, error) {
	ok, err := a.IsAuthenticated(ctx)
	if err != nil {
		return Unauthenticated, err
	}
	if ok {
		return Authenticated, nil
	}
	return Unauthenticated, nil
}

// sameURL compares host and path, ignoring scheme, query, fragment and a
// trailing slash. The login page picks up a ?redirect= query after a bounce.
func sameURL(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
	}
	return strings.EqualFold(ua.Host, ub.Host) &&
		strings.TrimRight(ua.Path, "/") == strings.TrimRight(ub.Path, "/")
}
