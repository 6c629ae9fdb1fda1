// Package browsertest provides an in-memory browser.Session for tests.
package browsertest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/heylo-register/internal/browser"
)

// Session is a scripted browser.Session. Pages and Clickable decide what the
// "browser" shows; every call is recorded for assertions.
type Session struct {
	// Pages returns the HTML served for url on its nth visit (1-based).
	Pages func(url string, visit int) string
	// NavigateErr, when set, can fail the nth navigation overall (1-based).
	NavigateErr func(url string, n int) error
	// Clickable decides whether an element matching labels is clickable on
	// url, given the clicks already made since the last navigation. It
	// returns the label that was found. Nil means everything is clickable.
	Clickable func(url string, clicked []string, labels []string) (string, bool)
	// OnNavigate runs after every successful navigation.
	OnNavigate func(n int)
	// AuthenticatedAfter simulates a manual login: once CurrentURL has been
	// called that many times while on LoginURL, the session moves to HomeURL.
	// Zero leaves the URL untouched.
	AuthenticatedAfter int
	LoginURL           string
	HomeURL            string

	mu          sync.Mutex
	url         string
	visits      map[string]int
	navigations []string
	clicks      []string
	sinceNav    []string
	urlCalls    int
}

// New creates a Session that starts on startURL
func New(startURL string) *Session {
	return &Session{url: startURL, visits: make(map[string]int)}
}

// Navigate implements browser.Session
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.navigations = append(s.navigations, url)
	n := len(s.navigations)
	hook := s.NavigateErr
	s.mu.Unlock()

	if hook != nil {
		if err := hook(url, n); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.url = url
	if s.visits == nil {
		s.visits = make(map[string]int)
	}
	s.visits[url]++
	s.sinceNav = nil
	onNav := s.OnNavigate
	s.mu.Unlock()

	if onNav != nil {
		onNav(n)
	}
	return nil
}

func (s *Session) page() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Pages == nil {
		return ""
	}
	return s.Pages(s.url, s.visits[s.url])
}

// WaitFor implements browser.Session. It never sleeps: a selector that does
// not match the current page is reported as an expired wait.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.page()))
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

// FindClickable implements browser.Session
func (s *Session) FindClickable(ctx context.Context, labels []string, timeout time.Duration) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return browser.Element{}, err
	}
	if len(labels) == 0 {
		return browser.Element{}, errors.New("no labels to search for")
	}

	s.mu.Lock()
	url := s.url
	clicked := append([]string(nil), s.sinceNav...)
	s.mu.Unlock()

	if s.Clickable == nil {
		return browser.NewElement(labels[0]), nil
	}
	label, ok := s.Clickable(url, clicked, labels)
	if !ok {
		return browser.Element{}, browser.ErrTimeout
	}
	return browser.NewElement(label), nil
}

// Click implements browser.Session
func (s *Session) Click(ctx context.Context, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, el.Label)
	s.sinceNav = append(s.sinceNav, el.Label)
	return nil
}

// CurrentURL implements browser.Session
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urlCalls++
	if s.AuthenticatedAfter > 0 && s.urlCalls > s.AuthenticatedAfter && s.url == s.LoginURL {
		s.url = s.HomeURL
	}
	return s.url, nil
}

// HTML implements browser.Session
func (s *Session) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page(), nil
}

// Navigations returns every URL navigated to, in order, including failed ones
func (s *Session) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Clicks returns the labels of every click, in order
func (s *Session) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

// SetURL moves the session to url without counting a navigation
func (s *Session) SetURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
}
