// Package discovery polls the Heylo listing page until the awaited event is
// published.
//
// Publication time is unknown in advance, so the loop has no retry limit:
// every failure short of cancellation is logged and retried after the poll
// interval.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pfrederiksen/heylo-register/internal/browser"
	"github.com/pfrederiksen/heylo-register/internal/event"
	"github.com/pfrederiksen/heylo-register/internal/logger"
	"github.com/pfrederiksen/heylo-register/internal/scraper"
)

// ErrNotYetPublished is the retry cause when the listing has no matching card.
var ErrNotYetPublished = errors.New("event not yet published")

// Kind classifies the result of one poll
type Kind int

const (
	Found Kind = iota
	NotYetPublished
	TransientError
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case NotYetPublished:
		return "not_yet_published"
	default:
		return "transient_error"
	}
}

// Outcome is the result of a single poll
type Outcome struct {
	Kind    Kind
	EventID string
	Err     error
}

// Loop polls a listing page
type Loop struct {
	Scraper       *scraper.Scraper
	PollInterval  time.Duration
	RenderTimeout time.Duration
	// HeartbeatEvery logs an info line every n unsuccessful polls; 0 disables it.
	HeartbeatEvery int
	Metrics        *logger.Metrics
}

func (l *Loop) metrics() *logger.Metrics {
	if l.Metrics != nil {
		return l.Metrics
	}
	return logger.DefaultMetrics()
}

// Poll loads listingURL once and looks for rule's card.
func (l *Loop) Poll(ctx context.Context, s browser.Session, listingURL string, rule event.Rule) Outcome {
	if err := s.Navigate(ctx, listingURL); err != nil {
		return Outcome{Kind: TransientError, Err: err}
	}

	rendered, err := s.WaitFor(ctx, scraper.CardSelector, l.RenderTimeout)
	if err != nil {
		return Outcome{Kind: TransientError, Err: err}
	}
	if !rendered {
		// An empty listing is normal before publication.
		return Outcome{Kind: NotYetPublished}
	}

	html, err := s.HTML(ctx)
	if err != nil {
		return Outcome{Kind: TransientError, Err: err}
	}
	doc, err := scraper.Parse(html)
	if err != nil {
		return Outcome{Kind: TransientError, Err: err}
	}

	if id, ok := l.Scraper.Match(doc, rule); ok {
		return Outcome{Kind: Found, EventID: id}
	}
	return Outcome{Kind: NotYetPublished}
}

// Discover polls until rule's event appears on listingURL and returns its
// identifier. It returns an error only when ctx is done.
func (l *Loop) Discover(ctx context.Context, s browser.Session, listingURL string, rule event.Rule) (string, error) {
	m := l.metrics()
	polls := 0

	operation := func() (string, error) {
		polls++
		start := time.Now()
		out := l.Poll(ctx, s, listingURL, rule)
		m.IncrCounter("discovery.polls")
		m.RecordTiming("discovery.poll", time.Since(start))

		switch out.Kind {
		case Found:
			return out.EventID, nil
		case NotYetPublished:
			return "", ErrNotYetPublished
		default:
			if ctx.Err() != nil {
				return "", backoff.Permanent(ctx.Err())
			}
			return "", out.Err
		}
	}

	notify := func(err error, next time.Duration) {
		if errors.Is(err, ErrNotYetPublished) {
			logger.Debug("Event not listed yet", logger.Fields{"poll": polls, "retry_in": next.String()})
			if l.HeartbeatEvery > 0 && polls%l.HeartbeatEvery == 0 {
				logger.Info("Still waiting for event to be published", logger.Fields{"polls": polls, "rule": rule.String()})
			}
			return
		}
		m.IncrCounter("discovery.transient_errors")
		logger.Error("Poll failed, retrying", logger.Fields{"poll": polls, "retry_in": next.String()}, err)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(l.PollInterval), ctx)
	id, err := backoff.RetryNotifyWithData[string](operation, b, notify)
	if err != nil {
		return "", fmt.Errorf("discovery stopped after %d polls: %w", polls, err)
	}

	logger.Info("Event found", logger.Fields{"event_id": id, "polls": polls})
	return id, nil
}
