package notifier

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/pfrederiksen/heylo-register/internal/event"
)

// Registration describes a completed registration
type Registration struct {
	EventKey string
	Rule     event.Rule
	EventID  string
	EventURL string
	Attempts int
	At       time.Time
}

// Notifier defines the interface for announcing a registration
type Notifier interface {
	// Notify announces reg
	Notify(ctx context.Context, reg Registration) error
}

// formatMessage renders reg as a short Telegram-compatible HTML message
func formatMessage(reg Registration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ <b>Registered: %s</b>\n", html.EscapeString(reg.Rule.Title))
	if reg.EventKey != "" {
		fmt.Fprintf(&b, "Event: %s\n", html.EscapeString(reg.EventKey))
	}
	fmt.Fprintf(&b, "Attempts: %d\n", reg.Attempts)
	if !reg.At.IsZero() {
		fmt.Fprintf(&b, "At: %s\n", reg.At.Format("Mon 02 Jan 15:04:05"))
	}
	fmt.Fprintf(&b, "%s", html.EscapeString(reg.EventURL))
	return b.String()
}

// Multi fans a registration out to several notifiers. Every notifier is
// tried; the first error is returned.
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(ctx context.Context, reg Registration) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, reg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
