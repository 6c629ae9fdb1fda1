package notifier

import (
	"context"
	"fmt"
	"io"
)

// DryRunNotifier prints the message that would be sent
type DryRunNotifier struct {
	out io.Writer
}

// NewDryRunNotifier creates a new dry-run notifier writing to out
func NewDryRunNotifier(out io.Writer) *DryRunNotifier {
	return &DryRunNotifier{out: out}
}

// Notify prints the notification
func (n *DryRunNotifier) Notify(_ context.Context, reg Registration) error {
	fmt.Fprintln(n.out, "--- Notification ---")
	fmt.Fprintln(n.out, formatMessage(reg))
	fmt.Fprintln(n.out)
	return nil
}
