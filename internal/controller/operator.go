package controller

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Operator is the human watching the run. Status messages are shown as-is;
// Confirm blocks until the operator acknowledges a prompt.
type Operator interface {
	Status(msg string)
	Confirm(ctx context.Context, prompt string) error
}

// ConsoleOperator talks to the operator on a terminal
type ConsoleOperator struct {
	out io.Writer

	once  sync.Once
	lines chan string
	in    io.Reader
}

// NewConsoleOperator creates an operator reading confirmations from in and
// writing prompts to out.
func NewConsoleOperator(in io.Reader, out io.Writer) *ConsoleOperator {
	return &ConsoleOperator{in: in, out: out}
}

// Status implements Operator
func (o *ConsoleOperator) Status(msg string) {
	fmt.Fprintln(o.out, msg)
}

// Confirm implements Operator. The prompt is satisfied by any line of input.
func (o *ConsoleOperator) Confirm(ctx context.Context, prompt string) error {
	// A single reader goroutine owns in, since a blocked read cannot be
	// interrupted when ctx is cancelled. It holds at most one pending line
	// and drops the rest, so extra input never blocks it.
	o.once.Do(func() {
		o.lines = make(chan string, 1)
		go func() {
			defer close(o.lines)
			sc := bufio.NewScanner(o.in)
			for sc.Scan() {
				select {
				case o.lines <- sc.Text():
				default:
				}
			}
		}()
	})

	fmt.Fprint(o.out, prompt+" ")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-o.lines:
		if !ok {
			return io.EOF
		}
		return nil
	}
}
