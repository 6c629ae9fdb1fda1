// Package register runs the three-click Heylo registration flow against a
// live browser session.
//
// A flow only moves forward. A step whose button never becomes clickable
// aborts the attempt, because replaying earlier clicks against a page that
// has already advanced would act on the wrong controls. Restarting from a
// fresh navigation is the caller's decision.
package register

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/heylo-register/internal/browser"
	"github.com/pfrederiksen/heylo-register/internal/logger"
)

// StepCount is the number of steps in a registration flow
const StepCount = 3

var (
	// ErrStepNotClickable means a step's button did not become clickable in time.
	ErrStepNotClickable = errors.New("step not clickable")
	// ErrNavigation means the event page could not be loaded.
	ErrNavigation = errors.New("navigation failed")
)

// Step is one click of the flow. Labels are the acceptable text fragments of
// the button, one per site language; any of them may match.
type Step struct {
	Name    string        `yaml:"name"`
	Labels  []string      `yaml:"labels"`
	MaxWait time.Duration `yaml:"max_wait"`
}

// DefaultSteps returns register, continue and skip, each waiting up to wait.
func DefaultSteps(wait time.Duration) []Step {
	return []Step{
		{Name: "register", Labels: []string{"S'inscrire", "Register"}, MaxWait: wait},
		{Name: "continue", Labels: []string{"Continuer", "Continue"}, MaxWait: wait},
		{Name: "skip", Labels: []string{"Passer", "Skip"}, MaxWait: wait},
	}
}

// ValidateSteps checks that steps form a complete flow
func ValidateSteps(steps []Step) error {
	if len(steps) != StepCount {
		return fmt.Errorf("registration flow needs exactly %d steps, got %d", StepCount, len(steps))
	}
	for i, st := range steps {
		if len(st.Labels) == 0 {
			return fmt.Errorf("step %d (%s) has no labels", i+1, st.Name)
		}
		for _, l := range st.Labels {
			if strings.TrimSpace(l) == "" {
				return fmt.Errorf("step %d (%s) has an empty label", i+1, st.Name)
			}
		}
		if st.MaxWait <= 0 {
			return fmt.Errorf("step %d (%s) max_wait must be positive", i+1, st.Name)
		}
	}
	return nil
}

// State is the position of an attempt in the flow
type State int

const (
	Pending State = iota
	Navigated
	Step1Clicked
	Step2Clicked
	Complete
	Aborted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Navigated:
		return "navigated"
	case Step1Clicked:
		return "step1_clicked"
	case Step2Clicked:
		return "step2_clicked"
	case Complete:
		return "complete"
	default:
		return "aborted"
	}
}

// StepError identifies the step that stopped an attempt
type StepError struct {
	Index int // 0-based
	Step  Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Step.Name, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Result reports how far an attempt got
type Result struct {
	State   State
	Clicked int
	Err     error
}

// OK reports whether every step was clicked
func (r Result) OK() bool {
	return r.State == Complete && r.Err == nil
}

// Sequencer performs registration attempts
type Sequencer struct {
	Metrics *logger.Metrics
}

func (q *Sequencer) metrics() *logger.Metrics {
	if q.Metrics != nil {
		return q.Metrics
	}
	return logger.DefaultMetrics()
}

// Register navigates to eventURL once and clicks through steps in order.
// Steps are never retried within an attempt.
func (q *Sequencer) Register(ctx context.Context, s browser.Session, eventURL string, steps []Step) Result {
	m := q.metrics()
	m.IncrCounter("register.attempts")
	start := time.Now()
	defer func() { m.RecordTiming("register.attempt", time.Since(start)) }()

	res := Result{State: Pending}

	if err := s.Navigate(ctx, eventURL); err != nil {
		return q.abort(ctx, res, fmt.Errorf("%w: %w", ErrNavigation, err))
	}
	res.State = Navigated

	for i, st := range steps {
		el, err := s.FindClickable(ctx, st.Labels, st.MaxWait)
		if err != nil {
			if errors.Is(err, browser.ErrTimeout) {
				err = ErrStepNotClickable
			}
			return q.abort(ctx, res, &StepError{Index: i, Step: st, Err: err})
		}

		if err := s.Click(ctx, el); err != nil {
			return q.abort(ctx, res, &StepError{Index: i, Step: st, Err: err})
		}

		res.Clicked++
		res.State = advance(res.State, i == len(steps)-1)
		logger.Debug("Registration step clicked", logger.Fields{
			"step":  st.Name,
			"label": el.Label,
			"state": res.State.String(),
		})
	}

	return res
}

func (q *Sequencer) abort(ctx context.Context, res Result, err error) Result {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else {
		q.metrics().IncrCounter("register.failures")
	}
	res.State = Aborted
	res.Err = err
	return res
}

func advance(s State, last bool) State {
	if last {
		return Complete
	}
	return s + 1
}
