package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CardIDPrefix is the data-testid prefix carried by every listing card.
const CardIDPrefix = "event-card--"

// ErrEmptyTitle is returned by Rule.Validate when no title fragment is set.
var ErrEmptyTitle = errors.New("rule title must not be empty")

// Rule selects one event from the listing
type Rule struct {
	Title    string   `yaml:"title" json:"title"`
	Weekdays []string `yaml:"weekdays,omitempty" json:"weekdays,omitempty"`
}

// Validate checks that the rule can match anything at all
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	for i, w := range r.Weekdays {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("weekday token %d is empty", i)
		}
	}
	return nil
}

// String renders the rule for log lines
func (r Rule) String() string {
	if len(r.Weekdays) == 0 {
		return fmt.Sprintf("%q", r.Title)
	}
	return fmt.Sprintf("%q on %s", r.Title, strings.Join(r.Weekdays, "|"))
}

// Card is one event as rendered in a single listing snapshot.
// It is never stored; a new set is built on every poll.
type Card struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date,omitempty"`
}

// IDFromTestID extracts the event identifier from a card's data-testid
// attribute ("event-card--<id>"). Anything after a further "--" is not part of
// the id. ok is false for any other attribute value.
func IDFromTestID(testID string) (id string, ok bool) {
	if !strings.HasPrefix(testID, CardIDPrefix) {
		return "", false
	}
	id, _, _ = strings.Cut(strings.TrimPrefix(testID, CardIDPrefix), "--")
	id = strings.TrimSpace(id)
	return id, id != ""
}

// weekdayTokens maps each weekday to the abbreviations Heylo renders for it,
// French first.
var weekdayTokens = map[time.Weekday][]string{
	time.Monday:    {"lun.", "Mon"},
	time.Tuesday:   {"mar.", "Tue"},
	time.Wednesday: {"mer.", "Wed"},
	time.Thursday:  {"jeu.", "Thu"},
	time.Friday:    {"ven.", "Fri"},
	time.Saturday:  {"sam.", "Sat"},
	time.Sunday:    {"dim.", "Sun"},
}

// WeekdayTokens returns the date abbreviations used for d in both site languages.
func WeekdayTokens(d time.Weekday) []string {
	tokens := weekdayTokens[d]
	out := make([]string, len(tokens))
	copy(out, tokens)
	return out
}

// ParseWeekday accepts an English weekday name ("tuesday", "Tue") and returns
// the matching time.Weekday.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, fmt.Errorf("unknown weekday: %q", s)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.HasPrefix(strings.ToLower(d.String()), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday: %q", s)
}
