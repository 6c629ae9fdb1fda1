package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pfrederiksen/heylo-register/internal/event"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --format value
func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return format, nil
}

// EventEntry is one configured event as listed by the list command
type EventEntry struct {
	Key  string     `json:"key"`
	Rule event.Rule `json:"rule"`
}

// CardsResult is the output of the cards command
type CardsResult struct {
	CheckedAt time.Time    `json:"checked_at"`
	URL       string       `json:"url"`
	Cards     []event.Card `json:"cards"`
	// Matches maps event keys to the card they would select.
	Matches map[string]string `json:"matches,omitempty"`
}

// writeJSON outputs v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// WriteEvents writes the configured events in the specified format
func WriteEvents(w io.Writer, entries []EventEntry, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, entries)
	case FormatText:
		for _, e := range entries {
			fmt.Fprintf(w, "%-12s %s\n", e.Key, e.Rule)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteCards writes a listing snapshot in the specified format
func WriteCards(w io.Writer, result *CardsResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeCardsText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeCardsText(w io.Writer, result *CardsResult, verbose bool) error {
	if len(result.Cards) == 0 {
		fmt.Fprintln(w, "No events listed.")
		return nil
	}

	fmt.Fprintf(w, "Found %d event(s):\n\n", len(result.Cards))
	for _, c := range result.Cards {
		fmt.Fprintf(w, "  %s\n", c.Title)
		if c.Date != "" {
			fmt.Fprintf(w, "    %s\n", c.Date)
		}
		if verbose {
			fmt.Fprintf(w, "    id: %s\n", c.ID)
		}
		for _, key := range matchKeys(result.Matches, c.ID) {
			fmt.Fprintf(w, "    -> matches %q\n", key)
		}
	}

	if verbose {
		fmt.Fprintf(w, "\nChecked at: %s\n", result.CheckedAt.Format(time.RFC3339))
	}
	return nil
}

// matchKeys returns the sorted event keys whose match is id
func matchKeys(matches map[string]string, id string) []string {
	keys := make([]string, 0)
	for key, matched := range matches {
		if matched == id {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
