package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/heylo-register/internal/event"
	"github.com/pfrederiksen/heylo-register/internal/textnorm"
)

// CardSelector matches every event card in a listing page.
const CardSelector = `[data-testid^="` + event.CardIDPrefix + `"]`

// Selectors locate the title and date inside a card. Each list is tried in
// order and the first selector that finds a node wins.
type Selectors struct {
	Title []string `yaml:"title"`
	Date  []string `yaml:"date"`
}

// DefaultSelectors are the selectors Heylo's web client renders today
func DefaultSelectors() Selectors {
	return Selectors{
		Title: []string{".r-8akbws.r-krxsd3", `[data-testid$="-title"]`},
		Date:  []string{`[data-testid$="-date"]`, "time"},
	}
}

// Scraper extracts cards from listing snapshots
type Scraper struct {
	sel Selectors
}

// New creates a new Scraper. Empty selector lists fall back to the defaults.
func New(sel Selectors) *Scraper {
	def := DefaultSelectors()
	if len(sel.Title) == 0 {
		sel.Title = def.Title
	}
	if len(sel.Date) == 0 {
		sel.Date = def.Date
	}
	return &Scraper{sel: sel}
}

// Parse builds a document from a page snapshot
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// Cards returns the cards in doc in document order. Cards without a
// recognisable title are skipped.
func (s *Scraper) Cards(doc *goquery.Document) []event.Card {
	cards := make([]event.Card, 0)

	doc.Find(CardSelector).Each(func(i int, sel *goquery.Selection) {
		testID, _ := sel.Attr("data-testid")
		id, ok := event.IDFromTestID(testID)
		if !ok {
			return
		}

		titleSel := firstMatch(sel, s.sel.Title)
		if titleSel == nil {
			return
		}
		title := textnorm.Normalize(titleSel.Text())

		var date string
		if dateSel := firstMatch(sel, s.sel.Date); dateSel != nil {
			date = textnorm.Normalize(dateSel.Text())
		} else {
			// No dedicated date node: use the rest of the card so the
			// title itself can never satisfy the weekday check.
			date = strings.TrimSpace(strings.Replace(textnorm.Normalize(sel.Text()), title, "", 1))
		}

		cards = append(cards, event.Card{ID: id, Title: title, Date: date})
	})

	return cards
}

// Match returns the identifier of the first card satisfying rule, in
// document order. ok is false when no card matches or the page has no cards.
func (s *Scraper) Match(doc *goquery.Document, rule event.Rule) (id string, ok bool) {
	for _, card := range s.Cards(doc) {
		if Matches(card, rule) {
			return card.ID, true
		}
	}
	return "", false
}

// Matches reports whether card satisfies rule: the title must contain the
// rule title, and when weekday tokens are set the date must contain one.
func Matches(card event.Card, rule event.Rule) bool {
	if !textnorm.Contains(card.Title, rule.Title) {
		return false
	}
	if len(rule.Weekdays) == 0 {
		return true
	}
	return textnorm.ContainsAny(card.Date, rule.Weekdays)
}

func firstMatch(card *goquery.Selection, selectors []string) *goquery.Selection {
	for _, s := range selectors {
		if found := card.Find(s).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}
