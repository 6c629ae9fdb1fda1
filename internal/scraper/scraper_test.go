package scraper

import (
	"os"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/heylo-register/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/" + name)
	require.NoError(t, err, "failed to load test fixture")
	doc, err := Parse(string(data))
	require.NoError(t, err)
	return doc
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := Parse(html)
	require.NoError(t, err)
	return doc
}

func card(id, title, date string) string {
	return `<div data-testid="event-card--` + id + `">` +
		`<div class="r-8akbws r-krxsd3">` + title + `</div>` +
		`<div data-testid="event-card-date">` + date + `</div></div>`
}

var bootcamp = event.Rule{Title: "Tuesday Bootcamp Run", Weekdays: []string{"mar.", "Tue"}}

func TestCards(t *testing.T) {
	doc := loadFixture(t, "listing.html")

	cards := New(Selectors{}).Cards(doc)
	require.Len(t, cards, 4)

	assert.Equal(t, "5f1c0d7e-0b1e-4c52-9d0c-6f7b3a9e21aa", cards[0].ID)
	assert.Equal(t, "Thursday - Montmartre Stairs Challenge", cards[0].Title)
	assert.Equal(t, "jeu. 05/10 · 19:00", cards[0].Date)
	assert.Equal(t, "mar. 10/10 · 19:30", cards[2].Date)
}

func TestMatch_Fixture(t *testing.T) {
	doc := loadFixture(t, "listing.html")
	s := New(Selectors{})

	tests := []struct {
		name   string
		rule   event.Rule
		wantID string
		wantOK bool
	}{
		{
			name:   "first tuesday occurrence wins over monday one",
			rule:   bootcamp,
			wantID: "c7d2a0e4-6b8f-4f31-a2d5-3e9b1c0f4d77",
			wantOK: true,
		},
		{
			name:   "no weekday tokens takes first title match",
			rule:   event.Rule{Title: "Tuesday Bootcamp Run"},
			wantID: "9a3e3b1c-41d4-4e7a-8d2f-0c6e5b7f8a10",
			wantOK: true,
		},
		{
			name:   "montmartre",
			rule:   event.Rule{Title: "Montmartre Stairs", Weekdays: []string{"jeu.", "Thu"}},
			wantID: "5f1c0d7e-0b1e-4c52-9d0c-6f7b3a9e21aa",
			wantOK: true,
		},
		{
			name:   "unknown title",
			rule:   event.Rule{Title: "Sunday Long Run"},
			wantOK: false,
		},
		{
			name:   "title present but weekday absent",
			rule:   event.Rule{Title: "Montmartre Stairs", Weekdays: []string{"sam.", "Sat"}},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := s.Match(doc, tt.rule)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestMatch_NoCards(t *testing.T) {
	s := New(Selectors{})

	for _, name := range []string{"listing_empty.html"} {
		id, ok := s.Match(loadFixture(t, name), bootcamp)
		assert.False(t, ok)
		assert.Empty(t, id)
	}

	_, ok := s.Match(parse(t, ""), event.Rule{Title: "anything"})
	assert.False(t, ok)
}

func TestMatch_Scenarios(t *testing.T) {
	s := New(Selectors{})

	t.Run("correct weekday is found", func(t *testing.T) {
		doc := parse(t, card("abc123", "Tuesday Bootcamp Run", "mar. 10/10"))
		id, ok := s.Match(doc, bootcamp)
		assert.True(t, ok)
		assert.Equal(t, "abc123", id)
	})

	t.Run("wrong weekday is not found", func(t *testing.T) {
		doc := parse(t, card("abc123", "Tuesday Bootcamp Run", "lun. 09/10"))
		_, ok := s.Match(doc, bootcamp)
		assert.False(t, ok)
	})

	t.Run("english locale", func(t *testing.T) {
		doc := parse(t, card("abc123", "Tuesday Bootcamp Run", "Tue, Oct 10"))
		id, ok := s.Match(doc, bootcamp)
		assert.True(t, ok)
		assert.Equal(t, "abc123", id)
	})

	t.Run("only cards satisfying both predicates are eligible", func(t *testing.T) {
		doc := parse(t,
			card("a", "Thursday Run", "mar. 10/10")+
				card("b", "Tuesday Bootcamp Run", "mer. 11/10")+
				card("c", "Tuesday Bootcamp Run", "mar. 17/10")+
				card("d", "Tuesday Bootcamp Run", "mar. 24/10"))
		id, ok := s.Match(doc, bootcamp)
		assert.True(t, ok)
		assert.Equal(t, "c", id)
	})
}

func TestMatch_Idempotent(t *testing.T) {
	doc := loadFixture(t, "listing.html")
	s := New(Selectors{})

	id1, ok1 := s.Match(doc, bootcamp)
	id2, ok2 := s.Match(doc, bootcamp)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, id1, id2)
}

func TestCards_SkipsCardsWithoutTitle(t *testing.T) {
	doc := parse(t, `<div data-testid="event-card--x"><span>Loading</span></div>`+
		card("y", "Tuesday Bootcamp Run", "mar. 10/10"))

	cards := New(Selectors{}).Cards(doc)
	require.Len(t, cards, 1)
	assert.Equal(t, "y", cards[0].ID)
}

func TestCards_DateFallbackExcludesTitle(t *testing.T) {
	// No date node: the weekday must not be taken from "Tuesday" in the title.
	doc := parse(t, `<div data-testid="event-card--z">`+
		`<div class="r-8akbws r-krxsd3">Tuesday Bootcamp Run</div><span>lun. 09/10</span></div>`)

	s := New(Selectors{})
	cards := s.Cards(doc)
	require.Len(t, cards, 1)
	assert.Equal(t, "lun. 09/10", cards[0].Date)

	_, ok := s.Match(doc, event.Rule{Title: "Tuesday Bootcamp Run", Weekdays: []string{"Tue"}})
	assert.False(t, ok)
}

func TestNew_CustomSelectors(t *testing.T) {
	doc := parse(t, `<div data-testid="event-card--q"><h3>Tuesday Bootcamp Run</h3><time>mar. 10/10</time></div>`)

	s := New(Selectors{Title: []string{"h3"}})
	id, ok := s.Match(doc, bootcamp)
	assert.True(t, ok)
	assert.Equal(t, "q", id)
}

func TestMatches(t *testing.T) {
	c := event.Card{ID: "1", Title: "S’inscrire au Bootcamp", Date: "mar. 10/10"}
	assert.True(t, Matches(c, event.Rule{Title: "S'inscrire"}))
	assert.False(t, Matches(c, event.Rule{Title: "S'inscrire", Weekdays: []string{"jeu."}}))
}
