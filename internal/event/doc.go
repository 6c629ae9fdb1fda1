// Package event provides the types describing a Heylo listing entry and the
// rule used to recognise the one occurrence a run is waiting for.
//
// A Rule pairs a title fragment with an optional set of weekday tokens. The
// weekday tokens exist because the same title is reused across recurring
// occurrences, and because the listing is rendered in French or English
// depending on the session locale, so both "mar." and "Tue" must be accepted.
package event
