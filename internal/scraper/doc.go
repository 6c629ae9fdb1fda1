// Package scraper parses rendered Heylo listing pages and finds the event a
// run is waiting for.
//
// The page HTML comes from the live browser session; scraper only sees a
// goquery document built from one snapshot of it. Cards are recognised by
// their data-testid prefix, and titles and dates are read through
// configurable selectors because Heylo ships generated class names that
// change between deployments.
package scraper
