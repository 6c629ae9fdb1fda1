// Package browser defines the live browser session the rest of the program
// drives, and a Chrome implementation of it built on chromedp.
//
// Chrome is started with a persistent user-data directory so that a login
// completed by hand in an earlier run is reused. All waits are bounded; a wait
// that runs out reports ErrTimeout instead of blocking.
package browser
