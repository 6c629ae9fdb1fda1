// Package cli implements the command-line interface for heylo-register.
//
// The root command takes the key of the event to register for, loads the
// configuration, starts Chrome on the persistent profile and hands over to
// the controller until the operator interrupts it. The list and cards
// subcommands print the configured events and the cards currently on the
// listing page, which helps when Heylo changes its markup.
package cli
