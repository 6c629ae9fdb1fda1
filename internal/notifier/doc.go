// Package notifier tells the operator that a registration went through.
//
// The dry-run notifier prints the message; the Telegram notifier sends it to
// a chat through the Bot API so the operator does not have to watch the
// terminal while the loop waits for publication.
package notifier
