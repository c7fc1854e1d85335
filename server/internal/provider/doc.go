// Package provider turns normalized alerts into Lark messages.
//
// Two kinds exist:
//   - Forward posts an actionless card to a custom bot webhook URL.
//   - Bot sends an interactive card to each configured chat through the open
//     platform API and turns the card's silence menu into Alertmanager
//     silences (HandleCallback).
//
// A Registry maps routing hashes to providers. It is built once from the
// configuration and never mutated afterwards, so it can be shared by every
// request without locking.
package provider
