// Package silence maps the card's silence menu to durations and creates
// silences through the Alertmanager v2 API.
package silence
