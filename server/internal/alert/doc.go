// Package alert holds the alert record exchanged between the webhook
// receiver, the card generator and the providers, and the normalizer that
// turns one Alertmanager webhook batch into self-contained records.
package alert
