// Package card turns an alert record into a provider-agnostic message card
// and renders that card in the Lark interactive-card format.
//
// Generate is pure: the same record and options always produce the same
// Document, and Lark(Generate(...)) always marshals to the same bytes.
package card
