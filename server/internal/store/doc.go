// Package store is a thread-safe in-memory cache of Lark user display
// names keyed by open_id, with TTL eviction.
package store
