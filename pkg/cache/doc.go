// Package cache provides a short-TTL cache abstraction used to absorb
// read bursts in front of the quota store.
//
// The staleness window is an explicit parameter: every Set carries a
// TTL, and callers that mutate the underlying store must call
// Invalidate so the next read goes back to the source of truth. A stale
// read is acceptable for display purposes only; enforcement decisions
// are made at the store layer, never from a cached value.
package cache
