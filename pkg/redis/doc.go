// Package redis owns the connection to the Redis server backing the
// shared quota cache: URL-based configuration, retrying connect and a
// readiness probe.
package redis
