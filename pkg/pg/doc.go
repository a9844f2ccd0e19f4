// Package pg owns PostgreSQL connectivity for the quota store: pool
// construction with retry, error classification helpers, a readiness
// probe and goose migrations applied from the embedded schema.
package pg
