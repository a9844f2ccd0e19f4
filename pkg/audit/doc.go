// Package audit persists one immutable record per received payment
// webhook call: the raw payload, the resolved outcome or failure
// reason, and source network metadata.
//
// Records are append-only and exist for idempotency inspection and
// operator debugging. They are never read back for entitlement
// decisions.
package audit
