// Package webhook processes subscription-lifecycle notifications from
// the external payment provider and applies the resulting plan
// transitions to the quota store.
//
// The provider delivers at-least-once: the same event may arrive more
// than once. That is safe because setting an already-active plan is a
// no-op in effect, and each delivery still gets its own audit record.
// Every exit path - validation failure, bad token, unknown user, store
// error, success - writes exactly one audit record before responding,
// so operators can reconstruct what happened to every received call
// without upstream logs.
package webhook
