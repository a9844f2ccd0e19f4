// Package plan is the static catalog of subscription plans: how many
// materials each plan may generate per calendar month and which product
// features it unlocks.
//
// The catalog is pure data loaded once at startup. Unknown plans fail
// closed: they resolve to a zero quota and an empty feature set, never
// to unlimited access.
package plan
