// Package entitlement tracks which subscription plan a user holds and
// how many AI-generated materials they have consumed in the current
// calendar month.
//
// The UserEntitlement record in the quota store is the single source of
// truth. Two independent actors mutate it: the user consuming quota
// through the Service, and the payment-provider webhook changing the
// plan tier. Usage increments are a single conditional update at the
// store layer, so two simultaneous material creations can never both
// spend the last remaining unit.
package entitlement
