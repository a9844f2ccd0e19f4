package entitlement

import "errors"

var (
	// ErrNotFound indicates no entitlement record exists for the user.
	ErrNotFound = errors.New("entitlement record not found")

	// ErrQuotaExceeded is the expected business outcome when a user has
	// spent their monthly quota. It is not a system fault and must not
	// be logged at error severity.
	ErrQuotaExceeded = errors.New("monthly material quota exceeded")

	// ErrStoreUnavailable wraps timeouts and connection failures from
	// the quota store.
	ErrStoreUnavailable = errors.New("quota store unavailable")

	// ErrMembershipNotFound indicates the user has no active group membership.
	ErrMembershipNotFound = errors.New("group membership not found")
)
