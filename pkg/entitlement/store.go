package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/planodeaula/entitlements/pkg/plan"
)

// Store defines the persistence interface for UserEntitlement records.
//
// IncrementUsage and SetPlan must each execute as a single atomic
// operation at the storage layer. A separate check-then-increment round
// trip visible to concurrent callers reintroduces the lost-update race
// where two simultaneous material creations both read "1 remaining" and
// both succeed.
type Store interface {
	// Get retrieves the entitlement for a user.
	// Returns ErrNotFound if no record exists.
	Get(ctx context.Context, userID uuid.UUID) (*UserEntitlement, error)

	// CreateDefault creates the gratuito zero-usage record for a user.
	// Idempotent: if a record already exists it is returned unchanged,
	// which guards against duplicate-insert races from concurrent first
	// logins.
	CreateDefault(ctx context.Context, userID uuid.UUID) (*UserEntitlement, error)

	// ApplyPeriodRollover zeroes the usage counter and advances the
	// window if the stored (year, month) differs from the current
	// wall-clock month. Safe to call redundantly; calling it twice in
	// the same month is identical to calling it once.
	ApplyPeriodRollover(ctx context.Context, userID uuid.UUID) (*UserEntitlement, error)

	// IncrementUsage applies the period rollover if needed and then
	// increments the counter, but only while it is below the plan's
	// quota from the given limits snapshot. Returns ErrQuotaExceeded
	// with state unchanged when the quota is spent.
	IncrementUsage(ctx context.Context, userID uuid.UUID, limits plan.Limits) (*UserEntitlement, error)

	// SetPlan updates the plan fields. It never resets the usage
	// counter: switching plans mid-month does not grant a free reset.
	// Setting the same plan twice is a no-op in effect, which is what
	// makes redelivered webhook events safe.
	SetPlan(ctx context.Context, userID uuid.UUID, p plan.Plan, expiresAt *time.Time) (*UserEntitlement, error)
}

// GroupStore defines persistence for school-group memberships.
type GroupStore interface {
	// ActiveMembership returns the user's active membership, or
	// ErrMembershipNotFound if the user is not an active group member.
	ActiveMembership(ctx context.Context, memberUserID uuid.UUID) (*GroupMembership, error)

	// ActiveAllocationSum returns the sum of active members' quota
	// allocations for a group.
	ActiveAllocationSum(ctx context.Context, groupID uuid.UUID) (int64, error)

	// Upsert creates or replaces a membership row keyed by
	// (group, member).
	Upsert(ctx context.Context, m *GroupMembership) error
}
