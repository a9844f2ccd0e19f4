package entitlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/planodeaula/entitlements/pkg/plan"
)

// UserEntitlement is the per-user quota record, one row per user.
// MaterialsThisPeriod is only meaningful for the window named by
// (PeriodYear, PeriodMonth); any access observing a stale window must
// advance the window and zero the counter before applying further logic.
type UserEntitlement struct {
	UserID              uuid.UUID  `json:"user_id"`
	Plan                plan.Plan  `json:"plan"`
	PlanStartedAt       time.Time  `json:"plan_started_at"`
	PlanExpiresAt       *time.Time `json:"plan_expires_at,omitempty"` // nil means non-expiring
	MaterialsThisPeriod int64      `json:"materials_this_period"`
	PeriodYear          int        `json:"period_year"`
	PeriodMonth         int        `json:"period_month"`
	LastResetAt         time.Time  `json:"last_reset_at"`
}

// InPeriod reports whether the record's counting window matches the
// wall-clock month of the given time (UTC).
func (e *UserEntitlement) InPeriod(now time.Time) bool {
	year, month, _ := now.UTC().Date()
	return e.PeriodYear == year && e.PeriodMonth == int(month)
}

// PlanView is the display-oriented projection of an entitlement.
// It is never used for enforcement; the store makes those decisions.
type PlanView struct {
	Plan      plan.Plan      `json:"plan"`
	Label     string         `json:"label"`
	Features  []plan.Feature `json:"features"`
	Quota     int64          `json:"quota"`
	Used      int64          `json:"used"`
	Remaining int64          `json:"remaining"`
}

// MembershipStatus is the lifecycle state of a group membership.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipPending  MembershipStatus = "pending"
	MembershipInactive MembershipStatus = "inactive"
)

// GroupMembership links a member to a school group. The group is the
// owner's entitlement, so GroupID is the owner's user ID.
type GroupMembership struct {
	GroupID         uuid.UUID        `json:"group_id"`
	MemberUserID    uuid.UUID        `json:"member_user_id"`
	QuotaAllocation int64            `json:"member_quota_allocation"`
	Status          MembershipStatus `json:"status"`
}

// periodOf returns the counting window for a point in time (UTC).
func periodOf(now time.Time) (year, month int) {
	y, m, _ := now.UTC().Date()
	return y, int(m)
}
