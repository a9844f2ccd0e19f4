package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planodeaula/entitlements/pkg/pg"
	"github.com/planodeaula/entitlements/pkg/plan"
)

// PGStore is the PostgreSQL-backed Store. Usage increments and period
// rollovers execute as single conditional UPDATE statements, so their
// atomicity comes from the database rather than from application locks.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// PGOption configures a PGStore.
type PGOption func(*PGStore)

// WithPGClock replaces the wall clock used for period windows.
func WithPGClock(now func() time.Time) PGOption {
	return func(s *PGStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPGStore creates a Store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool, opts ...PGOption) *PGStore {
	if pool == nil {
		panic("entitlement: pgx pool is required")
	}
	s := &PGStore{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const entitlementColumns = `user_id, plan, plan_started_at, plan_expires_at,
	materials_this_period, period_year, period_month, last_reset_at`

func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*UserEntitlement, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entitlementColumns+` FROM user_entitlements WHERE user_id = $1`,
		userID)

	return scanEntitlement(row)
}

func (s *PGStore) CreateDefault(ctx context.Context, userID uuid.UUID) (*UserEntitlement, error) {
	now := s.now().UTC()
	year, month := periodOf(now)

	// ON CONFLICT DO NOTHING makes concurrent first logins converge on
	// one row instead of erroring; the follow-up SELECT returns it
	// regardless of which caller inserted.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_entitlements
			(user_id, plan, plan_started_at, materials_this_period, period_year, period_month, last_reset_at)
		VALUES ($1, $2, $3, 0, $4, $5, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, plan.Gratuito, now, year, month)
	if err != nil {
		return nil, fmt.Errorf("create default entitlement: %w", err)
	}

	return s.Get(ctx, userID)
}

func (s *PGStore) ApplyPeriodRollover(ctx context.Context, userID uuid.UUID) (*UserEntitlement, error) {
	now := s.now().UTC()
	year, month := periodOf(now)

	// The window predicate makes redundant calls no-ops: once one caller
	// advances the window, concurrent callers match zero rows.
	_, err := s.pool.Exec(ctx,
		`UPDATE user_entitlements
		SET materials_this_period = 0, period_year = $2, period_month = $3,
			last_reset_at = $4, updated_at = $4
		WHERE user_id = $1 AND (period_year <> $2 OR period_month <> $3)`,
		userID, year, month, now)
	if err != nil {
		return nil, fmt.Errorf("apply period rollover: %w", err)
	}

	return s.Get(ctx, userID)
}

func (s *PGStore) IncrementUsage(ctx context.Context, userID uuid.UUID, limits plan.Limits) (*UserEntitlement, error) {
	now := s.now().UTC()
	year, month := periodOf(now)

	// Rollover and increment happen in one conditional UPDATE: the CASE
	// expressions treat a stale window as zero usage, and the WHERE
	// clause admits the row only while the effective count is below the
	// plan's quota. Two concurrent calls for the last remaining unit
	// serialize on the row, and the loser matches zero rows.
	row := s.pool.QueryRow(
		ctx,
		`UPDATE user_entitlements SET
			materials_this_period = CASE
				WHEN period_year = $2 AND period_month = $3 THEN materials_this_period + 1
				ELSE 1 END,
			last_reset_at = CASE
				WHEN period_year = $2 AND period_month = $3 THEN last_reset_at
				ELSE $4 END,
			period_year = $2,
			period_month = $3,
			updated_at = $4
		WHERE user_id = $1 AND (
			CASE plan
				WHEN 'gratuito' THEN $5::bigint
				WHEN 'professor' THEN $6::bigint
				WHEN 'grupo_escolar' THEN $7::bigint
				WHEN 'admin' THEN $8::bigint
				ELSE 0 END = -1
			OR CASE WHEN period_year = $2 AND period_month = $3 THEN materials_this_period ELSE 0 END
				< CASE plan
					WHEN 'gratuito' THEN $5::bigint
					WHEN 'professor' THEN $6::bigint
					WHEN 'grupo_escolar' THEN $7::bigint
					WHEN 'admin' THEN $8::bigint
					ELSE 0 END
		)
		RETURNING `+entitlementColumns,
		userID, year, month, now,
		limits.QuotaFor(plan.Gratuito),
		limits.QuotaFor(plan.Professor),
		limits.QuotaFor(plan.GrupoEscolar),
		limits.QuotaFor(plan.Admin),
	)

	record, err := scanEntitlement(row)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Zero rows matched: distinguish a missing record from a spent quota.
	if _, getErr := s.Get(ctx, userID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrQuotaExceeded
}

func (s *PGStore) SetPlan(ctx context.Context, userID uuid.UUID, p plan.Plan, expiresAt *time.Time) (*UserEntitlement, error) {
	now := s.now().UTC()

	// plan_started_at only moves when the plan actually changes, so
	// redelivered webhook events leave the row byte-identical.
	row := s.pool.QueryRow(ctx,
		`UPDATE user_entitlements SET
			plan_started_at = CASE WHEN plan = $2 THEN plan_started_at ELSE $4 END,
			plan = $2,
			plan_expires_at = $3,
			updated_at = $4
		WHERE user_id = $1
		RETURNING `+entitlementColumns,
		userID, p, expiresAt, now)

	return scanEntitlement(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntitlement(row rowScanner) (*UserEntitlement, error) {
	var record UserEntitlement
	err := row.Scan(
		&record.UserID,
		&record.Plan,
		&record.PlanStartedAt,
		&record.PlanExpiresAt,
		&record.MaterialsThisPeriod,
		&record.PeriodYear,
		&record.PeriodMonth,
		&record.LastResetAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan entitlement: %w", err)
	}
	return &record, nil
}

// PGGroupStore is the PostgreSQL-backed GroupStore.
type PGGroupStore struct {
	pool *pgxpool.Pool
}

// NewPGGroupStore creates a GroupStore backed by the given pool.
func NewPGGroupStore(pool *pgxpool.Pool) *PGGroupStore {
	if pool == nil {
		panic("entitlement: pgx pool is required")
	}
	return &PGGroupStore{pool: pool}
}

func (s *PGGroupStore) ActiveMembership(ctx context.Context, memberUserID uuid.UUID) (*GroupMembership, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT group_id, member_user_id, member_quota_allocation, status
		FROM group_memberships
		WHERE member_user_id = $1 AND status = $2`,
		memberUserID, MembershipActive)

	var m GroupMembership
	if err := row.Scan(&m.GroupID, &m.MemberUserID, &m.QuotaAllocation, &m.Status); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("scan group membership: %w", err)
	}
	return &m, nil
}

func (s *PGGroupStore) ActiveAllocationSum(ctx context.Context, groupID uuid.UUID) (int64, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(member_quota_allocation), 0)
		FROM group_memberships
		WHERE group_id = $1 AND status = $2`,
		groupID, MembershipActive)

	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum group allocations: %w", err)
	}
	return sum, nil
}

func (s *PGGroupStore) Upsert(ctx context.Context, m *GroupMembership) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO group_memberships (group_id, member_user_id, member_quota_allocation, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, member_user_id) DO UPDATE
		SET member_quota_allocation = EXCLUDED.member_quota_allocation,
			status = EXCLUDED.status,
			updated_at = now()`,
		m.GroupID, m.MemberUserID, m.QuotaAllocation, m.Status)
	if err != nil {
		return fmt.Errorf("upsert group membership: %w", err)
	}
	return nil
}
