package entitlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/planodeaula/entitlements/pkg/cache"
	"github.com/planodeaula/entitlements/pkg/metrics"
	"github.com/planodeaula/entitlements/pkg/plan"
)

// Service is the API surface the client layer uses to check and consume
// quota. Reads are cache-fronted; the enforcement decision in
// ConsumeOne always happens at the store layer, never against a cached
// value.
type Service struct {
	store        Store
	groups       GroupStore
	catalog      *plan.Catalog
	cache        cache.Cache[UserEntitlement]
	cacheTTL     time.Duration
	storeTimeout time.Duration
	log          *slog.Logger
	now          func() time.Time
}

// ServiceOption configures optional Service dependencies.
type ServiceOption func(*Service)

// WithCache fronts reads with the given cache. The TTL bounds how stale
// a display read may be; 15-60 seconds is the intended range.
func WithCache(c cache.Cache[UserEntitlement], ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if c != nil && ttl > 0 {
			s.cache = c
			s.cacheTTL = ttl
		}
	}
}

// WithGroupStore enables school-group pool resolution.
func WithGroupStore(groups GroupStore) ServiceOption {
	return func(s *Service) { s.groups = groups }
}

// WithLogger supplies a structured logger. Without one, logs are discarded.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStoreTimeout bounds every store round trip. Single-digit seconds;
// on timeout the read paths fall back to the gratuito defaults instead
// of blocking the request.
func WithStoreTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithServiceClock replaces the wall clock, for tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. Panics if store or catalog is nil to
// fail fast during initialization.
func NewService(store Store, catalog *plan.Catalog, opts ...ServiceOption) *Service {
	if store == nil {
		panic("entitlement: Store is required")
	}
	if catalog == nil {
		panic("entitlement: plan catalog is required")
	}

	s := &Service{
		store:        store,
		catalog:      catalog,
		storeTimeout: 3 * time.Second,
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanCreateMaterial reports whether the user may create one more
// material. Never fails for a normal user: if the store is unavailable
// it fails open with the gratuito default quota rather than blocking
// material creation. Availability over strictness, the worst case is a
// free-tier user briefly exceeding five materials.
func (s *Service) CanCreateMaterial(ctx context.Context, userID uuid.UUID) bool {
	record, err := s.resolve(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "quota store unavailable, failing open to gratuito defaults",
			"user_id", userID, "error", err)
		record = s.fallbackRecord(userID)
	}

	if record.Plan == plan.Admin {
		return true
	}

	remaining := s.effectiveRemaining(ctx, record)
	return remaining == plan.Unlimited || remaining > 0
}

// ConsumeOne atomically spends one unit of quota. Returns
// ErrQuotaExceeded when the monthly quota is spent; any other error is
// a store fault. The user's cache entry is invalidated on success so
// the next read observes the new count.
func (s *Service) ConsumeOne(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	_, err := s.store.IncrementUsage(ctx, userID, s.catalog.Limits())
	if errors.Is(err, ErrNotFound) {
		// Lazy creation for users consuming before any other touchpoint.
		if _, err = s.store.CreateDefault(ctx, userID); err == nil {
			_, err = s.store.IncrementUsage(ctx, userID, s.catalog.Limits())
		}
	}

	switch {
	case err == nil:
		s.invalidate(ctx, userID)
		return nil
	case errors.Is(err, ErrQuotaExceeded):
		// Expected business outcome, not a fault; debug level only.
		s.log.DebugContext(ctx, "material quota exceeded", "user_id", userID)
		metrics.QuotaDenials.Inc()
		return ErrQuotaExceeded
	default:
		s.log.ErrorContext(ctx, "usage increment failed", "user_id", userID, "error", err)
		return errors.Join(ErrStoreUnavailable, err)
	}
}

// Remaining returns how many materials the user may still create this
// month, clamped to zero, accounting for group pool membership. Admin
// plans return plan.Unlimited. Store faults fall back to the gratuito
// default quota.
func (s *Service) Remaining(ctx context.Context, userID uuid.UUID) int64 {
	record, err := s.resolve(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "quota store unavailable, reporting gratuito default quota",
			"user_id", userID, "error", err)
		record = s.fallbackRecord(userID)
	}

	return s.effectiveRemaining(ctx, record)
}

// CurrentPlanDisplay returns the display projection of the user's plan.
// Clamped for display purposes only, never used for enforcement.
func (s *Service) CurrentPlanDisplay(ctx context.Context, userID uuid.UUID) PlanView {
	record, err := s.resolve(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "quota store unavailable, displaying gratuito defaults",
			"user_id", userID, "error", err)
		record = s.fallbackRecord(userID)
	}

	quota := s.catalog.QuotaFor(record.Plan)
	return PlanView{
		Plan:      record.Plan,
		Label:     s.catalog.LabelFor(record.Plan),
		Features:  s.catalog.FeaturesFor(record.Plan),
		Quota:     quota,
		Used:      record.MaterialsThisPeriod,
		Remaining: s.effectiveRemaining(ctx, record),
	}
}

// AssignGroupMember creates or updates a member's allocation in a
// school group. The over-allocation check is advisory: a pool summing
// past the group's plan quota is reported to the caller, not refused,
// because concurrent edits cannot be excluded at this layer anyway.
func (s *Service) AssignGroupMember(ctx context.Context, m *GroupMembership) (overAllocated bool, err error) {
	if s.groups == nil {
		return false, errors.New("entitlement: group store not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.groups.Upsert(ctx, m); err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	s.invalidate(ctx, m.MemberUserID)

	sum, err := s.groups.ActiveAllocationSum(ctx, m.GroupID)
	if err != nil {
		s.log.WarnContext(ctx, "allocation sum unavailable, skipping pool check",
			"group_id", m.GroupID, "error", err)
		return false, nil
	}

	poolQuota := s.catalog.QuotaFor(plan.GrupoEscolar)
	if sum > poolQuota {
		s.log.WarnContext(ctx, "group pool over-allocated",
			"group_id", m.GroupID, "allocated", sum, "pool_quota", poolQuota)
		return true, nil
	}
	return false, nil
}

// InvalidateUser drops the user's cached entitlement. The webhook
// processor calls this after a successful plan change so subsequent
// reads observe the new plan.
func (s *Service) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	s.invalidate(ctx, userID)
}

// resolve is the cache-first read path. Misses hit the store under the
// bounded timeout, lazily creating the default record and applying the
// period rollover when the stored window is stale.
func (s *Service) resolve(ctx context.Context, userID uuid.UUID) (*UserEntitlement, error) {
	key := userID.String()

	if s.cache != nil {
		if record, ok := s.cache.Get(ctx, key); ok {
			metrics.CacheHits.Inc()
			if record.InPeriod(s.now()) {
				return &record, nil
			}
			// The month advanced under a live cache entry; drop it and
			// read through so the store performs the rollover.
			s.cache.Invalidate(ctx, key)
		} else {
			metrics.CacheMisses.Inc()
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	record, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		record, err = s.store.CreateDefault(ctx, userID)
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	if !record.InPeriod(s.now()) {
		record, err = s.store.ApplyPeriodRollover(ctx, userID)
		if err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, *record, s.cacheTTL)
	}
	return record, nil
}

// effectiveRemaining resolves the user's remaining quota through the
// group pool rules:
//   - group owners (grupo_escolar holders) draw on the group's base
//     plan quota, independent of per-member allocations;
//   - active members get max(individual remaining, allocation) - the
//     richer of the two, since a member may also hold a personal paid
//     plan (inherited business rule);
//   - everyone else falls through to the individual record alone.
func (s *Service) effectiveRemaining(ctx context.Context, record *UserEntitlement) int64 {
	if record.Plan == plan.Admin {
		return plan.Unlimited
	}

	individual := s.catalog.QuotaFor(record.Plan) - record.MaterialsThisPeriod
	if individual < 0 {
		individual = 0
	}

	if record.Plan == plan.GrupoEscolar || s.groups == nil {
		return individual
	}

	m, err := s.groups.ActiveMembership(ctx, record.UserID)
	if err != nil {
		if !errors.Is(err, ErrMembershipNotFound) {
			s.log.WarnContext(ctx, "group membership lookup failed, using individual quota",
				"user_id", record.UserID, "error", err)
		}
		return individual
	}

	return max(individual, m.QuotaAllocation)
}

// fallbackRecord is the conservative stand-in used when the store is
// unreachable: gratuito plan, nothing consumed. One consolidated
// default instead of per-call-site constants.
func (s *Service) fallbackRecord(userID uuid.UUID) *UserEntitlement {
	now := s.now().UTC()
	year, month := periodOf(now)
	return &UserEntitlement{
		UserID:      userID,
		Plan:        plan.Gratuito,
		PeriodYear:  year,
		PeriodMonth: month,
	}
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID.String())
	}
}
