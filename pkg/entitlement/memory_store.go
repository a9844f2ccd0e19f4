package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planodeaula/entitlements/pkg/plan"
)

// MemoryStore is an in-memory Store implementation for tests and local
// development. All mutations run under one mutex, which gives it the
// same atomicity guarantees the SQL implementation gets from
// conditional updates.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*UserEntitlement
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the wall clock, letting tests pin the counting window.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[uuid.UUID]*UserEntitlement),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*UserEntitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(record), nil
}

func (s *MemoryStore) CreateDefault(_ context.Context, userID uuid.UUID) (*UserEntitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[userID]; ok {
		return copyRecord(record), nil
	}

	now := s.now().UTC()
	year, month := periodOf(now)
	record := &UserEntitlement{
		UserID:              userID,
		Plan:                plan.Gratuito,
		PlanStartedAt:       now,
		MaterialsThisPeriod: 0,
		PeriodYear:          year,
		PeriodMonth:         month,
		LastResetAt:         now,
	}
	s.records[userID] = record
	return copyRecord(record), nil
}

func (s *MemoryStore) ApplyPeriodRollover(_ context.Context, userID uuid.UUID) (*UserEntitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}

	s.rolloverLocked(record)
	return copyRecord(record), nil
}

func (s *MemoryStore) IncrementUsage(_ context.Context, userID uuid.UUID, limits plan.Limits) (*UserEntitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}

	s.rolloverLocked(record)

	limit := limits.QuotaFor(record.Plan)
	if limit != plan.Unlimited && record.MaterialsThisPeriod >= limit {
		return nil, ErrQuotaExceeded
	}

	record.MaterialsThisPeriod++
	return copyRecord(record), nil
}

func (s *MemoryStore) SetPlan(_ context.Context, userID uuid.UUID, p plan.Plan, expiresAt *time.Time) (*UserEntitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}

	if record.Plan != p {
		record.PlanStartedAt = s.now().UTC()
	}
	record.Plan = p
	record.PlanExpiresAt = expiresAt
	return copyRecord(record), nil
}

// Must be called with lock held.
func (s *MemoryStore) rolloverLocked(record *UserEntitlement) {
	now := s.now().UTC()
	if record.InPeriod(now) {
		return
	}

	year, month := periodOf(now)
	record.MaterialsThisPeriod = 0
	record.PeriodYear = year
	record.PeriodMonth = month
	record.LastResetAt = now
}

func copyRecord(record *UserEntitlement) *UserEntitlement {
	copied := *record
	if record.PlanExpiresAt != nil {
		expires := *record.PlanExpiresAt
		copied.PlanExpiresAt = &expires
	}
	return &copied
}

// MemoryGroupStore is an in-memory GroupStore for tests.
type MemoryGroupStore struct {
	mu          sync.Mutex
	memberships map[uuid.UUID]*GroupMembership // keyed by member user ID
}

// NewMemoryGroupStore creates an empty in-memory group store.
func NewMemoryGroupStore() *MemoryGroupStore {
	return &MemoryGroupStore{memberships: make(map[uuid.UUID]*GroupMembership)}
}

func (s *MemoryGroupStore) ActiveMembership(_ context.Context, memberUserID uuid.UUID) (*GroupMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships[memberUserID]
	if !ok || m.Status != MembershipActive {
		return nil, ErrMembershipNotFound
	}

	copied := *m
	return &copied, nil
}

func (s *MemoryGroupStore) ActiveAllocationSum(_ context.Context, groupID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, m := range s.memberships {
		if m.GroupID == groupID && m.Status == MembershipActive {
			sum += m.QuotaAllocation
		}
	}
	return sum, nil
}

func (s *MemoryGroupStore) Upsert(_ context.Context, m *GroupMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *m
	s.memberships[m.MemberUserID] = &copied
	return nil
}
