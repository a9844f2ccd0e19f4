package entitlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planodeaula/entitlements/pkg/cache"
	"github.com/planodeaula/entitlements/pkg/entitlement"
	"github.com/planodeaula/entitlements/pkg/plan"
)

// failingStore simulates an unreachable database on every call.
type failingStore struct{}

var errDown = errors.New("connection refused")

func (failingStore) Get(context.Context, uuid.UUID) (*entitlement.UserEntitlement, error) {
	return nil, errDown
}

func (failingStore) CreateDefault(context.Context, uuid.UUID) (*entitlement.UserEntitlement, error) {
	return nil, errDown
}

func (failingStore) ApplyPeriodRollover(context.Context, uuid.UUID) (*entitlement.UserEntitlement, error) {
	return nil, errDown
}

func (failingStore) IncrementUsage(context.Context, uuid.UUID, plan.Limits) (*entitlement.UserEntitlement, error) {
	return nil, errDown
}

func (failingStore) SetPlan(context.Context, uuid.UUID, plan.Plan, *time.Time) (*entitlement.UserEntitlement, error) {
	return nil, errDown
}

func TestServiceConsumeOne(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("creates the record lazily on first consume", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		svc := entitlement.NewService(store, plan.Default())
		userID := uuid.New()

		require.NoError(t, svc.ConsumeOne(ctx, userID))

		record, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, plan.Gratuito, record.Plan)
		assert.Equal(t, int64(1), record.MaterialsThisPeriod)
	})

	t.Run("refuses past the quota", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		svc := entitlement.NewService(store, plan.Default())
		userID := uuid.New()

		for n := 0; n < 5; n++ {
			require.NoError(t, svc.ConsumeOne(ctx, userID))
		}
		require.ErrorIs(t, svc.ConsumeOne(ctx, userID), entitlement.ErrQuotaExceeded)
		assert.False(t, svc.CanCreateMaterial(ctx, userID))
	})

	t.Run("store fault fails closed", func(t *testing.T) {
		t.Parallel()

		svc := entitlement.NewService(failingStore{}, plan.Default())

		err := svc.ConsumeOne(ctx, uuid.New())
		require.ErrorIs(t, err, entitlement.ErrStoreUnavailable)
		require.NotErrorIs(t, err, entitlement.ErrQuotaExceeded)
	})
}

func TestServiceReadsFailOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := entitlement.NewService(failingStore{}, plan.Default())
	userID := uuid.New()

	// Read paths fall back to the gratuito defaults instead of blocking
	// material creation on an outage.
	assert.True(t, svc.CanCreateMaterial(ctx, userID))
	assert.Equal(t, int64(5), svc.Remaining(ctx, userID))

	view := svc.CurrentPlanDisplay(ctx, userID)
	assert.Equal(t, plan.Gratuito, view.Plan)
	assert.Equal(t, int64(5), view.Remaining)
}

func TestServiceRemaining(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("quota minus used", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		svc := entitlement.NewService(store, plan.Default())
		userID := uuid.New()

		_, err := store.CreateDefault(ctx, userID)
		require.NoError(t, err)
		_, err = store.SetPlan(ctx, userID, plan.Professor, nil)
		require.NoError(t, err)

		for n := 0; n < 3; n++ {
			require.NoError(t, svc.ConsumeOne(ctx, userID))
		}

		assert.Equal(t, int64(47), svc.Remaining(ctx, userID))
	})

	t.Run("admin is unlimited", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		svc := entitlement.NewService(store, plan.Default())
		userID := uuid.New()

		_, err := store.CreateDefault(ctx, userID)
		require.NoError(t, err)
		_, err = store.SetPlan(ctx, userID, plan.Admin, nil)
		require.NoError(t, err)

		assert.Equal(t, plan.Unlimited, svc.Remaining(ctx, userID))
		assert.True(t, svc.CanCreateMaterial(ctx, userID))
	})

	t.Run("unknown plan reports zero", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		svc := entitlement.NewService(store, plan.Default())
		userID := uuid.New()

		_, err := store.CreateDefault(ctx, userID)
		require.NoError(t, err)
		_, err = store.SetPlan(ctx, userID, plan.Plan("vitalicio"), nil)
		require.NoError(t, err)

		assert.Equal(t, int64(0), svc.Remaining(ctx, userID))
		assert.False(t, svc.CanCreateMaterial(ctx, userID))
	})
}

func TestServiceUpgradeKeepsUsage(t *testing.T) {
	t.Parallel()

	// A free-tier user at the limit upgrades mid-month: the counter
	// carries over, the new quota applies immediately.
	ctx := context.Background()
	store := entitlement.NewMemoryStore()
	svc := entitlement.NewService(store, plan.Default())
	userID := uuid.New()

	for n := 0; n < 5; n++ {
		require.NoError(t, svc.ConsumeOne(ctx, userID))
	}
	require.ErrorIs(t, svc.ConsumeOne(ctx, userID), entitlement.ErrQuotaExceeded)

	_, err := store.SetPlan(ctx, userID, plan.Professor, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(45), svc.Remaining(ctx, userID))
	require.NoError(t, svc.ConsumeOne(ctx, userID))
	assert.Equal(t, int64(44), svc.Remaining(ctx, userID))
}

func TestServiceCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("consume invalidates the cached read", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		svc := entitlement.NewService(store, plan.Default(),
			entitlement.WithCache(cache.NewMemory[entitlement.UserEntitlement](), time.Minute),
		)
		userID := uuid.New()

		assert.Equal(t, int64(5), svc.Remaining(ctx, userID)) // warms the cache
		require.NoError(t, svc.ConsumeOne(ctx, userID))
		assert.Equal(t, int64(4), svc.Remaining(ctx, userID))
	})

	t.Run("explicit invalidation exposes a plan change", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		svc := entitlement.NewService(store, plan.Default(),
			entitlement.WithCache(cache.NewMemory[entitlement.UserEntitlement](), time.Minute),
		)
		userID := uuid.New()

		assert.Equal(t, plan.Gratuito, svc.CurrentPlanDisplay(ctx, userID).Plan)

		_, err := store.SetPlan(ctx, userID, plan.Professor, nil)
		require.NoError(t, err)
		svc.InvalidateUser(ctx, userID)

		assert.Equal(t, plan.Professor, svc.CurrentPlanDisplay(ctx, userID).Plan)
	})

	t.Run("stale cached window is dropped on read", func(t *testing.T) {
		t.Parallel()

		current := time.Date(2025, time.March, 31, 23, 50, 0, 0, time.UTC)
		clock := func() time.Time { return current }
		store := entitlement.NewMemoryStore(entitlement.WithClock(clock))
		svc := entitlement.NewService(store, plan.Default(),
			entitlement.WithCache(cache.NewMemory[entitlement.UserEntitlement](), time.Hour),
			entitlement.WithServiceClock(clock),
		)
		userID := uuid.New()

		require.NoError(t, svc.ConsumeOne(ctx, userID))
		assert.Equal(t, int64(4), svc.Remaining(ctx, userID))

		current = time.Date(2025, time.April, 1, 0, 0, 1, 0, time.UTC)

		assert.Equal(t, int64(5), svc.Remaining(ctx, userID))
	})
}

func TestServiceGroupPool(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	newGroupService := func(t *testing.T) (*entitlement.Service, *entitlement.MemoryStore, *entitlement.MemoryGroupStore) {
		t.Helper()
		store := entitlement.NewMemoryStore()
		groups := entitlement.NewMemoryGroupStore()
		svc := entitlement.NewService(store, plan.Default(), entitlement.WithGroupStore(groups))
		return svc, store, groups
	}

	t.Run("active member takes the richer of the two quotas", func(t *testing.T) {
		t.Parallel()

		svc, store, groups := newGroupService(t)
		ownerID := uuid.New()
		memberID := uuid.New()

		_, err := store.CreateDefault(ctx, memberID)
		require.NoError(t, err)
		for n := 0; n < 2; n++ {
			require.NoError(t, svc.ConsumeOne(ctx, memberID))
		}
		require.NoError(t, groups.Upsert(ctx, &entitlement.GroupMembership{
			GroupID:         ownerID,
			MemberUserID:    memberID,
			QuotaAllocation: 60,
			Status:          entitlement.MembershipActive,
		}))

		// Individual remaining is 3; the 60-unit allocation wins.
		assert.Equal(t, int64(60), svc.Remaining(ctx, memberID))
		assert.True(t, svc.CanCreateMaterial(ctx, memberID))
	})

	t.Run("inactive membership does not count", func(t *testing.T) {
		t.Parallel()

		svc, store, groups := newGroupService(t)
		memberID := uuid.New()

		_, err := store.CreateDefault(ctx, memberID)
		require.NoError(t, err)
		require.NoError(t, groups.Upsert(ctx, &entitlement.GroupMembership{
			GroupID:         uuid.New(),
			MemberUserID:    memberID,
			QuotaAllocation: 60,
			Status:          entitlement.MembershipInactive,
		}))

		assert.Equal(t, int64(5), svc.Remaining(ctx, memberID))
	})

	t.Run("group owner draws on the pool plan directly", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newGroupService(t)
		ownerID := uuid.New()

		_, err := store.CreateDefault(ctx, ownerID)
		require.NoError(t, err)
		_, err = store.SetPlan(ctx, ownerID, plan.GrupoEscolar, nil)
		require.NoError(t, err)
		require.NoError(t, svc.ConsumeOne(ctx, ownerID))

		assert.Equal(t, int64(299), svc.Remaining(ctx, ownerID))
	})

	t.Run("over-allocation is reported, not refused", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newGroupService(t)
		ownerID := uuid.New()

		over, err := svc.AssignGroupMember(ctx, &entitlement.GroupMembership{
			GroupID:         ownerID,
			MemberUserID:    uuid.New(),
			QuotaAllocation: 250,
			Status:          entitlement.MembershipActive,
		})
		require.NoError(t, err)
		assert.False(t, over)

		// Pool quota is 300; a second 100-unit allocation tips it over.
		over, err = svc.AssignGroupMember(ctx, &entitlement.GroupMembership{
			GroupID:         ownerID,
			MemberUserID:    uuid.New(),
			QuotaAllocation: 100,
			Status:          entitlement.MembershipActive,
		})
		require.NoError(t, err)
		assert.True(t, over)
	})

	t.Run("group store not configured", func(t *testing.T) {
		t.Parallel()

		svc := entitlement.NewService(entitlement.NewMemoryStore(), plan.Default())
		_, err := svc.AssignGroupMember(ctx, &entitlement.GroupMembership{
			GroupID:      uuid.New(),
			MemberUserID: uuid.New(),
		})
		require.Error(t, err)
	})
}

func TestServiceCurrentPlanDisplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := entitlement.NewMemoryStore()
	svc := entitlement.NewService(store, plan.Default())
	userID := uuid.New()

	_, err := store.CreateDefault(ctx, userID)
	require.NoError(t, err)
	_, err = store.SetPlan(ctx, userID, plan.Professor, nil)
	require.NoError(t, err)
	require.NoError(t, svc.ConsumeOne(ctx, userID))

	view := svc.CurrentPlanDisplay(ctx, userID)
	assert.Equal(t, plan.Professor, view.Plan)
	assert.Equal(t, "Professor", view.Label)
	assert.Equal(t, int64(50), view.Quota)
	assert.Equal(t, int64(1), view.Used)
	assert.Equal(t, int64(49), view.Remaining)
	assert.Contains(t, view.Features, plan.FeatureExportPDF)
}
