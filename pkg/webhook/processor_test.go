package webhook_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planodeaula/entitlements/pkg/audit"
	"github.com/planodeaula/entitlements/pkg/entitlement"
	"github.com/planodeaula/entitlements/pkg/plan"
	"github.com/planodeaula/entitlements/pkg/webhook"
)

type fixture struct {
	processor *webhook.Processor
	store     *entitlement.MemoryStore
	users     *webhook.MemoryUserResolver
	auditLog  *audit.MemoryStore
}

func newFixture(t *testing.T, cfg webhook.Config, opts ...webhook.ProcessorOption) *fixture {
	t.Helper()

	store := entitlement.NewMemoryStore()
	users := webhook.NewMemoryUserResolver()
	auditLog := audit.NewMemoryStore()

	return &fixture{
		processor: webhook.NewProcessor(cfg, store, users, auditLog, opts...),
		store:     store,
		users:     users,
		auditLog:  auditLog,
	}
}

func (f *fixture) registerUser(t *testing.T, email string) uuid.UUID {
	t.Helper()

	userID := uuid.New()
	f.users.Add(email, userID)
	_, err := f.store.CreateDefault(context.Background(), userID)
	require.NoError(t, err)
	return userID
}

func (f *fixture) lastAudit(t *testing.T) audit.Record {
	t.Helper()

	records, err := f.auditLog.List(context.Background(), audit.Filter{Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, records)
	return records[0]
}

func TestProcessorAppliesPlans(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cases := []struct {
		name    string
		payload string
		want    plan.Plan
	}{
		{
			name:    "approved subscription with professor product",
			payload: `{"email":"ana@escola.br","evento":"assinatura_aprovada","produto":"Plano Professor (Mensal)"}`,
			want:    plan.Professor,
		},
		{
			name:    "approved purchase with group product",
			payload: `{"email":"ana@escola.br","evento":"compra_aprovada","produto":"Plano Grupo Escolar"}`,
			want:    plan.GrupoEscolar,
		},
		{
			name:    "renewal without product defaults to professor",
			payload: `{"email":"ana@escola.br","evento":"assinatura_renovada"}`,
			want:    plan.Professor,
		},
		{
			name:    "event name with spaces and mixed case",
			payload: `{"email":"ana@escola.br","evento":"Assinatura Aprovada","produto":"professor"}`,
			want:    plan.Professor,
		},
		{
			name:    "cancellation drops to gratuito",
			payload: `{"email":"ana@escola.br","evento":"assinatura_cancelada"}`,
			want:    plan.Gratuito,
		},
		{
			name:    "overdue subscription drops to gratuito",
			payload: `{"email":"ana@escola.br","evento":"assinatura_atrasada","produto":"Plano Professor (Mensal)"}`,
			want:    plan.Gratuito,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, webhook.Config{})
			userID := f.registerUser(t, "ana@escola.br")

			response, status := f.processor.Process(ctx, []byte(tc.payload), webhook.Meta{})
			assert.Equal(t, http.StatusOK, status)
			assert.True(t, response.Success)
			assert.Equal(t, string(tc.want), response.PlanApplied)

			record, err := f.store.Get(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, record.Plan)

			entry := f.lastAudit(t)
			assert.Equal(t, audit.StatusApplied, entry.Status)
			assert.Equal(t, string(tc.want), entry.PlanApplied)
		})
	}
}

func TestProcessorKeepsUsageAcrossUpgrade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, webhook.Config{})
	userID := f.registerUser(t, "ana@escola.br")

	limits := plan.Default().Limits()
	for n := 0; n < 5; n++ {
		_, err := f.store.IncrementUsage(ctx, userID, limits)
		require.NoError(t, err)
	}

	_, status := f.processor.Process(ctx,
		[]byte(`{"email":"ana@escola.br","evento":"assinatura_aprovada","produto":"Plano Professor (Mensal)"}`),
		webhook.Meta{})
	require.Equal(t, http.StatusOK, status)

	record, err := f.store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, plan.Professor, record.Plan)
	assert.Equal(t, int64(5), record.MaterialsThisPeriod)
}

func TestProcessorRedelivery(t *testing.T) {
	t.Parallel()

	// Providers redeliver on timeout; a duplicate must converge on the
	// same state while still leaving one audit record per call.
	ctx := context.Background()
	f := newFixture(t, webhook.Config{})
	userID := f.registerUser(t, "ana@escola.br")
	payload := []byte(`{"email":"ana@escola.br","evento":"assinatura_aprovada","produto":"Plano Professor (Mensal)"}`)

	first, status := f.processor.Process(ctx, payload, webhook.Meta{})
	require.Equal(t, http.StatusOK, status)
	afterFirst, err := f.store.Get(ctx, userID)
	require.NoError(t, err)

	second, status := f.processor.Process(ctx, payload, webhook.Meta{})
	require.Equal(t, http.StatusOK, status)
	afterSecond, err := f.store.Get(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, afterFirst, afterSecond)
	assert.Equal(t, 2, f.auditLog.Len())
}

func TestProcessorCreatesMissingEntitlement(t *testing.T) {
	t.Parallel()

	// Purchase lands before the user's first login created a quota row.
	ctx := context.Background()
	f := newFixture(t, webhook.Config{})
	userID := uuid.New()
	f.users.Add("nova@escola.br", userID)

	_, status := f.processor.Process(ctx,
		[]byte(`{"email":"nova@escola.br","evento":"compra_aprovada","produto":"Plano Grupo Escolar"}`),
		webhook.Meta{})
	require.Equal(t, http.StatusOK, status)

	record, err := f.store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, plan.GrupoEscolar, record.Plan)
}

func TestProcessorUnmappedEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, webhook.Config{})
	userID := f.registerUser(t, "ana@escola.br")

	response, status := f.processor.Process(ctx,
		[]byte(`{"email":"ana@escola.br","evento":"fatura_gerada"}`),
		webhook.Meta{})

	// Acknowledged so the provider does not retry, but nothing applied.
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, response.Success)
	assert.Empty(t, response.PlanApplied)

	record, err := f.store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, plan.Gratuito, record.Plan)

	entry := f.lastAudit(t)
	assert.Equal(t, audit.StatusEventNotMapped, entry.Status)
}

func TestProcessorUserNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, webhook.Config{})

	response, status := f.processor.Process(ctx,
		[]byte(`{"email":"desconhecida@escola.br","evento":"assinatura_aprovada","produto":"professor"}`),
		webhook.Meta{})

	assert.Equal(t, http.StatusOK, status)
	assert.False(t, response.Success)

	entry := f.lastAudit(t)
	assert.Equal(t, audit.StatusUserNotFound, entry.Status)
	assert.Equal(t, "desconhecida@escola.br", entry.Email)
}

func TestProcessorRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cases := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `evento=assinatura_aprovada&email=a@b.c`},
		{name: "missing email", payload: `{"evento":"assinatura_aprovada"}`},
		{name: "missing evento", payload: `{"email":"ana@escola.br"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, webhook.Config{})
			f.registerUser(t, "ana@escola.br")

			response, status := f.processor.Process(ctx, []byte(tc.payload), webhook.Meta{})
			assert.Equal(t, http.StatusBadRequest, status)
			assert.False(t, response.Success)

			entry := f.lastAudit(t)
			assert.Equal(t, audit.StatusError, entry.Status)
			assert.Equal(t, tc.payload, entry.RawPayload)
		})
	}
}

func TestProcessorToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("mismatch is rejected and leaves state unchanged", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webhook.Config{Token: "segredo"})
		userID := f.registerUser(t, "ana@escola.br")

		response, status := f.processor.Process(ctx,
			[]byte(`{"email":"ana@escola.br","evento":"assinatura_aprovada","produto":"professor","token":"errado"}`),
			webhook.Meta{})

		assert.Equal(t, http.StatusForbidden, status)
		assert.False(t, response.Success)

		record, err := f.store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, plan.Gratuito, record.Plan)

		entry := f.lastAudit(t)
		assert.Equal(t, audit.StatusError, entry.Status)
	})

	t.Run("match is accepted", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webhook.Config{Token: "segredo"})
		f.registerUser(t, "ana@escola.br")

		_, status := f.processor.Process(ctx,
			[]byte(`{"email":"ana@escola.br","evento":"assinatura_aprovada","produto":"professor","token":"segredo"}`),
			webhook.Meta{})
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("absent token passes when no secret is configured", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webhook.Config{})
		f.registerUser(t, "ana@escola.br")

		_, status := f.processor.Process(ctx,
			[]byte(`{"email":"ana@escola.br","evento":"assinatura_aprovada","produto":"professor"}`),
			webhook.Meta{})
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("supplied token is rejected when no secret is configured", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, webhook.Config{})
		f.registerUser(t, "ana@escola.br")

		_, status := f.processor.Process(ctx,
			[]byte(`{"email":"ana@escola.br","evento":"assinatura_aprovada","produto":"professor","token":"qualquer"}`),
			webhook.Meta{})
		assert.Equal(t, http.StatusForbidden, status)
	})
}

type invalidationRecorder struct {
	invalidated []uuid.UUID
}

func (r *invalidationRecorder) InvalidateUser(_ context.Context, userID uuid.UUID) {
	r.invalidated = append(r.invalidated, userID)
}

func TestProcessorInvalidatesCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	recorder := &invalidationRecorder{}
	f := newFixture(t, webhook.Config{}, webhook.WithInvalidator(recorder))
	userID := f.registerUser(t, "ana@escola.br")

	_, status := f.processor.Process(ctx,
		[]byte(`{"email":"ana@escola.br","evento":"assinatura_aprovada","produto":"professor"}`),
		webhook.Meta{})
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, []uuid.UUID{userID}, recorder.invalidated)
}

func TestProcessorAuditCarriesMeta(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, webhook.Config{})
	f.registerUser(t, "ana@escola.br")

	_, status := f.processor.Process(ctx,
		[]byte(`{"email":"ana@escola.br","evento":"assinatura_aprovada","produto":"professor"}`),
		webhook.Meta{SourceIP: "203.0.113.7", UserAgent: "provider-hook/2.1"})
	require.Equal(t, http.StatusOK, status)

	entry := f.lastAudit(t)
	assert.Equal(t, "203.0.113.7", entry.SourceIP)
	assert.Equal(t, "provider-hook/2.1", entry.UserAgent)
	assert.Equal(t, "assinatura_aprovada", entry.Event)
}
