package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/planodeaula/entitlements/pkg/audit"
	"github.com/planodeaula/entitlements/pkg/entitlement"
	"github.com/planodeaula/entitlements/pkg/metrics"
	"github.com/planodeaula/entitlements/pkg/plan"
)

// Config holds the webhook endpoint settings.
type Config struct {
	// Token is the shared secret the provider includes in payloads.
	// When empty, token checking is disabled.
	Token string `env:"WEBHOOK_TOKEN"`

	// StoreTimeout bounds each quota-store call during processing.
	StoreTimeout time.Duration `env:"WEBHOOK_STORE_TIMEOUT" envDefault:"5s"`
}

// Event is the provider's notification payload.
type Event struct {
	Email   string `json:"email"`
	Evento  string `json:"evento"`
	Produto string `json:"produto,omitempty"`
	Token   string `json:"token,omitempty"`
}

// Response is the JSON body returned to the provider.
type Response struct {
	Success     bool   `json:"success"`
	PlanApplied string `json:"plano_aplicado,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Meta carries source network metadata into the audit record.
type Meta struct {
	SourceIP  string
	UserAgent string
}

// Invalidator drops a user's cached entitlement after a plan change.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID)
}

// Processor handles one provider notification per call. It runs
// independently of and concurrently with the entitlement service; the
// quota store's atomic SetPlan is what keeps the race between a plan
// change and a simultaneous quota consumption safe.
type Processor struct {
	store        entitlement.Store
	users        UserResolver
	auditLog     audit.Store
	invalidator  Invalidator
	token        string
	storeTimeout time.Duration
	log          *slog.Logger
	now          func() time.Time
}

// ProcessorOption configures optional Processor dependencies.
type ProcessorOption func(*Processor)

// WithInvalidator wires cache invalidation after successful plan changes.
func WithInvalidator(inv Invalidator) ProcessorOption {
	return func(p *Processor) { p.invalidator = inv }
}

// WithLogger supplies a structured logger. Without one, logs are discarded.
func WithLogger(log *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithProcessorClock replaces the wall clock, for tests.
func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor creates a Processor. Panics if store, users or auditLog
// is nil to fail fast during initialization.
func NewProcessor(cfg Config, store entitlement.Store, users UserResolver, auditLog audit.Store, opts ...ProcessorOption) *Processor {
	if store == nil {
		panic("webhook: entitlement store is required")
	}
	if users == nil {
		panic("webhook: user resolver is required")
	}
	if auditLog == nil {
		panic("webhook: audit store is required")
	}

	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}

	p := &Processor{
		store:        store,
		users:        users,
		auditLog:     auditLog,
		token:        cfg.Token,
		storeTimeout: storeTimeout,
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one raw provider call and returns the response body
// and HTTP status. Exactly one audit record is written on every path.
// There is no retry loop here: redelivery is the provider's job, and
// redelivered events are safe because SetPlan is idempotent in effect.
func (p *Processor) Process(ctx context.Context, raw []byte, meta Meta) (Response, int) {
	record := &audit.Record{
		ID:         uuid.New(),
		ReceivedAt: p.now().UTC(),
		RawPayload: string(raw),
		SourceIP:   meta.SourceIP,
		UserAgent:  meta.UserAgent,
	}

	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		record.Status = audit.StatusError
		record.Detail = "payload invalido"
		p.writeAudit(ctx, record)
		p.log.ErrorContext(ctx, "webhook payload not parseable", "error", err, "source_ip", meta.SourceIP)
		return Response{Success: false, Message: "payload invalido"}, http.StatusBadRequest
	}

	record.Email = event.Email
	record.Event = event.Evento
	record.Product = event.Produto

	if event.Email == "" || event.Evento == "" {
		record.Status = audit.StatusError
		record.Detail = ErrMissingFields.Error()
		p.writeAudit(ctx, record)
		p.log.ErrorContext(ctx, "webhook rejected, missing required fields",
			"has_email", event.Email != "", "has_evento", event.Evento != "")
		return Response{Success: false, Message: "campos obrigatorios ausentes: email, evento"}, http.StatusBadRequest
	}

	if event.Token != "" && !p.tokenMatches(event.Token) {
		record.Status = audit.StatusError
		record.Detail = ErrInvalidToken.Error()
		p.writeAudit(ctx, record)
		p.log.ErrorContext(ctx, "webhook rejected, token mismatch", "email", event.Email, "source_ip", meta.SourceIP)
		return Response{Success: false, Message: "token invalido"}, http.StatusForbidden
	}

	target, mapped := targetPlan(event.Evento, event.Produto)
	if !mapped {
		record.Status = audit.StatusEventNotMapped
		p.writeAudit(ctx, record)
		p.log.InfoContext(ctx, "webhook event not mapped", "evento", event.Evento, "email", event.Email)
		return Response{Success: true, Message: "evento nao mapeado"}, http.StatusOK
	}

	ctx2, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	userID, err := p.users.ResolveEmail(ctx2, event.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			record.Status = audit.StatusUserNotFound
			p.writeAudit(ctx, record)
			p.log.InfoContext(ctx, "webhook user not found", "email", event.Email, "evento", event.Evento)
			return Response{Success: false, Message: "usuario nao encontrado"}, http.StatusOK
		}

		record.Status = audit.StatusError
		record.Detail = "falha ao resolver usuario"
		p.writeAudit(ctx, record)
		p.log.ErrorContext(ctx, "webhook user resolution failed", "email", event.Email, "error", err)
		return Response{Success: false, Message: "erro interno"}, http.StatusInternalServerError
	}

	if err := p.applyPlan(ctx2, userID, target); err != nil {
		record.Status = audit.StatusError
		record.Detail = "erro ao atualizar plano"
		p.writeAudit(ctx, record)
		// Internal detail stays in the log; the provider sees a generic failure.
		p.log.ErrorContext(ctx, "webhook plan update failed",
			"user_id", userID, "target_plan", target, "error", err)
		return Response{Success: false, Message: "erro interno"}, http.StatusInternalServerError
	}

	if p.invalidator != nil {
		p.invalidator.InvalidateUser(ctx, userID)
	}

	record.Status = audit.StatusApplied
	record.PlanApplied = string(target)
	p.writeAudit(ctx, record)
	metrics.WebhookEvents.WithLabelValues(string(audit.StatusApplied)).Inc()
	p.log.InfoContext(ctx, "webhook plan applied",
		"user_id", userID, "plan", target, "evento", event.Evento)

	return Response{Success: true, PlanApplied: string(target)}, http.StatusOK
}

// applyPlan sets the target plan, lazily creating the default record
// for users who bought before their first login.
func (p *Processor) applyPlan(ctx context.Context, userID uuid.UUID, target plan.Plan) error {
	_, err := p.store.SetPlan(ctx, userID, target, nil)
	if errors.Is(err, entitlement.ErrNotFound) {
		if _, err = p.store.CreateDefault(ctx, userID); err == nil {
			_, err = p.store.SetPlan(ctx, userID, target, nil)
		}
	}
	return err
}

func (p *Processor) tokenMatches(supplied string) bool {
	if p.token == "" {
		// No secret configured; a supplied token cannot be verified, so
		// it is rejected rather than waved through.
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(p.token)) == 1
}

// writeAudit appends the record, logging on failure. The entitlement
// mutation has already happened by the time the success record is
// written, so an audit failure is reported but never unwinds it.
func (p *Processor) writeAudit(ctx context.Context, record *audit.Record) {
	if record.Status != audit.StatusApplied {
		metrics.WebhookEvents.WithLabelValues(string(record.Status)).Inc()
	}
	if err := p.auditLog.Append(ctx, record); err != nil {
		p.log.ErrorContext(ctx, "audit append failed", "status", record.Status, "error", err)
	}
}
