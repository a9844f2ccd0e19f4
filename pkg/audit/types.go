package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the resolved outcome of one received webhook call.
// Values match the payment provider's locale so operator tooling and
// provider dashboards agree on terminology.
type Status string

const (
	// StatusApplied means the event mapped to a plan and the plan was set.
	StatusApplied Status = "aplicado"
	// StatusEventNotMapped means the event name maps to no plan change.
	StatusEventNotMapped Status = "evento_nao_mapeado"
	// StatusUserNotFound means no user matched the payload's email.
	StatusUserNotFound Status = "usuario_nao_encontrado"
	// StatusError covers validation, authentication and store failures.
	StatusError Status = "erro"
)

// Record is one row of the append-only webhook audit log.
type Record struct {
	ID          uuid.UUID `json:"id"`
	ReceivedAt  time.Time `json:"received_at"`
	Email       string    `json:"email"`
	Event       string    `json:"event"`
	Product     string    `json:"product,omitempty"`
	RawPayload  string    `json:"raw_payload"`
	Status      Status    `json:"status"`
	PlanApplied string    `json:"plan_applied,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	SourceIP    string    `json:"source_ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// Validate checks the record carries the fields every row must have.
func (r *Record) Validate() error {
	if r.Status == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidRecord)
	}
	if r.ReceivedAt.IsZero() {
		return fmt.Errorf("%w: received_at is required", ErrInvalidRecord)
	}
	return nil
}

// Filter narrows List queries for operator inspection.
// Zero fields are ignored.
type Filter struct {
	Email  string
	Status Status
	Since  time.Time
	Until  time.Time
	Limit  int
}
