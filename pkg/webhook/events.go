package webhook

import (
	"strings"

	"github.com/planodeaula/entitlements/pkg/plan"
)

// Provider event names after normalization. Activation events grant the
// plan selected by the product string; deactivation events drop the
// user back to gratuito. Anything else is logged as unmapped and leaves
// the entitlement untouched.
var (
	activationEvents = map[string]struct{}{
		"assinatura_aprovada": {},
		"assinatura_renovada": {},
		"compra_aprovada":     {},
	}

	deactivationEvents = map[string]struct{}{
		"assinatura_cancelada": {},
		"assinatura_atrasada":  {},
		"assinatura_expirada":  {},
		"assinatura_suspensa":  {},
		"venda_perdida":        {},
	}
)

// normalizeEvent canonicalizes a provider event name: lowercase,
// trimmed, spaces collapsed to underscores. The provider has sent both
// "assinatura aprovada" and "assinatura_aprovada" for the same event.
func normalizeEvent(event string) string {
	normalized := strings.ToLower(strings.TrimSpace(event))
	return strings.Join(strings.Fields(normalized), "_")
}

// targetPlan maps a provider event and product string to the plan to
// apply. The second return is false when the event maps to no plan
// change.
func targetPlan(event, product string) (plan.Plan, bool) {
	normalized := normalizeEvent(event)

	if _, ok := activationEvents[normalized]; ok {
		return planFromProduct(product), true
	}
	if _, ok := deactivationEvents[normalized]; ok {
		return plan.Gratuito, true
	}
	return "", false
}

// planFromProduct selects the paid plan by substring match on the
// product name, defaulting to professor when the product string names
// neither tier.
func planFromProduct(product string) plan.Plan {
	normalized := strings.ToLower(product)
	if strings.Contains(normalized, "grupo") {
		return plan.GrupoEscolar
	}
	if strings.Contains(normalized, "professor") {
		return plan.Professor
	}
	return plan.Professor
}
