// Package metrics holds the Prometheus collectors for the entitlement
// subsystem, registered on the default registry and exposed by the
// server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotaDenials counts ConsumeOne calls refused with quota exceeded.
	QuotaDenials = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "quota_denials_total",
		Help:      "Material creations refused because the monthly quota was spent.",
	})

	// CacheHits counts entitlement reads served from the quota cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "quota_cache_hits_total",
		Help:      "Entitlement reads served from the cache.",
	})

	// CacheMisses counts entitlement reads that fell through to the store.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "quota_cache_misses_total",
		Help:      "Entitlement reads that fell through to the quota store.",
	})

	// WebhookEvents counts processed payment-provider webhook calls by outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "webhook_events_total",
		Help:      "Payment-provider webhook calls by audit status.",
	}, []string{"status"})
)
