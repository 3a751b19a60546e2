package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routingAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_routing",
			Name:      "attempts_total",
			Help:      "Routing attempts by outcome.",
		},
		[]string{"outcome"},
	)

	routingDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sms_routing",
			Name:      "attempt_duration_seconds",
			Help:      "End-to-end routing attempt duration.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	tenantCacheLookupsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_routing",
			Name:      "tenant_cache_lookups_total",
			Help:      "Tenant directory cache lookups by result.",
		},
		[]string{"result"}, // hit, negative_hit, miss, coalesced
	)

	agentGatewayDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sms_routing",
			Name:      "agent_gateway_duration_seconds",
			Help:      "Duration of agent gateway invocations.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	ledgerRecordsWrittenCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_routing",
			Name:      "ledger_records_written_total",
			Help:      "Usage records durably written, by direction.",
		},
		[]string{"direction"},
	)

	ledgerRecordsDroppedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sms_routing",
			Name:      "ledger_records_dropped_total",
			Help:      "Usage records dropped because the ledger buffer was full.",
		},
	)

	ledgerQueueDepthGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sms_routing",
			Name:      "ledger_queue_depth",
			Help:      "Usage records waiting in the ledger buffer.",
		},
	)

	usageEventsPublishedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_routing",
			Name:      "usage_events_published_total",
			Help:      "Usage events published to the broker, by status.",
		},
		[]string{"status"}, // published, error
	)

	spamTokenRefreshCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_routing",
			Name:      "spam_token_refreshes_total",
			Help:      "Spam token list refreshes, by status.",
		},
		[]string{"status"}, // ok, error
	)
)
