package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics records HTTP API activity segmented by route and method.
type GatewayMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// SettlementMetricsRegistry tracks escrow and dispute throughput: contracts
// opened, funds released, fees collected, and rulings applied.
type SettlementMetricsRegistry struct {
	contracts *prometheus.CounterVec
	releases  prometheus.Counter
	feeUnits  prometheus.Counter
	disputes  *prometheus.CounterVec
	finalized *prometheus.CounterVec
}

var (
	gatewayOnce     sync.Once
	gatewayRegistry *GatewayMetrics

	settlementOnce     sync.Once
	settlementRegistry *SettlementMetricsRegistry
)

// Gateway returns the lazily-initialised HTTP metrics registry.
func Gateway() *GatewayMetrics {
	gatewayOnce.Do(func() {
		gatewayRegistry = &GatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "architex",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by route, method, and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "architex",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total HTTP errors segmented by route, method, and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "architex",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.errors,
			gatewayRegistry.latency,
		)
	})
	return gatewayRegistry
}

// Observe records a completed HTTP request. The status code should be the
// one ultimately written to the response writer.
func (m *GatewayMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// SettlementMetrics returns the lazily-initialised settlement registry.
func SettlementMetrics() *SettlementMetricsRegistry {
	settlementOnce.Do(func() {
		settlementRegistry = &SettlementMetricsRegistry{
			contracts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "architex",
				Subsystem: "settlement",
				Name:      "contracts_total",
				Help:      "Escrow contracts created segmented by kind (simple, milestone).",
			}, []string{"kind"}),
			releases: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "architex",
				Subsystem: "settlement",
				Name:      "releases_total",
				Help:      "Fund releases applied, counting each milestone separately.",
			}),
			feeUnits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "architex",
				Subsystem: "settlement",
				Name:      "fee_units_total",
				Help:      "Platform fee collected in minimal currency units.",
			}),
			disputes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "architex",
				Subsystem: "settlement",
				Name:      "disputes_total",
				Help:      "Dispute lifecycle transitions segmented by phase.",
			}, []string{"phase"}),
			finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "architex",
				Subsystem: "governance",
				Name:      "proposals_finalized_total",
				Help:      "Governance proposals finalized segmented by verdict.",
			}, []string{"verdict"}),
		}
		prometheus.MustRegister(
			settlementRegistry.contracts,
			settlementRegistry.releases,
			settlementRegistry.feeUnits,
			settlementRegistry.disputes,
			settlementRegistry.finalized,
		)
	})
	return settlementRegistry
}

// ContractCreated counts a new escrow contract.
func (m *SettlementMetricsRegistry) ContractCreated(kind string) {
	if m == nil {
		return
	}
	m.contracts.WithLabelValues(kind).Inc()
}

// ReleaseApplied counts a fund release and the fee it collected.
func (m *SettlementMetricsRegistry) ReleaseApplied(feeUnits float64) {
	if m == nil {
		return
	}
	m.releases.Inc()
	if feeUnits > 0 {
		m.feeUnits.Add(feeUnits)
	}
}

// DisputePhase counts a dispute lifecycle transition.
func (m *SettlementMetricsRegistry) DisputePhase(phase string) {
	if m == nil {
		return
	}
	m.disputes.WithLabelValues(phase).Inc()
}

// ProposalFinalized counts a finalized governance proposal.
func (m *SettlementMetricsRegistry) ProposalFinalized(verdict string) {
	if m == nil {
		return
	}
	m.finalized.WithLabelValues(verdict).Inc()
}
