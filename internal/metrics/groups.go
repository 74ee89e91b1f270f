package metrics

import "github.com/prometheus/client_golang/prometheus"

// RoutingMetrics groups tier decision and head lookup metrics.
type RoutingMetrics struct {
	Decisions    *prometheus.CounterVec
	BlocksAgo    *prometheus.HistogramVec
	HeadLookups  *prometheus.CounterVec
	HeadDuration *prometheus.HistogramVec
	ChainHead    *prometheus.GaugeVec
}

func NewRoutingMetrics() *RoutingMetrics {
	return &RoutingMetrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routing_decisions_total",
				Help:      "Routing decisions by chain, method, tier and reason",
			},
			[]string{"chain_id", "method", "tier", "reason"},
		),
		BlocksAgo: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "routing_blocks_ago",
				Help:      "Depth below head of reads pinned to a block number",
				Buckets:   []float64{1, 8, 32, 64, 128, 256, 1024, 10000, 100000, 1e6},
			},
			[]string{"chain_id"},
		),
		HeadLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "head_lookups_total",
				Help:      "Chain head lookups by source (rpc or fallback)",
			},
			[]string{"chain_id", "source"},
		),
		HeadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "head_lookup_duration_seconds",
				Help:      "Chain head lookup duration in seconds",
				Buckets:   LatencyBuckets,
			},
			[]string{"chain_id"},
		),
		ChainHead: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chain_head_block",
				Help:      "Last chain head read from the full tier",
			},
			[]string{"chain_id"},
		),
	}
}

func (r *RoutingMetrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(r.Decisions, r.BlocksAgo, r.HeadLookups, r.HeadDuration, r.ChainHead)
}

// UpstreamMetrics groups node API call metrics.
type UpstreamMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewUpstreamMetrics() *UpstreamMetrics {
	return &UpstreamMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Upstream node calls by chain, tier and status class",
			},
			[]string{"chain_id", "tier", "status_class"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Upstream node call duration in seconds",
				Buckets:   LatencyBuckets,
			},
			[]string{"chain_id", "tier"},
		),
	}
}

func (u *UpstreamMetrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(u.Requests, u.Duration)
}

// HTTPMetrics groups inbound request metrics.
type HTTPMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	Rejected         *prometheus.CounterVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"handler", "status_class"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   LatencyBuckets,
			},
			[]string{"handler"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		Rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rejected_requests_total",
				Help:      "Requests rejected before routing, by reason",
			},
			[]string{"reason"},
		),
	}
}

func (h *HTTPMetrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(h.RequestsTotal, h.RequestDuration, h.RequestsInFlight, h.Rejected)
}
