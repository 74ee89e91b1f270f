// Package metrics exposes Prometheus instrumentation for routing decisions,
// chain head lookups, upstream calls and the inbound HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmagro/eth-rpc-tier-router/internal/routing"
)

const namespace = "tierproxy"

var LatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics contains all metric groups and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	Routing  *RoutingMetrics
	Upstream *UpstreamMetrics
	HTTP     *HTTPMetrics
}

// New creates a registry with every metric group plus the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Routing:  NewRoutingMetrics(),
		Upstream: NewUpstreamMetrics(),
		HTTP:     NewHTTPMetrics(),
	}

	m.Routing.Register(reg)
	m.Upstream.Register(reg)
	m.HTTP.Register(reg)

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// HeadResolved implements routing.Observer.
func (m *Metrics) HeadResolved(chainID uint64, head routing.ChainHead, elapsed time.Duration) {
	chain := chainLabel(chainID)
	m.Routing.HeadLookups.WithLabelValues(chain, string(head.Source)).Inc()
	m.Routing.HeadDuration.WithLabelValues(chain).Observe(elapsed.Seconds())
	if !head.IsSentinel() {
		m.Routing.ChainHead.WithLabelValues(chain).Set(float64(head.BlockNumber))
	}
}

// Routed implements routing.Observer.
func (m *Metrics) Routed(chainID uint64, method string, c routing.Classification) {
	m.Routing.Decisions.WithLabelValues(chainLabel(chainID), method, c.Tier.String(), string(c.Reason)).Inc()
	if c.Ref.Kind == routing.RefNumber && c.BlocksAgo > 0 {
		m.Routing.BlocksAgo.WithLabelValues(chainLabel(chainID)).Observe(float64(c.BlocksAgo))
	}
}

// ObserveUpstream implements upstream.CallRecorder.
func (m *Metrics) ObserveUpstream(chainID uint64, tier routing.NodeTier, status int, elapsed time.Duration, err error) {
	chain := chainLabel(chainID)
	m.Upstream.Requests.WithLabelValues(chain, tier.String(), statusClass(status, err)).Inc()
	m.Upstream.Duration.WithLabelValues(chain, tier.String()).Observe(elapsed.Seconds())
}

// ObserveRequest records one inbound HTTP request.
func (m *Metrics) ObserveRequest(handler string, status int, elapsed time.Duration) {
	m.HTTP.RequestsTotal.WithLabelValues(handler, statusClass(status, nil)).Inc()
	m.HTTP.RequestDuration.WithLabelValues(handler).Observe(elapsed.Seconds())
}

// ObserveInvalidRequest counts requests rejected before routing.
func (m *Metrics) ObserveInvalidRequest(reason string) {
	m.HTTP.Rejected.WithLabelValues(reason).Inc()
}

func chainLabel(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}

// statusClass buckets an HTTP status as 2xx..5xx, or "error" when no
// response was received.
func statusClass(status int, err error) string {
	if err != nil && status == 0 {
		return "error"
	}
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "error"
	}
}
