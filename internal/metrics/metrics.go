// Package metrics exposes Prometheus metrics for the market data gateway, the
// portfolio engine and scheduled jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spreadbook"

// Registry holds every spreadbook metric on its own Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	// Market data gateway
	GatewayCalls    *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec

	// Portfolio engine
	PortfolioBuilds *prometheus.CounterVec
	TradesMarked    *prometheus.CounterVec
	TradesResolved  *prometheus.CounterVec
	PassDuration    *prometheus.HistogramVec
	PassFailures    *prometheus.CounterVec

	// Scheduler
	JobRuns     *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
}

// NewRegistry creates and registers all metrics, plus the Go runtime and process
// collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		GatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_calls_total",
				Help:      "Market data gateway calls by method and outcome",
			},
			[]string{"method", "outcome"},
		),

		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_call_duration_seconds",
				Help:      "Market data gateway call latency, including throttle wait",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),

		PortfolioBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "portfolios_built_total",
				Help:      "Portfolios created from scans, by scan name",
			},
			[]string{"scan_name"},
		),

		TradesMarked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_marked_total",
				Help:      "Open trade valuations by outcome",
			},
			[]string{"outcome"},
		),

		TradesResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_resolved_total",
				Help:      "Expired trades settled, by final status",
			},
			[]string{"status"},
		),

		PassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pnl_pass_duration_seconds",
				Help:      "Duration of P&L passes",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"pass"},
		),

		PassFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pnl_pass_failures_total",
				Help:      "Portfolios that failed during a P&L pass",
			},
			[]string{"pass"},
		),

		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Scheduled job runs by job and result",
			},
			[]string{"job", "result"},
		),

		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Scheduled job duration",
				Buckets:   []float64{0.1, 1, 5, 30, 60, 300, 900},
			},
			[]string{"job"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.GatewayCalls,
		r.GatewayDuration,
		r.PortfolioBuilds,
		r.TradesMarked,
		r.TradesResolved,
		r.PassDuration,
		r.PassFailures,
		r.JobRuns,
		r.JobDuration,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// TrackGauge registers a gauge whose value is read from fn at scrape time.
func (r *Registry) TrackGauge(name, help string, fn func() float64) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// ObserveGatewayCall implements marketdata.CallObserver.
func (r *Registry) ObserveGatewayCall(method, outcome string, duration time.Duration) {
	r.GatewayCalls.WithLabelValues(method, outcome).Inc()
	r.GatewayDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// PortfoliosBuilt implements portfolios.Observer.
func (r *Registry) PortfoliosBuilt(scanName string, count int) {
	r.PortfolioBuilds.WithLabelValues(scanName).Add(float64(count))
}

// TradeMarked implements portfolios.Observer.
func (r *Registry) TradeMarked(outcome string) {
	r.TradesMarked.WithLabelValues(outcome).Inc()
}

// TradeResolved implements portfolios.Observer.
func (r *Registry) TradeResolved(status string) {
	r.TradesResolved.WithLabelValues(status).Inc()
}

// PassCompleted implements portfolios.Observer.
func (r *Registry) PassCompleted(pass string, duration time.Duration, failed int) {
	r.PassDuration.WithLabelValues(pass).Observe(duration.Seconds())
	if failed > 0 {
		r.PassFailures.WithLabelValues(pass).Add(float64(failed))
	}
}

// ObserveJob records one scheduled job run.
func (r *Registry) ObserveJob(job string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.JobRuns.WithLabelValues(job, result).Inc()
	r.JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}
