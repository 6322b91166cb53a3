package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	stepDuration *prom.HistogramVec
	runDuration  *prom.HistogramVec
	stepResults  *prom.CounterVec
	runOutcome   *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stepDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bakery",
			Name:      "step_duration_seconds",
			Help:      "Duration of individual run steps",
			Buckets:   prom.DefBuckets,
		}, []string{"step"})
		pr.runDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bakery",
			Name:      "run_duration_seconds",
			Help:      "Total run duration by action",
			Buckets:   prom.DefBuckets,
		}, []string{"action"})
		pr.stepResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bakery",
			Name:      "step_results_total",
			Help:      "Step result counts by outcome",
		}, []string{"step", "result"})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bakery",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by action and final status",
		}, []string{"action", "outcome"})
		reg.MustRegister(pr.stepDuration, pr.runDuration, pr.stepResults, pr.runOutcome)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(action string, d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(action).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(step string, success bool) {
	if p == nil || p.stepResults == nil {
		return
	}
	result := "error"
	if success {
		result = "success"
	}
	p.stepResults.WithLabelValues(step, result).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(action, outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(action, outcome).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
