package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStepDuration("build", time.Second)
	r.ObserveRunDuration("build_publish", time.Second)
	r.IncStepResult("sync", true)
	r.IncRunOutcome("build", OutcomeSuccess)
}

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncRunOutcome("build_publish", OutcomeSuccess)
	pr.IncRunOutcome("build_publish", OutcomeSuccess)
	pr.IncRunOutcome("build", OutcomeFailed)
	pr.IncStepResult("sync", true)
	pr.IncStepResult("post_publish", false)
	pr.ObserveStepDuration("build", 2*time.Second)
	pr.ObserveRunDuration("build", 3*time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(pr.runOutcome.WithLabelValues("build_publish", OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(pr.runOutcome.WithLabelValues("build", OutcomeFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(pr.stepResults.WithLabelValues("sync", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pr.stepResults.WithLabelValues("post_publish", "error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStepDuration("build", time.Second)
	pr.IncRunOutcome("build", OutcomeSuccess)
}
