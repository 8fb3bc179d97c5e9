package dtmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func TestNewTimerStartsImmediately(t *testing.T) {
	timer := NewTimer()
	elapsed := timer.Elapsed()
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	assert.Less(t, elapsed, time.Second)
}

func TestTimerElapsedGrows(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)
	first := timer.Elapsed()
	time.Sleep(20 * time.Millisecond)
	second := timer.Elapsed()
	assert.Greater(t, second, first)
}

func TestTimerObserveDurationRecordsIntoHistogram(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dtmetrics_test_duration_seconds",
		Help:    "scratch histogram for the Timer test",
		Buckets: prometheus.DefBuckets,
	})
	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDuration(h) // must not panic

	var metric dto.Metric
	require := h.Write(&metric)
	assert.NoError(t, require)
	assert.EqualValues(t, 1, metric.GetHistogram().GetSampleCount())
}

// Collectors are registered exactly once, at package init. Registering
// one again must fail with AlreadyRegisteredError, proving the init()
// MustRegister call already succeeded and these collectors are live.
func TestScanLifecycleCollectorsAreRegistered(t *testing.T) {
	err := prometheus.Register(ScansRunning)
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)
}
