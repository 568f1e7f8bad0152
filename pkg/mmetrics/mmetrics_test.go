package mmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDurationIsPositive(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.Greater(t, timer.Duration(), time.Duration(0))
}

func TestTimerObserveDuration(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_observe_duration", Help: "test"})
	timer := NewTimer()
	timer.ObserveDuration(h)

	m := &dto.Metric{}
	require.NoError(t, h.Write(m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestTimerObserveDurationVec(t *testing.T) {
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_observe_duration_vec", Help: "test"}, []string{"form"})
	timer := NewTimer()
	timer.ObserveDurationVec(hv, "select")

	m := &dto.Metric{}
	require.NoError(t, hv.WithLabelValues("select").(prometheus.Metric).Write(m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestHandlerIsNotNil(t *testing.T) {
	assert.NotNil(t, Handler())
}
