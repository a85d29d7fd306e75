package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedWindow pushes one full averaging window of constant frame times, given
// in seconds.
func feedWindow(frameSeconds float64) {
	for i := 0; i < frameTimeWindow; i++ {
		MetricsUpdate(frameSeconds)
	}
}

func TestMetricsFrameTimeAverage(t *testing.T) {
	require.NoError(t, MetricsInitialize())
	metrics = &metricsData{}

	feedWindow(0.010)
	assert.InDelta(t, 10.0, MetricsFrameTime(), 1e-9)
}

func TestMetricsFrameTimeWindowsDoNotAccumulate(t *testing.T) {
	require.NoError(t, MetricsInitialize())
	metrics = &metricsData{}

	// A second window of identical frames must report the same average, and a
	// window of different frames must reflect only its own samples.
	feedWindow(0.010)
	feedWindow(0.010)
	assert.InDelta(t, 10.0, MetricsFrameTime(), 1e-9)

	feedWindow(0.020)
	assert.InDelta(t, 20.0, MetricsFrameTime(), 1e-9)
}

func TestMetricsFrameTimeHoldsUntilWindowCompletes(t *testing.T) {
	require.NoError(t, MetricsInitialize())
	metrics = &metricsData{}

	feedWindow(0.010)
	for i := 0; i < frameTimeWindow-1; i++ {
		MetricsUpdate(0.030)
	}
	assert.InDelta(t, 10.0, MetricsFrameTime(), 1e-9)

	MetricsUpdate(0.030)
	assert.InDelta(t, 30.0, MetricsFrameTime(), 1e-9)
}

func TestMetricsFPSCountsFramesPerSecond(t *testing.T) {
	require.NoError(t, MetricsInitialize())
	metrics = &metricsData{}

	// 60 frames of ~16.7ms cross the one-second mark on frame 60.
	for i := 0; i < 61; i++ {
		MetricsUpdate(1.0 / 60.0)
	}
	assert.InDelta(t, 60.0, MetricsFPS(), 1.0)
}
