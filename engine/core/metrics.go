package core

import "sync"

// frameTimeWindow is the number of frame samples folded into one rolling
// frame-time average.
const frameTimeWindow = 30

type metricsData struct {
	samples     [frameTimeWindow]float64
	sampleIndex int
	frameTimeMS float64

	frames        int32
	accumulatedMS float64
	fps           float64
}

var onceMetrics sync.Once
var metrics *metricsData

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metrics = &metricsData{}
	})
	return nil
}

// MetricsUpdate folds one frame's elapsed time (in seconds) into the rolling
// frame-time average and the per-second FPS counter.
func MetricsUpdate(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0

	metrics.samples[metrics.sampleIndex] = frameMS
	metrics.sampleIndex++
	if metrics.sampleIndex == frameTimeWindow {
		metrics.sampleIndex = 0
		sum := 0.0
		for _, ms := range metrics.samples {
			sum += ms
		}
		metrics.frameTimeMS = sum / float64(frameTimeWindow)
	}

	metrics.accumulatedMS += frameMS
	if metrics.accumulatedMS > 1000 {
		metrics.fps = float64(metrics.frames)
		metrics.accumulatedMS -= 1000
		metrics.frames = 0
	}
	metrics.frames++
}

func MetricsFPS() float64 {
	return metrics.fps
}

// MetricsFrameTime reports the average frame time in milliseconds over the
// most recently completed window.
func MetricsFrameTime() float64 {
	return metrics.frameTimeMS
}

func MetricsFrame() (float64, float64) {
	return metrics.fps, metrics.frameTimeMS
}
