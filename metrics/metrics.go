// Package metrics provides Prometheus instrumentation for frame pipelines.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds the Prometheus collectors for one pipeline and
// implements pipeline.Observer.
type PipelineMetrics struct {
	FramesSubmitted      prometheus.Counter
	FramesProcessed      prometheus.Counter
	FramesFailed         prometheus.Counter
	FramesDroppedCounter prometheus.Counter
	QueueDepthGauge      prometheus.Gauge
	WorkerRunningGauge   prometheus.Gauge
	ProcessingDuration   prometheus.Histogram
}

// NewPipelineMetrics creates and registers the collectors with reg.
// namespace prefixes every metric name; pipeline is attached as a constant
// label so several pipelines can share a registry.
func NewPipelineMetrics(reg prometheus.Registerer, namespace, pipeline string) *PipelineMetrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"pipeline": pipeline}

	return &PipelineMetrics{
		FramesSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "frames_submitted_total",
			Help:        "Frames accepted into the pipeline queue",
			ConstLabels: labels,
		}),
		FramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "frames_processed_total",
			Help:        "Frames handed to the processing step",
			ConstLabels: labels,
		}),
		FramesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "frames_failed_total",
			Help:        "Frames the processing step reported as failed",
			ConstLabels: labels,
		}),
		FramesDroppedCounter: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "frames_dropped_total",
			Help:        "Accepted frames discarded after the worker aborted",
			ConstLabels: labels,
		}),
		QueueDepthGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_depth",
			Help:        "Frames waiting for the worker",
			ConstLabels: labels,
		}),
		WorkerRunningGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "worker_running",
			Help:        "1 while the pipeline worker is alive",
			ConstLabels: labels,
		}),
		ProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "frame_processing_duration_seconds",
			Help:        "Time spent in the processing step per frame",
			Buckets:     []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			ConstLabels: labels,
		}),
	}
}

// FrameSubmitted records an accepted frame.
func (m *PipelineMetrics) FrameSubmitted() {
	m.FramesSubmitted.Inc()
}

// FrameProcessed records one pass through the processing step.
func (m *PipelineMetrics) FrameProcessed(elapsed time.Duration, err error) {
	m.FramesProcessed.Inc()
	m.ProcessingDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.FramesFailed.Inc()
	}
}

// FramesDropped records frames discarded without processing.
func (m *PipelineMetrics) FramesDropped(n int) {
	m.FramesDroppedCounter.Add(float64(n))
}

// QueueDepth records the current queue depth.
func (m *PipelineMetrics) QueueDepth(depth int) {
	m.QueueDepthGauge.Set(float64(depth))
}

// WorkerRunning records whether the worker is alive.
func (m *PipelineMetrics) WorkerRunning(running bool) {
	if running {
		m.WorkerRunningGauge.Set(1)
		return
	}
	m.WorkerRunningGauge.Set(0)
}
