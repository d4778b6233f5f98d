package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/streamcore/pipeline"
)

var _ pipeline.Observer = (*PipelineMetrics)(nil)

func TestPipelineMetricsRecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg, "streamcore", "video")

	m.FrameSubmitted()
	m.FrameSubmitted()
	m.FrameProcessed(2*time.Millisecond, nil)
	m.FrameProcessed(time.Millisecond, errors.New("bad frame"))
	m.FramesDropped(3)
	m.QueueDepth(5)
	m.WorkerRunning(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesSubmitted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesFailed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FramesDroppedCounter))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.QueueDepthGauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerRunningGauge))

	m.WorkerRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WorkerRunningGauge))

	count, err := testutil.GatherAndCount(reg, "streamcore_frame_processing_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPipelineMetricsSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPipelineMetrics(reg, "streamcore", "video")
	NewPipelineMetrics(reg, "streamcore", "audio")

	count, err := testutil.GatherAndCount(reg, "streamcore_frames_submitted_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPipelineMetricsWiredIntoPipeline(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg, "streamcore", "test")

	opts := pipeline.NewOptions()
	opts.PollInterval = 10 * time.Millisecond
	opts.Observer = m
	opts.Processor = pipeline.ProcessorFunc(func(frame pipeline.FrameRecord, _ pipeline.Config) error {
		if frame.Timestamp() == 2 {
			return errors.New("reject")
		}
		return nil
	})

	p, err := pipeline.New(pipeline.Config{Width: 640, Height: 480, FrameRate: 30}, opts)
	require.NoError(t, err)
	require.NoError(t, p.Start())
	for i := int64(0); i < 4; i++ {
		require.NoError(t, p.Submit(pipeline.NewFrameRecord([]byte{1, 2, 3}, i)))
	}
	require.NoError(t, p.Stop())

	assert.Equal(t, 4.0, testutil.ToFloat64(m.FramesSubmitted))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.FramesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesFailed))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WorkerRunningGauge))
}

func TestPipelineMetricsCountsDroppedFramesOnAbort(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg, "streamcore", "abort")

	release := make(chan struct{})
	opts := pipeline.NewOptions()
	opts.PollInterval = 10 * time.Millisecond
	opts.Observer = m
	opts.FailurePolicy = pipeline.FailurePolicyAbort
	opts.Processor = pipeline.ProcessorFunc(func(pipeline.FrameRecord, pipeline.Config) error {
		<-release
		return errors.New("encoder gone")
	})

	p, err := pipeline.New(pipeline.Config{Width: 640, Height: 480}, opts)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Start())

	for i := int64(0); i < 4; i++ {
		require.NoError(t, p.Submit(pipeline.NewFrameRecord([]byte{1}, i)))
	}
	close(release)

	err = p.Stop()
	assert.ErrorIs(t, err, pipeline.ErrProcessingAborted)
	assert.Equal(t, float64(p.DroppedCount()), testutil.ToFloat64(m.FramesDroppedCounter))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.FramesProcessed)+testutil.ToFloat64(m.FramesDroppedCounter))

	count, err := testutil.GatherAndCount(reg, "streamcore_frames_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
