package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FrameRecord is one timestamped frame of opaque binary data.
//
// A FrameRecord is immutable once constructed. Ownership moves from the
// submitter to the queue and then to the worker; nothing in the pipeline
// modifies the payload.
type FrameRecord struct {
	data      []byte
	timestamp int64
	buf       *frameBuffer
}

// NewFrameRecord creates a frame from a payload and a timestamp.
// The payload is copied so the caller may reuse its buffer immediately.
// A nil or empty payload is a valid zero-length frame. Processors may keep
// the payload of such frames; see NewPooledFrameRecord for the recycling
// variant.
func NewFrameRecord(data []byte, timestamp int64) FrameRecord {
	payload := make([]byte, len(data))
	copy(payload, data)
	return FrameRecord{data: payload, timestamp: timestamp}
}

// Data returns the frame payload. Callers must not modify it.
func (f FrameRecord) Data() []byte { return f.data }

// Len returns the payload size in bytes.
func (f FrameRecord) Len() int { return len(f.data) }

// Timestamp returns the frame timestamp.
func (f FrameRecord) Timestamp() int64 { return f.timestamp }

// Config describes the stream the pipeline processes.
//
// The pipeline never inspects these values; they are handed unchanged to the
// Processor with every frame.
type Config struct {
	Width     uint32
	Height    uint32
	FrameRate uint32
	Bitrate   uint32
}

// String returns a compact representation used in log fields.
func (c Config) String() string {
	return fmt.Sprintf("%dx%d@%dfps/%dbps", c.Width, c.Height, c.FrameRate, c.Bitrate)
}

// Processor is the synchronous processing step invoked by the worker for
// every frame. It is only ever called from the worker goroutine.
//
// A returned error is a per-frame failure; it never propagates to Submit.
type Processor interface {
	Process(frame FrameRecord, cfg Config) error
}

// ProcessorFunc adapts an ordinary function to the Processor interface.
type ProcessorFunc func(frame FrameRecord, cfg Config) error

// Process calls f(frame, cfg).
func (f ProcessorFunc) Process(frame FrameRecord, cfg Config) error {
	return f(frame, cfg)
}

// NopProcessor accepts every frame without doing any work.
type NopProcessor struct{}

// Process implements Processor.
func (NopProcessor) Process(FrameRecord, Config) error { return nil }

// FailurePolicy selects what the worker does when the Processor fails.
type FailurePolicy uint8

const (
	// FailurePolicyContinue logs the failure and keeps draining the queue.
	FailurePolicyContinue FailurePolicy = iota
	// FailurePolicyAbort tears down the queue and terminates the worker.
	// Frames still buffered are counted as dropped, and Stop returns
	// ErrProcessingAborted. The pipeline stays in the running state until
	// that Stop: Submit fails with ErrChannelClosed and Start with
	// ErrAlreadyRunning.
	FailurePolicyAbort
)

// String returns the policy name.
func (p FailurePolicy) String() string {
	switch p {
	case FailurePolicyContinue:
		return "continue"
	case FailurePolicyAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy converts a policy name back to a FailurePolicy.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "continue":
		return FailurePolicyContinue, nil
	case "abort":
		return FailurePolicyAbort, nil
	default:
		return FailurePolicyContinue, fmt.Errorf("%w: unknown failure policy %q", ErrInvalidOptions, name)
	}
}

// Diagnostic is an out-of-band report emitted by the worker.
type Diagnostic struct {
	PipelineID string
	Level      logrus.Level
	Message    string
	// FrameTimestamp is the timestamp of the frame involved, if any.
	FrameTimestamp int64
	Err            error
}

// DiagnosticHandler receives diagnostics from a pipeline. It is supplied once
// through Options and called from the worker goroutine, so it must not block.
type DiagnosticHandler func(d Diagnostic)

// Observer receives instrumentation events from a pipeline.
// The metrics package provides a Prometheus-backed implementation.
type Observer interface {
	FrameSubmitted()
	FrameProcessed(elapsed time.Duration, err error)
	FramesDropped(n int)
	QueueDepth(depth int)
	WorkerRunning(running bool)
}

type nopObserver struct{}

func (nopObserver) FrameSubmitted()                     {}
func (nopObserver) FrameProcessed(time.Duration, error) {}
func (nopObserver) FramesDropped(int)                   {}
func (nopObserver) QueueDepth(int)                      {}
func (nopObserver) WorkerRunning(bool)                  {}

// Stats is a point-in-time snapshot of a pipeline's counters.
type Stats struct {
	ID         string
	Running    bool
	Submitted  uint64
	Processed  uint64
	Failed     uint64
	Dropped    uint64
	QueueDepth int
	QueueCap   int
}
