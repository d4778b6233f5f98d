package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Pipeline accepts frames from any number of goroutines and processes them,
// in submission order, on one background worker.
//
// Example usage:
//
//	p, err := pipeline.New(pipeline.Config{Width: 1280, Height: 720, FrameRate: 30}, nil)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	if err := p.Start(); err != nil {
//	    return err
//	}
//	err = p.Submit(pipeline.NewFrameRecord(buf, ts))
type Pipeline struct {
	id   string
	cfg  Config
	opts Options

	// mu serializes Start, Stop and Close. Submit never takes it.
	mu     sync.Mutex
	worker *worker
	queue  atomic.Pointer[Queue]
	closed atomic.Bool

	state lifecycleState
}

// New creates a stopped pipeline for cfg. A nil opts uses NewOptions().
func New(cfg Config, opts *Options) (*Pipeline, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"error":    err.Error(),
		}).Error("Pipeline options validation failed")
		return nil, err
	}

	queue, err := NewQueue(opts.QueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("allocate frame queue: %w", err)
	}

	p := &Pipeline{
		id:   uuid.NewString(),
		cfg:  cfg,
		opts: opts.withDefaults(),
	}
	p.queue.Store(queue)

	logrus.WithFields(logrus.Fields{
		"function":       "New",
		"pipeline_id":    p.id,
		"config":         cfg.String(),
		"queue_capacity": opts.QueueCapacity,
		"poll_interval":  opts.PollInterval,
		"failure_policy": opts.FailurePolicy.String(),
	}).Info("Pipeline created")

	return p, nil
}

// ID returns the identifier assigned at creation.
func (p *Pipeline) ID() string { return p.id }

// Config returns the stream configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Start spawns the worker. It returns once the worker goroutine has been
// scheduled, not once anything has been processed.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrPipelineClosed
	}
	if p.state.running.Load() {
		logrus.WithFields(logrus.Fields{
			"function":    "Pipeline.Start",
			"pipeline_id": p.id,
		}).Warn("Pipeline is already running")
		return ErrAlreadyRunning
	}

	queue, consumer, err := p.takeConsumer()
	if err != nil {
		return err
	}

	w := newWorker(p, queue, consumer)
	p.worker = w
	p.state.running.Store(true)
	go w.run()

	logrus.WithFields(logrus.Fields{
		"function":    "Pipeline.Start",
		"pipeline_id": p.id,
		"config":      p.cfg.String(),
	}).Info("Pipeline started")

	return nil
}

// takeConsumer returns the current queue's consumer, replacing the queue with
// a fresh one if an earlier run already consumed it.
func (p *Pipeline) takeConsumer() (*Queue, *Consumer, error) {
	queue := p.queue.Load()
	consumer, err := queue.Consumer()
	if err == nil {
		return queue, consumer, nil
	}
	if !errors.Is(err, ErrConsumerTaken) {
		return nil, nil, err
	}

	queue, err = NewQueue(p.opts.QueueCapacity)
	if err != nil {
		return nil, nil, fmt.Errorf("recreate frame queue: %w", err)
	}
	consumer, err = queue.Consumer()
	if err != nil {
		return nil, nil, err
	}
	p.queue.Store(queue)

	logrus.WithFields(logrus.Fields{
		"function":    "Pipeline.takeConsumer",
		"pipeline_id": p.id,
	}).Debug("Recreated frame queue for restart")

	return queue, consumer, nil
}

// Stop closes the queue to new frames, lets the worker drain what was
// accepted, and waits for it to exit. Calling Stop on a stopped pipeline is a
// no-op.
//
// If the worker ended abnormally the returned error wraps ErrJoinFailed or
// ErrProcessingAborted; the pipeline is stopped and can be started again in
// every case.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Pipeline) stopLocked() error {
	if !p.state.running.Load() {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Pipeline.Stop",
		"pipeline_id": p.id,
		"queue_depth": p.QueueDepth(),
	}).Info("Stopping pipeline")

	p.state.running.Store(false)
	p.queue.Load().Close()

	w := p.worker
	p.worker = nil
	if w == nil {
		return nil
	}
	<-w.done

	if w.err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Pipeline.Stop",
			"pipeline_id": p.id,
			"error":       w.err.Error(),
		}).Error("Pipeline worker ended abnormally")
		return w.err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Pipeline.Stop",
		"pipeline_id": p.id,
		"processed":   p.state.processed.Load(),
		"failed":      p.state.failed.Load(),
	}).Info("Pipeline stopped")

	return nil
}

// Close destroys the pipeline, stopping it first if it is running.
// Only Stop, Close and the read-only queries remain usable afterwards.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return nil
	}
	err := p.stopLocked()
	p.closed.Store(true)

	logrus.WithFields(logrus.Fields{
		"function":    "Pipeline.Close",
		"pipeline_id": p.id,
	}).Debug("Pipeline closed")

	return err
}

// Submit hands a frame to the pipeline, blocking while the queue is full.
//
// It fails with ErrNotRunning when the pipeline is stopped and with
// ErrChannelClosed when a concurrent Stop tore the queue down first. A nil
// return means the frame will be processed.
func (p *Pipeline) Submit(frame FrameRecord) error {
	return p.SubmitContext(context.Background(), frame)
}

// SubmitContext is Submit with a bound on how long to wait for queue space.
// If ctx ends first the frame is not accepted and ctx.Err() is returned.
func (p *Pipeline) SubmitContext(ctx context.Context, frame FrameRecord) error {
	if !p.state.running.Load() {
		return ErrNotRunning
	}

	queue := p.queue.Load()
	if err := queue.Push(ctx, frame); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Pipeline.Submit",
			"pipeline_id": p.id,
			"timestamp":   frame.Timestamp(),
			"error":       err.Error(),
		}).Debug("Frame not accepted")
		return err
	}

	p.state.submitted.Add(1)
	p.opts.Observer.FrameSubmitted()
	p.opts.Observer.QueueDepth(queue.Len())
	return nil
}

// ProcessedCount returns how many frames the worker has processed,
// successfully or not. It is a snapshot; a frame may be mid-processing.
func (p *Pipeline) ProcessedCount() uint64 { return p.state.processed.Load() }

// FailedCount returns how many processed frames failed in the Processor.
func (p *Pipeline) FailedCount() uint64 { return p.state.failed.Load() }

// SubmittedCount returns how many frames Submit has accepted.
func (p *Pipeline) SubmittedCount() uint64 { return p.state.submitted.Load() }

// DroppedCount returns how many accepted frames were discarded because the
// worker aborted or panicked.
func (p *Pipeline) DroppedCount() uint64 { return p.state.dropped.Load() }

// IsRunning reports whether the pipeline is started, i.e. Start succeeded
// and Stop has not been called since. A worker that aborted or panicked
// leaves the pipeline running until Stop collects its error; only then does
// IsRunning turn false and Start become possible again.
func (p *Pipeline) IsRunning() bool { return p.state.running.Load() }

// QueueDepth returns the number of frames waiting for the worker.
func (p *Pipeline) QueueDepth() int { return p.queue.Load().Len() }

// Stats returns a snapshot of every counter.
func (p *Pipeline) Stats() Stats {
	queue := p.queue.Load()
	return Stats{
		ID:         p.id,
		Running:    p.state.running.Load(),
		Submitted:  p.state.submitted.Load(),
		Processed:  p.state.processed.Load(),
		Failed:     p.state.failed.Load(),
		Dropped:    p.state.dropped.Load(),
		QueueDepth: queue.Len(),
		QueueCap:   queue.Cap(),
	}
}
