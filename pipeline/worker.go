package pipeline

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// worker is the single consumer of a pipeline's queue.
//
// It runs in the Draining state until the queue is sealed and empty, then
// terminates. done is closed on exit; err is written before that and is safe
// to read after <-done.
type worker struct {
	pipelineID   string
	cfg          Config
	queue        *Queue
	consumer     *Consumer
	state        *lifecycleState
	processor    Processor
	policy       FailurePolicy
	pollInterval time.Duration
	observer     Observer
	diagnostics  DiagnosticHandler

	done chan struct{}
	err  error
}

func newWorker(p *Pipeline, queue *Queue, consumer *Consumer) *worker {
	return &worker{
		pipelineID:   p.id,
		cfg:          p.cfg,
		queue:        queue,
		consumer:     consumer,
		state:        &p.state,
		processor:    p.opts.Processor,
		policy:       p.opts.FailurePolicy,
		pollInterval: p.opts.PollInterval,
		observer:     p.opts.Observer,
		diagnostics:  p.opts.Diagnostics,
		done:         make(chan struct{}),
	}
}

func (w *worker) run() {
	defer close(w.done)
	defer w.observer.WorkerRunning(false)
	defer func() {
		if r := recover(); r != nil {
			// Release blocked submitters; whatever is still buffered will
			// never be processed.
			w.queue.Close()
			dropped := w.consumer.Discard()
			w.recordDropped(dropped)

			w.err = fmt.Errorf("%w: panic: %v", ErrJoinFailed, r)
			logrus.WithFields(logrus.Fields{
				"function":    "worker.run",
				"pipeline_id": w.pipelineID,
				"panic":       r,
				"dropped":     dropped,
				"stack":       string(debug.Stack()),
			}).Error("Pipeline worker panicked")
			w.report(logrus.ErrorLevel, "worker panicked", 0, w.err)
		}
	}()

	w.observer.WorkerRunning(true)

	logrus.WithFields(logrus.Fields{
		"function":      "worker.run",
		"pipeline_id":   w.pipelineID,
		"poll_interval": w.pollInterval,
		"policy":        w.policy.String(),
	}).Debug("Pipeline worker started")

	w.err = w.loop()

	logrus.WithFields(logrus.Fields{
		"function":    "worker.run",
		"pipeline_id": w.pipelineID,
		"processed":   w.state.processed.Load(),
		"failed":      w.state.failed.Load(),
	}).Debug("Pipeline worker terminated")
}

func (w *worker) loop() error {
	for {
		frame, status := w.consumer.Receive(w.pollInterval)

		switch status {
		case ReceiveFrame:
			w.observer.QueueDepth(w.queue.Len())
			err := w.handle(frame)
			if err != nil && w.policy == FailurePolicyAbort {
				return w.abort(frame, err)
			}

		case ReceiveTimeout:
			// Nothing arrived. If the controller stopped us without sealing
			// the queue, seal it ourselves and keep going until drained.
			if !w.state.running.Load() {
				w.queue.Close()
			}

		case ReceiveClosed:
			return nil
		}
	}
}

// handle runs the processing step for one frame and updates the counters.
// A pooled frame's buffer goes back to its pool when handle returns.
func (w *worker) handle(frame FrameRecord) error {
	defer frame.Release()

	start := time.Now()
	err := w.processor.Process(frame, w.cfg)
	elapsed := time.Since(start)

	w.state.processed.Add(1)
	w.observer.FrameProcessed(elapsed, err)

	if err != nil {
		w.state.failed.Add(1)
		logrus.WithFields(logrus.Fields{
			"function":    "worker.handle",
			"pipeline_id": w.pipelineID,
			"timestamp":   frame.Timestamp(),
			"size":        frame.Len(),
			"error":       err.Error(),
		}).Warn("Frame processing failed")
		w.report(logrus.WarnLevel, "frame processing failed", frame.Timestamp(), err)
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "worker.handle",
		"pipeline_id": w.pipelineID,
		"timestamp":   frame.Timestamp(),
		"size":        frame.Len(),
		"elapsed":     elapsed,
	}).Debug("Frame processed")

	return nil
}

func (w *worker) abort(frame FrameRecord, cause error) error {
	w.queue.Close()
	dropped := w.consumer.Discard()
	w.recordDropped(dropped)

	logrus.WithFields(logrus.Fields{
		"function":    "worker.abort",
		"pipeline_id": w.pipelineID,
		"timestamp":   frame.Timestamp(),
		"dropped":     dropped,
		"error":       cause.Error(),
	}).Error("Aborting pipeline after processing failure")
	w.report(logrus.ErrorLevel, "pipeline aborted", frame.Timestamp(), cause)

	return fmt.Errorf("%w: frame %d: %w", ErrProcessingAborted, frame.Timestamp(), cause)
}

func (w *worker) recordDropped(n int) {
	if n == 0 {
		return
	}
	w.state.dropped.Add(uint64(n))
	w.observer.FramesDropped(n)
}

func (w *worker) report(level logrus.Level, msg string, ts int64, err error) {
	if w.diagnostics == nil {
		return
	}
	w.diagnostics(Diagnostic{
		PipelineID:     w.pipelineID,
		Level:          level,
		Message:        msg,
		FrameTimestamp: ts,
		Err:            err,
	})
}
