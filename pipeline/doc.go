// Package pipeline implements a bounded, back-pressured frame processing
// pipeline.
//
// Capture code submits timestamped frames from any number of goroutines; a
// single worker goroutine takes them off a bounded queue and runs them, one at
// a time and in order, through a synchronous Processor such as an encoder.
//
// # Architecture
//
//   - Queue: bounded FIFO (64 frames by default) with many producers and
//     exactly one consumer handle
//   - lifecycle state: atomic running flag and counters shared by the
//     controller and the worker
//   - worker: drains the queue with a bounded poll so it notices a stop
//     promptly, processes each frame and updates the counters
//   - Pipeline: the controller exposing New, Start, Submit, Stop,
//     ProcessedCount and Close
//   - BufferPool: optional recycling of frame payloads; frames built with
//     NewPooledFrameRecord go back to the pool after processing
//
// # Lifecycle
//
// A pipeline is created stopped. Start spawns the worker; Stop closes the
// queue, waits for the worker to drain every accepted frame and joins it.
// Start and Stop can alternate any number of times; each restart gets a
// fresh queue because the previous worker consumed the old one. Close stops
// a running pipeline before releasing it.
//
//	p, _ := pipeline.New(cfg, opts)
//	p.Start()
//	p.Submit(pipeline.NewFrameRecord(data, ts))
//	p.Stop()
//	fmt.Println(p.ProcessedCount())
//
// # Back-pressure
//
// Submit blocks while the queue is full; frames are never shed while the
// pipeline runs. SubmitContext bounds the wait with a context.
//
// # Failures
//
// Processor errors are per-frame: they are logged, counted in FailedCount,
// and passed to the optional DiagnosticHandler. With FailurePolicyContinue
// (the default) the worker moves on; with FailurePolicyAbort it tears down
// the queue and Stop reports ErrProcessingAborted. A panicking Processor is
// reported by Stop as ErrJoinFailed.
package pipeline
