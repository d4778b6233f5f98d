package pipeline

import "errors"

// Sentinel errors for pipeline operations.
// These errors enable reliable error classification using errors.Is().

// Lifecycle errors.
var (
	// ErrNotRunning indicates a frame was submitted before Start or after Stop.
	ErrNotRunning = errors.New("pipeline is not running")

	// ErrAlreadyRunning indicates Start was called on a running pipeline.
	ErrAlreadyRunning = errors.New("pipeline is already running")

	// ErrPipelineClosed indicates the pipeline has been destroyed with Close.
	ErrPipelineClosed = errors.New("pipeline is closed")

	// ErrInvalidOptions indicates the pipeline options cannot be used.
	ErrInvalidOptions = errors.New("invalid pipeline options")
)

// Queue errors.
var (
	// ErrChannelClosed indicates the queue was torn down while a frame was
	// being submitted. The frame was not accepted.
	ErrChannelClosed = errors.New("frame queue closed")

	// ErrConsumerTaken indicates the queue's single consumer handle has
	// already been handed to a worker.
	ErrConsumerTaken = errors.New("frame queue consumer already taken")
)

// Worker termination errors, reported by Stop.
var (
	// ErrJoinFailed indicates the worker terminated abnormally.
	ErrJoinFailed = errors.New("worker terminated abnormally")

	// ErrProcessingAborted indicates the worker stopped itself after a
	// processing failure under FailurePolicyAbort.
	ErrProcessingAborted = errors.New("frame processing aborted")
)
