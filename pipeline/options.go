package pipeline

import (
	"fmt"
	"time"
)

const (
	// DefaultQueueCapacity is the number of frames buffered between
	// submitters and the worker.
	DefaultQueueCapacity = 64

	// DefaultPollInterval bounds how long the worker waits for a frame
	// before re-checking whether the pipeline is still running.
	DefaultPollInterval = 100 * time.Millisecond
)

// Options contains configuration options for creating a Pipeline.
type Options struct {
	QueueCapacity int
	PollInterval  time.Duration
	FailurePolicy FailurePolicy

	// Processor is the per-frame processing step. Nil means NopProcessor.
	Processor Processor
	// Diagnostics optionally receives per-frame failure reports.
	Diagnostics DiagnosticHandler
	// Observer optionally receives instrumentation events.
	Observer Observer
}

// NewOptions returns Options populated with defaults.
func NewOptions() *Options {
	return &Options{
		QueueCapacity: DefaultQueueCapacity,
		PollInterval:  DefaultPollInterval,
		FailurePolicy: FailurePolicyContinue,
		Processor:     NopProcessor{},
	}
}

func (o *Options) validate() error {
	if o.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue capacity %d must be positive", ErrInvalidOptions, o.QueueCapacity)
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval %v must be positive", ErrInvalidOptions, o.PollInterval)
	}
	if o.FailurePolicy != FailurePolicyContinue && o.FailurePolicy != FailurePolicyAbort {
		return fmt.Errorf("%w: unknown failure policy %d", ErrInvalidOptions, o.FailurePolicy)
	}
	return nil
}

// withDefaults returns a copy with nil collaborators replaced by no-ops.
func (o Options) withDefaults() Options {
	if o.Processor == nil {
		o.Processor = NopProcessor{}
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	return o
}
