package pipeline

import "sync/atomic"

// lifecycleState is shared between the controller and the worker.
// Every field is accessed atomically and can be read without locking.
type lifecycleState struct {
	running   atomic.Bool
	processed atomic.Uint64

	// Out-of-band counters.
	submitted atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}
