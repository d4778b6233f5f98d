package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Queue is a bounded FIFO of frames with many producers and one consumer.
//
// Push blocks while the queue is full. Close releases blocked producers with
// ErrChannelClosed and, once every in-flight Push has returned, seals the
// queue: the consumer then drains what was accepted and observes the end of
// input. The underlying channel is never closed, so a Push racing Close can
// not panic.
type Queue struct {
	frames chan FrameRecord

	// mu is held shared by Push and exclusively while sealing, so sealing
	// waits for in-flight pushes to land or give up.
	mu     sync.RWMutex
	closed bool

	closing   chan struct{}
	sealed    chan struct{}
	closeOnce sync.Once

	taken atomic.Bool
}

// NewQueue allocates a queue holding up to capacity frames.
func NewQueue(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: queue capacity %d must be positive", ErrInvalidOptions, capacity)
	}
	return &Queue{
		frames:  make(chan FrameRecord, capacity),
		closing: make(chan struct{}),
		sealed:  make(chan struct{}),
	}, nil
}

// Push enqueues a frame, blocking while the queue is full.
//
// It returns nil once the queue owns the frame, ErrChannelClosed if the queue
// was closed first, or ctx.Err() if the context ends before space frees up.
func (q *Queue) Push(ctx context.Context, frame FrameRecord) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrChannelClosed
	}

	select {
	case q.frames <- frame:
		return nil
	case <-q.closing:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears down the producer side. It is safe to call more than once and
// from any goroutine; every call returns after the queue is sealed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closing)

		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.sealed)
	})
}

// IsClosed reports whether Close has completed.
func (q *Queue) IsClosed() bool {
	select {
	case <-q.sealed:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered frames.
func (q *Queue) Len() int { return len(q.frames) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.frames) }

// Consumer hands out the queue's single consumer handle.
// Every call after the first returns ErrConsumerTaken.
func (q *Queue) Consumer() (*Consumer, error) {
	if !q.taken.CompareAndSwap(false, true) {
		return nil, ErrConsumerTaken
	}
	return &Consumer{queue: q}, nil
}

// ReceiveStatus describes the outcome of Consumer.Receive.
type ReceiveStatus uint8

const (
	// ReceiveFrame means a frame was returned.
	ReceiveFrame ReceiveStatus = iota
	// ReceiveTimeout means no frame arrived within the timeout.
	ReceiveTimeout
	// ReceiveClosed means the queue is sealed and fully drained.
	ReceiveClosed
)

// String returns the status name.
func (s ReceiveStatus) String() string {
	switch s {
	case ReceiveFrame:
		return "frame"
	case ReceiveTimeout:
		return "timeout"
	case ReceiveClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Consumer is the receiving end of a Queue. There is exactly one per queue.
type Consumer struct {
	queue *Queue
}

// Receive waits up to timeout for the next frame.
func (c *Consumer) Receive(timeout time.Duration) (FrameRecord, ReceiveStatus) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-c.queue.frames:
		return frame, ReceiveFrame
	case <-c.queue.sealed:
		// Sealed: nothing new can arrive, so hand out what is buffered.
		select {
		case frame := <-c.queue.frames:
			return frame, ReceiveFrame
		default:
			return FrameRecord{}, ReceiveClosed
		}
	case <-timer.C:
		return FrameRecord{}, ReceiveTimeout
	}
}

// Discard empties the queue without processing and returns the number of
// frames removed. Pooled frames are released. Only meaningful after Close.
func (c *Consumer) Discard() int {
	n := 0
	for {
		select {
		case frame := <-c.queue.frames:
			frame.Release()
			n++
		default:
			return n
		}
	}
}
