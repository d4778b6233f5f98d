package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// BufferPool recycles frame payload buffers between producers and the
// worker. Frames built with NewPooledFrameRecord borrow a buffer that the
// worker hands back once the Processor returns.
//
// Buffers much larger than the block size are not kept, so one oversized
// frame does not pin memory.
type BufferPool struct {
	pool      sync.Pool
	blockSize int

	gets   atomic.Uint64
	allocs atomic.Uint64
	puts   atomic.Uint64
}

// NewBufferPool creates a pool whose buffers start with blockSize capacity.
// A non-positive blockSize lets buffers grow to whatever frames need.
func NewBufferPool(blockSize int) *BufferPool {
	if blockSize < 0 {
		blockSize = 0
	}
	bp := &BufferPool{blockSize: blockSize}
	bp.pool.New = func() interface{} {
		bp.allocs.Add(1)
		buf := make([]byte, 0, blockSize)
		return &buf
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewBufferPool",
		"block_size": blockSize,
	}).Debug("Creating frame buffer pool")

	return bp
}

// BlockSize returns the capacity new buffers are allocated with.
func (bp *BufferPool) BlockSize() int { return bp.blockSize }

// Gets returns how many buffers have been handed out.
func (bp *BufferPool) Gets() uint64 { return bp.gets.Load() }

// Allocs returns how many buffers had to be allocated, either because the
// pool was empty or because a pooled buffer was too small.
func (bp *BufferPool) Allocs() uint64 { return bp.allocs.Load() }

// Puts returns how many buffers have been returned.
func (bp *BufferPool) Puts() uint64 { return bp.puts.Load() }

func (bp *BufferPool) get(size int) *[]byte {
	bp.gets.Add(1)
	buf := bp.pool.Get().(*[]byte)
	if cap(*buf) < size {
		bp.allocs.Add(1)
		*buf = make([]byte, size, max(size, bp.blockSize))
	}
	*buf = (*buf)[:size]
	return buf
}

func (bp *BufferPool) put(buf *[]byte) {
	bp.puts.Add(1)
	if bp.blockSize > 0 && cap(*buf) > 4*bp.blockSize {
		return
	}
	*buf = (*buf)[:0]
	bp.pool.Put(buf)
}

// frameBuffer ties a pooled buffer to one FrameRecord. A fresh frameBuffer is
// made per frame so a stale copy of a released record can never return a
// buffer that has since been reused.
type frameBuffer struct {
	pool     *BufferPool
	buf      *[]byte
	released atomic.Bool
}

// NewPooledFrameRecord is NewFrameRecord with the payload copied into a
// buffer borrowed from pool. A nil pool falls back to NewFrameRecord.
//
// Once the pipeline accepts the frame, the worker returns the buffer after
// the Processor has run, so processors must not keep Data past Process. A
// frame that Submit rejects still belongs to the caller, who may Release it.
func NewPooledFrameRecord(pool *BufferPool, data []byte, timestamp int64) FrameRecord {
	if pool == nil {
		return NewFrameRecord(data, timestamp)
	}
	buf := pool.get(len(data))
	copy(*buf, data)
	return FrameRecord{
		data:      *buf,
		timestamp: timestamp,
		buf:       &frameBuffer{pool: pool, buf: buf},
	}
}

// Release returns a pooled frame's buffer. It is a no-op for frames from
// NewFrameRecord and for every call after the first.
func (f FrameRecord) Release() {
	if f.buf == nil || !f.buf.released.CompareAndSwap(false, true) {
		return
	}
	f.buf.pool.put(f.buf.buf)
}

// Pooled reports whether the frame borrows its payload from a BufferPool.
func (f FrameRecord) Pooled() bool { return f.buf != nil }
