package source

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/opd-ai/streamcore/limits"
)

// SyntheticName is the registry name of the synthetic video source.
const SyntheticName = "synthetic"

// pacer hands out frame numbers no faster than the frame rate.
type pacer struct {
	limiter *rate.Limiter
	next    atomic.Int64
	closed  atomic.Bool
}

func newPacer(framesPerSecond float64) *pacer {
	limit := rate.Inf
	if framesPerSecond > 0 {
		limit = rate.Limit(framesPerSecond)
	}
	return &pacer{limiter: rate.NewLimiter(limit, 1)}
}

// tick waits for the next frame slot and returns its sequence number.
func (p *pacer) tick(ctx context.Context) (int64, error) {
	if p.closed.Load() {
		return 0, ErrSourceClosed
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	if p.closed.Load() {
		return 0, ErrSourceClosed
	}
	return p.next.Add(1) - 1, nil
}

func (p *pacer) close() { p.closed.Store(true) }

// Synthetic stands in for a camera: frames of a fixed size carrying a moving
// gradient, paced at the stream's frame rate.
type Synthetic struct {
	*pacer
	interval  time.Duration
	frameSize int
}

// NewSynthetic opens a synthetic source. The frame size defaults to one I420
// frame of the stream's dimensions. A zero frame rate means unpaced.
func NewSynthetic(params Params) (Source, error) {
	frameSize := params.FrameBytes
	if frameSize == 0 {
		frameSize = int(params.Stream.Width) * int(params.Stream.Height) * 3 / 2
	}
	if frameSize < 0 {
		return nil, fmt.Errorf("negative frame size %d", frameSize)
	}
	if err := limits.ValidateVideoPayload(frameSize); err != nil {
		return nil, err
	}

	var interval time.Duration
	if params.Stream.FrameRate > 0 {
		interval = time.Second / time.Duration(params.Stream.FrameRate)
	}

	return &Synthetic{
		pacer:     newPacer(float64(params.Stream.FrameRate)),
		interval:  interval,
		frameSize: frameSize,
	}, nil
}

// Name returns SyntheticName.
func (s *Synthetic) Name() string { return SyntheticName }

// FrameSize returns the payload size of every frame.
func (s *Synthetic) FrameSize() int { return s.frameSize }

// Interval returns the spacing between frame timestamps.
func (s *Synthetic) Interval() time.Duration { return s.interval }

// ReadFrame writes the next frame into buf.
func (s *Synthetic) ReadFrame(ctx context.Context, buf []byte) (int, int64, error) {
	if len(buf) < s.frameSize {
		return 0, 0, fmt.Errorf("%w: %d < %d", ErrShortBuffer, len(buf), s.frameSize)
	}
	n, err := s.tick(ctx)
	if err != nil {
		return 0, 0, err
	}
	fillGradient(buf[:s.frameSize], n)
	return s.frameSize, n * s.interval.Milliseconds(), nil
}

// Close stops the source. Pending and later reads fail with ErrSourceClosed.
func (s *Synthetic) Close() error {
	s.close()
	return nil
}

// fillGradient writes a moving gradient so consecutive frames differ.
func fillGradient(buf []byte, frame int64) {
	for i := range buf {
		buf[i] = byte(int64(i) + frame)
	}
}
