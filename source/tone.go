package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/opd-ai/streamcore/limits"
)

const (
	// ToneName is the registry name of the sine-wave audio source.
	ToneName = "tone"

	// DefaultSampleRate is used when Params.SampleRate is zero.
	DefaultSampleRate = 48000

	toneFrequency = 440.0
	toneAmplitude = 0.25 * math.MaxInt16

	// Audio frames are 20 ms, the usual Opus frame duration.
	toneFramesPerSecond = 50
)

// Tone is an audio source producing a continuous 440 Hz sine wave as mono
// signed 16-bit little-endian PCM in 20 ms frames.
type Tone struct {
	*pacer
	sampleRate int
	samples    int
}

// NewTone opens a tone source. Params.Stream is ignored. A non-zero
// Params.FrameBytes must be even and sets the samples per frame; the pacing
// follows from it.
func NewTone(params Params) (Source, error) {
	sampleRate := params.SampleRate
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	if sampleRate < 0 {
		return nil, fmt.Errorf("negative sample rate %d", sampleRate)
	}

	samples := sampleRate / toneFramesPerSecond
	if params.FrameBytes != 0 {
		if params.FrameBytes < 0 || params.FrameBytes%2 != 0 {
			return nil, fmt.Errorf("tone frame size must be a positive even byte count, got %d", params.FrameBytes)
		}
		samples = params.FrameBytes / 2
	}
	if samples == 0 {
		return nil, fmt.Errorf("sample rate %d too low for a %d Hz frame rate", sampleRate, toneFramesPerSecond)
	}
	if err := limits.ValidateVideoPayload(samples * 2); err != nil {
		return nil, err
	}

	return &Tone{
		pacer:      newPacer(float64(sampleRate) / float64(samples)),
		sampleRate: sampleRate,
		samples:    samples,
	}, nil
}

// Name returns ToneName.
func (t *Tone) Name() string { return ToneName }

// FrameSize returns the bytes per frame.
func (t *Tone) FrameSize() int { return t.samples * 2 }

// SampleRate returns the PCM sample rate in Hz.
func (t *Tone) SampleRate() int { return t.sampleRate }

// ReadFrame writes the next frame into buf. The phase carries across frames,
// so concatenated frames form one unbroken wave.
func (t *Tone) ReadFrame(ctx context.Context, buf []byte) (int, int64, error) {
	size := t.FrameSize()
	if len(buf) < size {
		return 0, 0, fmt.Errorf("%w: %d < %d", ErrShortBuffer, len(buf), size)
	}
	n, err := t.tick(ctx)
	if err != nil {
		return 0, 0, err
	}

	first := n * int64(t.samples)
	for i := 0; i < t.samples; i++ {
		phase := 2 * math.Pi * toneFrequency * float64(first+int64(i)) / float64(t.sampleRate)
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(toneAmplitude*math.Sin(phase))))
	}
	return size, first * 1000 / int64(t.sampleRate), nil
}

// Close stops the source.
func (t *Tone) Close() error {
	t.close()
	return nil
}
