package video

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/streamcore/limits"
	"github.com/opd-ai/streamcore/pipeline"
)

var _ pipeline.Processor = (*PassthroughEncoder)(nil)

func TestPassthroughEncoderProcess(t *testing.T) {
	var got []EncodedFrame
	encoder := NewPassthroughEncoder(func(f EncodedFrame) { got = append(got, f) }, 0)
	cfg := pipeline.Config{Width: 640, Height: 480, FrameRate: 30, Bitrate: 512000}

	tests := []struct {
		name    string
		payload []byte
	}{
		{"small_payload", []byte{1, 2, 3, 4}},
		{"empty_payload", nil},
		{"vga_frame", make([]byte, 640*480*3/2)},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := pipeline.NewFrameRecord(tt.payload, int64(i)*33)
			require.NoError(t, encoder.Process(frame, cfg))

			out := got[len(got)-1]
			assert.Equal(t, frame.Timestamp(), out.Timestamp)
			assert.Len(t, out.Data, HeaderSize+len(tt.payload))
			assert.True(t, out.Verify())

			header, payload, err := ParseEncodedFrame(out.Data)
			require.NoError(t, err)
			assert.Equal(t, Header{Width: 640, Height: 480, Timestamp: frame.Timestamp(), Bitrate: 512000}, header)
			assert.Equal(t, len(tt.payload), len(payload))
		})
	}

	assert.Equal(t, uint64(3), encoder.EncodedFrames())
	assert.Equal(t, uint64(3*HeaderSize+4+640*480*3/2), encoder.EncodedBytes())
}

func TestPassthroughEncoderRejectsBadInput(t *testing.T) {
	encoder := NewPassthroughEncoder(nil, 0)

	err := encoder.Process(pipeline.NewFrameRecord([]byte{1}, 0), pipeline.Config{Width: 0, Height: 480})
	assert.True(t, errors.Is(err, limits.ErrInvalidDimensions))

	big := pipeline.NewFrameRecord(make([]byte, limits.MaxFramePayload+1), 0)
	err = encoder.Process(big, pipeline.Config{Width: 640, Height: 480})
	assert.True(t, errors.Is(err, limits.ErrFrameTooLarge))

	assert.Zero(t, encoder.EncodedFrames())
}

func TestEncodedFrameVerifyDetectsCorruption(t *testing.T) {
	var out EncodedFrame
	encoder := NewPassthroughEncoder(func(f EncodedFrame) { out = f }, 0)
	require.NoError(t, encoder.Process(pipeline.NewFrameRecord([]byte("payload"), 7), pipeline.Config{Width: 2, Height: 2}))

	require.True(t, out.Verify())
	out.Data[HeaderSize] ^= 0xff
	assert.False(t, out.Verify())
}

func TestParseEncodedFrameShort(t *testing.T) {
	_, _, err := ParseEncodedFrame(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrShortFrame)
}

// TestPassthroughEncoderInPipeline drives the encoder from a real pipeline,
// the way the capture path uses it.
func TestPassthroughEncoderInPipeline(t *testing.T) {
	var timestamps []int64
	encoder := NewPassthroughEncoder(func(f EncodedFrame) {
		timestamps = append(timestamps, f.Timestamp)
	}, time.Millisecond)

	opts := pipeline.NewOptions()
	opts.PollInterval = 10 * time.Millisecond
	opts.Processor = encoder

	p, err := pipeline.New(pipeline.Config{Width: 1920, Height: 1080, FrameRate: 30, Bitrate: 5000000}, opts)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Start())
	for i := int64(0); i < 10; i++ {
		require.NoError(t, p.Submit(pipeline.NewFrameRecord(make([]byte, 1024), i)))
	}
	require.NoError(t, p.Stop())

	assert.Equal(t, uint64(10), p.ProcessedCount())
	assert.Equal(t, uint64(10), encoder.EncodedFrames())
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, timestamps)
}
