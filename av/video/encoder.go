package video

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"github.com/opd-ai/streamcore/limits"
	"github.com/opd-ai/streamcore/pipeline"
)

// HeaderSize is the size of the header PassthroughEncoder prepends to every
// payload.
//
// Layout (little-endian):
//
//	[0:2]   width
//	[2:4]   height
//	[4:12]  timestamp
//	[12:16] bitrate
const HeaderSize = 16

// ErrShortFrame indicates encoded data too small to hold a header.
var ErrShortFrame = errors.New("encoded frame shorter than header")

// Header is the decoded form of the per-frame header.
type Header struct {
	Width     uint16
	Height    uint16
	Timestamp int64
	Bitrate   uint32
}

// EncodedFrame is the output of PassthroughEncoder for one input frame.
type EncodedFrame struct {
	Timestamp int64
	Data      []byte
	// Digest is the BLAKE2b-256 sum of Data, letting downstream consumers
	// detect corruption and duplicates.
	Digest [blake2b.Size256]byte
}

// Sink receives encoded frames. It is called on the pipeline worker.
type Sink func(frame EncodedFrame)

// PassthroughEncoder is the video processing step used until a real codec
// is wired in. It wraps the raw payload in a small header, fingerprints it
// and forwards it to a sink.
//
// It implements pipeline.Processor and is meant to be driven by a single
// pipeline worker; the counters may be read from any goroutine.
type PassthroughEncoder struct {
	sink       Sink
	encodeCost time.Duration

	frames atomic.Uint64
	bytes  atomic.Uint64
}

// NewPassthroughEncoder creates an encoder. sink may be nil. encodeCost, if
// positive, is slept per frame to approximate real encoder latency.
func NewPassthroughEncoder(sink Sink, encodeCost time.Duration) *PassthroughEncoder {
	logrus.WithFields(logrus.Fields{
		"function":    "NewPassthroughEncoder",
		"has_sink":    sink != nil,
		"encode_cost": encodeCost,
	}).Info("Creating passthrough video encoder")

	return &PassthroughEncoder{
		sink:       sink,
		encodeCost: encodeCost,
	}
}

// Process implements pipeline.Processor.
func (e *PassthroughEncoder) Process(frame pipeline.FrameRecord, cfg pipeline.Config) error {
	if err := limits.ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return fmt.Errorf("encode frame %d: %w", frame.Timestamp(), err)
	}
	if err := limits.ValidateVideoPayload(frame.Len()); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "PassthroughEncoder.Process",
			"timestamp": frame.Timestamp(),
			"size":      frame.Len(),
			"error":     err.Error(),
		}).Error("Frame payload validation failed")
		return fmt.Errorf("encode frame %d: %w", frame.Timestamp(), err)
	}

	if e.encodeCost > 0 {
		time.Sleep(e.encodeCost)
	}

	data := make([]byte, HeaderSize+frame.Len())
	putHeader(data, Header{
		Width:     uint16(cfg.Width),
		Height:    uint16(cfg.Height),
		Timestamp: frame.Timestamp(),
		Bitrate:   cfg.Bitrate,
	})
	copy(data[HeaderSize:], frame.Data())

	encoded := EncodedFrame{
		Timestamp: frame.Timestamp(),
		Data:      data,
		Digest:    blake2b.Sum256(data),
	}

	e.frames.Add(1)
	e.bytes.Add(uint64(len(data)))

	logrus.WithFields(logrus.Fields{
		"function":    "PassthroughEncoder.Process",
		"timestamp":   frame.Timestamp(),
		"input_size":  frame.Len(),
		"output_size": len(data),
		"config":      cfg.String(),
	}).Debug("Video frame encoded")

	if e.sink != nil {
		e.sink(encoded)
	}
	return nil
}

// EncodedFrames returns the number of frames encoded successfully.
func (e *PassthroughEncoder) EncodedFrames() uint64 { return e.frames.Load() }

// EncodedBytes returns the total size of all encoded output.
func (e *PassthroughEncoder) EncodedBytes() uint64 { return e.bytes.Load() }

func putHeader(dst []byte, h Header) {
	binary.LittleEndian.PutUint16(dst[0:2], h.Width)
	binary.LittleEndian.PutUint16(dst[2:4], h.Height)
	binary.LittleEndian.PutUint64(dst[4:12], uint64(h.Timestamp))
	binary.LittleEndian.PutUint32(dst[12:16], h.Bitrate)
}

// ParseEncodedFrame splits encoded data into its header and payload.
// The payload aliases data.
func ParseEncodedFrame(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	h := Header{
		Width:     binary.LittleEndian.Uint16(data[0:2]),
		Height:    binary.LittleEndian.Uint16(data[2:4]),
		Timestamp: int64(binary.LittleEndian.Uint64(data[4:12])),
		Bitrate:   binary.LittleEndian.Uint32(data[12:16]),
	}
	return h, data[HeaderSize:], nil
}

// Verify reports whether the frame's digest matches its data.
func (f EncodedFrame) Verify() bool {
	return blake2b.Sum256(f.Data) == f.Digest
}
