package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/streamcore/limits"
	"github.com/opd-ai/streamcore/pipeline"
)

var (
	// ErrEmptyPacket indicates a zero-length Opus packet.
	ErrEmptyPacket = errors.New("empty opus packet")
	// ErrMalformedPacket indicates a packet whose framing violates RFC 6716.
	ErrMalformedPacket = errors.New("malformed opus packet")
)

// MaxPacketDuration is the longest audio duration a single Opus packet may
// carry.
const MaxPacketDuration = 120 * time.Millisecond

// decodeBufferSize holds 120 ms of 48 kHz stereo S16LE.
const decodeBufferSize = 5760 * 2 * 2

// PCMFrame is one decoded packet.
type PCMFrame struct {
	Timestamp  int64
	Samples    []int16
	SampleRate uint32
	Stereo     bool
}

// PCMSink receives decoded audio. It is called on the pipeline worker.
type PCMSink func(frame PCMFrame)

// OpusProcessor decodes each frame it is handed as a single Opus packet.
// It implements pipeline.Processor and must only be driven by one worker.
type OpusProcessor struct {
	decoder *opus.Decoder
	sink    PCMSink
	buf     []byte

	packets atomic.Uint64
	samples atomic.Uint64
}

// NewOpusProcessor creates a processor with its own decoder. sink may be nil.
func NewOpusProcessor(sink PCMSink) *OpusProcessor {
	logrus.WithFields(logrus.Fields{
		"function": "NewOpusProcessor",
		"has_sink": sink != nil,
	}).Info("Creating opus audio processor")

	decoder := opus.NewDecoder()
	return &OpusProcessor{
		decoder: &decoder,
		sink:    sink,
		buf:     make([]byte, decodeBufferSize),
	}
}

// Process implements pipeline.Processor.
func (p *OpusProcessor) Process(frame pipeline.FrameRecord, _ pipeline.Config) error {
	packet := frame.Data()
	if len(packet) == 0 {
		return fmt.Errorf("decode frame %d: %w", frame.Timestamp(), ErrEmptyPacket)
	}
	if err := limits.ValidateAudioPacket(len(packet)); err != nil {
		return fmt.Errorf("decode frame %d: %w", frame.Timestamp(), err)
	}

	duration, err := PacketDuration(packet)
	if err != nil {
		return fmt.Errorf("decode frame %d: %w", frame.Timestamp(), err)
	}

	bandwidth, isStereo, err := p.decoder.Decode(packet, p.buf)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "OpusProcessor.Process",
			"timestamp": frame.Timestamp(),
			"size":      len(packet),
			"error":     err.Error(),
		}).Warn("Opus decode failed")
		return fmt.Errorf("decode frame %d: opus decode failed: %w", frame.Timestamp(), err)
	}

	sampleRate := uint32(bandwidth.SampleRate())
	count := int(duration * time.Duration(sampleRate) / time.Second)
	if isStereo {
		count *= 2
	}
	count = min(count, len(p.buf)/2)

	pcm := make([]int16, count)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(p.buf[i*2:]))
	}

	p.packets.Add(1)
	p.samples.Add(uint64(count))

	logrus.WithFields(logrus.Fields{
		"function":    "OpusProcessor.Process",
		"timestamp":   frame.Timestamp(),
		"bandwidth":   bandwidth.String(),
		"is_stereo":   isStereo,
		"duration":    duration,
		"pcm_samples": count,
	}).Debug("Opus packet decoded")

	if p.sink != nil {
		p.sink(PCMFrame{
			Timestamp:  frame.Timestamp(),
			Samples:    pcm,
			SampleRate: sampleRate,
			Stereo:     isStereo,
		})
	}
	return nil
}

// DecodedPackets returns the number of packets decoded successfully.
func (p *OpusProcessor) DecodedPackets() uint64 { return p.packets.Load() }

// DecodedSamples returns the total number of PCM samples produced.
func (p *OpusProcessor) DecodedSamples() uint64 { return p.samples.Load() }

// PacketDuration reads the TOC byte and frame count of an Opus packet
// (RFC 6716 section 3.1) and returns the audio duration it carries.
func PacketDuration(packet []byte) (time.Duration, error) {
	if len(packet) == 0 {
		return 0, ErrEmptyPacket
	}

	toc := packet[0]
	frameDuration := configFrameDuration(toc >> 3)

	var frames int
	switch toc & 0x03 {
	case 0:
		frames = 1
	case 1:
		// Two frames of equal size.
		if (len(packet)-1)%2 != 0 {
			return 0, fmt.Errorf("%w: odd payload for two equal frames", ErrMalformedPacket)
		}
		frames = 2
	case 2:
		if len(packet) < 2 {
			return 0, fmt.Errorf("%w: missing first frame length", ErrMalformedPacket)
		}
		frames = 2
	case 3:
		if len(packet) < 2 {
			return 0, fmt.Errorf("%w: missing frame count", ErrMalformedPacket)
		}
		frames = int(packet[1] & 0x3f)
		if frames == 0 {
			return 0, fmt.Errorf("%w: zero frame count", ErrMalformedPacket)
		}
	}

	total := frameDuration * time.Duration(frames)
	if total > MaxPacketDuration {
		return 0, fmt.Errorf("%w: %v exceeds %v", ErrMalformedPacket, total, MaxPacketDuration)
	}
	return total, nil
}

// configFrameDuration maps the 5-bit TOC configuration to a frame size.
func configFrameDuration(config byte) time.Duration {
	switch {
	case config < 12: // SILK-only
		return [...]time.Duration{
			10 * time.Millisecond, 20 * time.Millisecond,
			40 * time.Millisecond, 60 * time.Millisecond,
		}[config%4]
	case config < 16: // Hybrid
		return [...]time.Duration{10 * time.Millisecond, 20 * time.Millisecond}[config%2]
	default: // CELT-only
		return [...]time.Duration{
			2500 * time.Microsecond, 5 * time.Millisecond,
			10 * time.Millisecond, 20 * time.Millisecond,
		}[config%4]
	}
}

// BandwidthForSampleRate returns the Opus bandwidth matching a capture sample
// rate. Unsupported rates map to fullband.
func BandwidthForSampleRate(sampleRate uint32) opus.Bandwidth {
	switch sampleRate {
	case 8000:
		return opus.BandwidthNarrowband
	case 12000:
		return opus.BandwidthMediumband
	case 16000:
		return opus.BandwidthWideband
	case 24000:
		return opus.BandwidthSuperwideband
	case 48000:
		return opus.BandwidthFullband
	default:
		logrus.WithFields(logrus.Fields{
			"function":    "BandwidthForSampleRate",
			"sample_rate": sampleRate,
		}).Warn("Unsupported sample rate, using fullband")
		return opus.BandwidthFullband
	}
}
