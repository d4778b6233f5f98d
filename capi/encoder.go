package main

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/streamcore/av/audio"
	"github.com/opd-ai/streamcore/av/video"
	"github.com/opd-ai/streamcore/limits"
	"github.com/opd-ai/streamcore/pipeline"
)

var (
	errNegativeConfig = errors.New("negative encoder configuration value")
	errNullFrame      = errors.New("null frame data with non-zero size")
)

// encoderInstance is what an encoder handle refers to. The pipeline is owned
// exclusively by the handle and closed on destroy. Submitted frames are
// copied into buffers from pool, sized for one I420 frame.
type encoderInstance struct {
	pipeline *pipeline.Pipeline
	encoder  *video.PassthroughEncoder
	pool     *pipeline.BufferPool
}

var (
	encoders = newRegistry[*encoderInstance]()
	mixers   = newRegistry[*audio.Mixer]()
)

// configFromInts converts C ints, which may be negative, to a pipeline
// configuration.
func configFromInts(width, height, fps, bitrate int) (pipeline.Config, error) {
	if width < 0 || height < 0 || fps < 0 || bitrate < 0 {
		return pipeline.Config{}, fmt.Errorf("%w: width=%d height=%d fps=%d bitrate=%d",
			errNegativeConfig, width, height, fps, bitrate)
	}
	return pipeline.Config{
		Width:     uint32(width),
		Height:    uint32(height),
		FrameRate: uint32(fps),
		Bitrate:   uint32(bitrate),
	}, nil
}

func createEncoder(width, height, fps, bitrate int, diagnostics pipeline.DiagnosticHandler) (uintptr, error) {
	cfg, err := configFromInts(width, height, fps, bitrate)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "createEncoder",
			"error":    err.Error(),
		}).Error("Rejected encoder configuration")
		return invalidHandle, err
	}

	encoder := video.NewPassthroughEncoder(nil, 0)
	opts := pipeline.NewOptions()
	opts.Processor = encoder
	opts.Diagnostics = diagnostics

	p, err := pipeline.New(cfg, opts)
	if err != nil {
		return invalidHandle, fmt.Errorf("create encoder pipeline: %w", err)
	}

	var blockSize int
	if limits.ValidateDimensions(cfg.Width, cfg.Height) == nil {
		blockSize = min(width*height*3/2, limits.MaxFramePayload)
	}
	h := encoders.add(&encoderInstance{
		pipeline: p,
		encoder:  encoder,
		pool:     pipeline.NewBufferPool(blockSize),
	})

	logrus.WithFields(logrus.Fields{
		"function":    "createEncoder",
		"handle":      h,
		"pipeline_id": p.ID(),
	}).Info("Encoder handle created")

	return h, nil
}

func destroyEncoder(h uintptr) bool {
	inst, ok := encoders.remove(h)
	if !ok {
		return false
	}
	if err := inst.pipeline.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "destroyEncoder",
			"handle":   h,
			"error":    err.Error(),
		}).Warn("Encoder pipeline reported an error on close")
	}
	return true
}

func startEncoder(h uintptr) bool {
	inst, ok := encoders.get(h)
	if !ok {
		return false
	}
	return inst.pipeline.Start() == nil
}

func stopEncoder(h uintptr) bool {
	inst, ok := encoders.get(h)
	if !ok {
		return false
	}
	return inst.pipeline.Stop() == nil
}

// submitFrame checks the size before data is copied into a pooled buffer, so
// an oversized buffer is never read. The caller keeps ownership of data.
func submitFrame(h uintptr, data []byte, timestamp int64) bool {
	inst, ok := encoders.get(h)
	if !ok {
		return false
	}
	if err := limits.ValidateVideoPayload(len(data)); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "submitFrame",
			"handle":    h,
			"timestamp": timestamp,
			"error":     err.Error(),
		}).Warn("Rejected frame at the C boundary")
		return false
	}
	frame := pipeline.NewPooledFrameRecord(inst.pool, data, timestamp)
	if err := inst.pipeline.Submit(frame); err != nil {
		frame.Release()
		return false
	}
	return true
}

// cFrameBytes views size bytes of C memory at ptr without copying. The size
// is checked against the frame limit before the view is built, so sizes that
// do not fit in an int never reach unsafe.Slice.
func cFrameBytes(ptr unsafe.Pointer, size uint64) ([]byte, error) {
	if size > uint64(limits.MaxFramePayload) {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", limits.ErrFrameTooLarge, size, limits.MaxFramePayload)
	}
	if size == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errNullFrame
	}
	return unsafe.Slice((*byte)(ptr), int(size)), nil
}

func encodedFrames(h uintptr) uint64 {
	inst, ok := encoders.get(h)
	if !ok {
		return 0
	}
	return inst.pipeline.ProcessedCount()
}

// maxMixSamples bounds one audio_mixer_mix call; 10 s of 48 kHz audio.
const maxMixSamples = 480000

func createMixer(channels int) uintptr {
	if channels <= 0 {
		return invalidHandle
	}
	return mixers.add(audio.NewMixer(channels))
}

func destroyMixer(h uintptr) bool {
	_, ok := mixers.remove(h)
	return ok
}

// mixFloat32 mixes C float buffers. A nil input contributes silence.
func mixFloat32(h uintptr, inputs [][]float32, out []float32) bool {
	mixer, ok := mixers.get(h)
	if !ok {
		return false
	}

	converted := make([][]float64, len(inputs))
	for ch, in := range inputs {
		converted[ch] = make([]float64, len(in))
		for i, s := range in {
			converted[ch][i] = float64(s)
		}
	}

	mixed := make([]float64, len(out))
	mixer.Mix(converted, mixed)
	for i, v := range mixed {
		out[i] = float32(v)
	}
	return true
}

func setChannelVolume(h uintptr, channel int, volume float64) bool {
	mixer, ok := mixers.get(h)
	if !ok {
		return false
	}
	return mixer.SetChannelGain(channel, volume) == nil
}

// callbackLevel maps logrus levels onto the DEBUG/INFO/WARNING/ERROR
// numbering C callers use.
func callbackLevel(level logrus.Level) int {
	switch {
	case level >= logrus.DebugLevel:
		return 0
	case level == logrus.InfoLevel:
		return 1
	case level == logrus.WarnLevel:
		return 2
	default:
		return 3
	}
}

func formatDiagnostic(d pipeline.Diagnostic) string {
	if d.Err != nil {
		return fmt.Sprintf("pipeline %s: %s (frame %d): %v", d.PipelineID, d.Message, d.FrameTimestamp, d.Err)
	}
	return fmt.Sprintf("pipeline %s: %s (frame %d)", d.PipelineID, d.Message, d.FrameTimestamp)
}
