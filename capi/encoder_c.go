package main

/*
#include <stdint.h>
#include <stdbool.h>
#include <stddef.h>
#include <stdlib.h>

typedef uintptr_t encoder_handle;
typedef uintptr_t audio_mixer_handle;

typedef struct {
    int width;
    int height;
    int fps;
    int bitrate;
} CEncoderConfig;

// level: 0 debug, 1 info, 2 warning, 3 error
typedef void (*encoder_log_cb)(int level, const char *message);

static inline void invoke_log_cb(encoder_log_cb cb, int level, const char *message) {
    cb(level, message);
}
*/
import "C"

import (
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/streamcore/pipeline"
)

func main() {} // Required for c-shared build mode

func logCallbackHandler(cb C.encoder_log_cb) pipeline.DiagnosticHandler {
	if cb == nil {
		return nil
	}
	return func(d pipeline.Diagnostic) {
		msg := C.CString(formatDiagnostic(d))
		defer C.free(unsafe.Pointer(msg))
		C.invoke_log_cb(cb, C.int(callbackLevel(d.Level)), msg)
	}
}

func newEncoder(config C.CEncoderConfig, cb C.encoder_log_cb) C.encoder_handle {
	h, err := createEncoder(int(config.width), int(config.height), int(config.fps), int(config.bitrate),
		logCallbackHandler(cb))
	if err != nil {
		return C.encoder_handle(invalidHandle)
	}
	return C.encoder_handle(h)
}

//export encoder_create
func encoder_create(config C.CEncoderConfig) C.encoder_handle {
	return newEncoder(config, nil)
}

// encoder_create_with_log attaches a diagnostics callback for the lifetime of
// the encoder. The callback may run on the encoder's worker thread.
//
//export encoder_create_with_log
func encoder_create_with_log(config C.CEncoderConfig, cb C.encoder_log_cb) C.encoder_handle {
	return newEncoder(config, cb)
}

//export encoder_destroy
func encoder_destroy(encoder C.encoder_handle) {
	destroyEncoder(uintptr(encoder))
}

//export encoder_start
func encoder_start(encoder C.encoder_handle) C.bool {
	return C.bool(startEncoder(uintptr(encoder)))
}

//export encoder_stop
func encoder_stop(encoder C.encoder_handle) C.bool {
	return C.bool(stopEncoder(uintptr(encoder)))
}

//export encoder_submit_frame
func encoder_submit_frame(encoder C.encoder_handle, frameData unsafe.Pointer, frameSize C.size_t, timestamp C.int64_t) C.bool {
	data, err := cFrameBytes(frameData, uint64(frameSize))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "encoder_submit_frame",
			"size":     uint64(frameSize),
			"error":    err.Error(),
		}).Warn("Rejected frame at the C boundary")
		return C.bool(false)
	}
	return C.bool(submitFrame(uintptr(encoder), data, int64(timestamp)))
}

//export encoder_get_encoded_frames
func encoder_get_encoded_frames(encoder C.encoder_handle) C.uint64_t {
	return C.uint64_t(encodedFrames(uintptr(encoder)))
}

//export audio_mixer_create
func audio_mixer_create(channels C.int) C.audio_mixer_handle {
	return C.audio_mixer_handle(createMixer(int(channels)))
}

//export audio_mixer_destroy
func audio_mixer_destroy(mixer C.audio_mixer_handle) {
	destroyMixer(uintptr(mixer))
}

// audio_mixer_mix reads one buffer of samples per mixer channel from inputs;
// NULL entries are silent.
//
//export audio_mixer_mix
func audio_mixer_mix(mixer C.audio_mixer_handle, inputs **C.float, output *C.float, samples C.size_t) C.bool {
	if inputs == nil || output == nil {
		return C.bool(false)
	}
	m, ok := mixers.get(uintptr(mixer))
	if !ok {
		return C.bool(false)
	}

	if uint64(samples) > maxMixSamples {
		return C.bool(false)
	}
	n := int(samples)
	channels := m.Channels()
	ptrs := unsafe.Slice(inputs, channels)
	in := make([][]float32, channels)
	for ch, p := range ptrs {
		if p != nil && n > 0 {
			in[ch] = unsafe.Slice((*float32)(unsafe.Pointer(p)), n)
		}
	}

	var out []float32
	if n > 0 {
		out = unsafe.Slice((*float32)(unsafe.Pointer(output)), n)
	}
	return C.bool(mixFloat32(uintptr(mixer), in, out))
}

//export audio_mixer_set_channel_volume
func audio_mixer_set_channel_volume(mixer C.audio_mixer_handle, channel C.int, volume C.float) {
	setChannelVolume(uintptr(mixer), int(channel), float64(volume))
}
