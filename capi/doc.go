// Package main exposes the encoder pipeline and audio mixer through a C ABI.
//
// # Build Instructions
//
//	go build -buildmode=c-shared -o libstreamcore.so ./capi/
//
// This generates libstreamcore.so and the matching libstreamcore.h.
//
// # C API Usage
//
//	#include "libstreamcore.h"
//
//	CEncoderConfig config = { .width = 1280, .height = 720, .fps = 30, .bitrate = 2500000 };
//	encoder_handle enc = encoder_create_with_log(config, on_log);
//	if (enc == 0) {
//	    return 1;
//	}
//
//	encoder_start(enc);
//	encoder_submit_frame(enc, frame, frame_size, timestamp);
//	encoder_stop(enc);
//	printf("encoded %llu frames\n", encoder_get_encoded_frames(enc));
//	encoder_destroy(enc);
//
// Handles are opaque integers and 0 is never a valid handle. Every function
// checks its handle first: unknown or destroyed handles make boolean
// functions return false and counters return 0. Destroying a handle twice is
// harmless.
//
// Negative configuration values are rejected by encoder_create. Frames larger
// than limits.MaxFramePayload are refused before any byte is copied.
//
// # Logging
//
// The callback given to encoder_create_with_log belongs to that encoder only
// and cannot be changed. It receives processing failures with a level of 0
// (debug), 1 (info), 2 (warning) or 3 (error) and may be called from the
// encoder's worker thread; the message pointer is only valid for the duration
// of the call.
//
// # Audio Mixer
//
//	audio_mixer_handle mixer = audio_mixer_create(2);
//	audio_mixer_set_channel_volume(mixer, 1, 0.5f);
//	const float *inputs[2] = { mic, system };
//	audio_mixer_mix(mixer, inputs, output, samples);
//	audio_mixer_destroy(mixer);
//
// inputs must hold one pointer per mixer channel; NULL entries are silent.
// The output is clipped to [-1, 1].
package main
