// Package audio provides the audio pieces of the capture path.
//
// # Mixer
//
// Mixer sums a fixed number of channels with per-channel gain and clips the
// result to [-1, 1]:
//
//	mixer := audio.NewMixer(2)
//	mixer.SetChannelGain(1, 0.5)
//	mixer.Mix([][]float64{mic, system}, out)
//
// MixInt16 does the same for 16-bit PCM buffers.
//
// # OpusProcessor
//
// OpusProcessor is a pipeline.Processor that treats each submitted frame as
// one Opus packet. The packet's framing is checked with PacketDuration before
// it is decoded with pion/opus, and the resulting PCM is passed to an
// optional PCMSink:
//
//	opts := pipeline.NewOptions()
//	opts.Processor = audio.NewOpusProcessor(func(f audio.PCMFrame) {
//	    playback.Write(f.Samples)
//	})
//
// Empty, oversized and malformed packets fail the frame without stopping the
// pipeline unless the abort policy is configured.
package audio
