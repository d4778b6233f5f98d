// Package video provides the video processing step for frame pipelines.
//
// PassthroughEncoder stands in for a real codec behind the pipeline's
// synchronous Processor call. Each raw frame is wrapped in a 16-byte header
// carrying the stream dimensions, timestamp and bitrate, fingerprinted with
// BLAKE2b-256 and handed to an optional Sink:
//
//	encoder := video.NewPassthroughEncoder(func(f video.EncodedFrame) {
//	    writer.Write(f.Data)
//	}, 0)
//
//	opts := pipeline.NewOptions()
//	opts.Processor = encoder
//	p, err := pipeline.New(pipeline.Config{Width: 1280, Height: 720, FrameRate: 30}, opts)
//
// ParseEncodedFrame recovers the header and payload on the consuming side,
// and EncodedFrame.Verify checks the digest.
//
// Dimensions and payload sizes are checked against the limits package;
// violations are per-frame failures that the pipeline logs and counts.
package video
