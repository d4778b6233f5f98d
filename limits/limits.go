// Package limits provides centralized frame size limits shared by the C
// boundary and the processing steps.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxVideoWidth and MaxVideoHeight bound frame dimensions (the VP8 limit).
	MaxVideoWidth  = 16383
	MaxVideoHeight = 16383

	// MaxFramePayload is the largest frame payload accepted from a caller:
	// one 3840x2160 RGBA frame.
	MaxFramePayload = 3840 * 2160 * 4

	// MaxAudioPacket is the largest Opus packet accepted from the capture
	// path (the libopus recommended max_data_bytes).
	MaxAudioPacket = 4000
)

var (
	// ErrFrameTooLarge indicates a payload exceeds its limit.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrInvalidDimensions indicates a zero or oversized frame dimension.
	ErrInvalidDimensions = errors.New("invalid frame dimensions")
)

// ValidateFramePayload checks a payload against maxSize. Empty payloads are
// valid frames and pass.
func ValidateFramePayload(size, maxSize int) error {
	if size > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrFrameTooLarge, size, maxSize)
	}
	return nil
}

// ValidateVideoPayload checks a payload against MaxFramePayload.
func ValidateVideoPayload(size int) error {
	return ValidateFramePayload(size, MaxFramePayload)
}

// ValidateAudioPacket checks a payload against MaxAudioPacket.
func ValidateAudioPacket(size int) error {
	return ValidateFramePayload(size, MaxAudioPacket)
}

// ValidateDimensions checks width and height are non-zero and within range.
func ValidateDimensions(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if width > MaxVideoWidth || height > MaxVideoHeight {
		return fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrInvalidDimensions, width, height, MaxVideoWidth, MaxVideoHeight)
	}
	return nil
}
