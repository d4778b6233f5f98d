package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// ErrInvalidChannel indicates a channel index outside the mixer's range.
var ErrInvalidChannel = errors.New("invalid mixer channel")

// DefaultGain is the gain every channel starts with.
const DefaultGain = 1.0

// Mixer sums a fixed number of input channels into one output, applying a
// per-channel gain and hard-clipping the result to [-1, 1].
//
// Mixing is stateless apart from the gains; Mix and SetChannelGain may be
// called from different goroutines.
type Mixer struct {
	mu    sync.RWMutex
	gains []float64
}

// NewMixer creates a mixer for the given number of channels, each at
// DefaultGain. A negative count is treated as zero.
func NewMixer(channels int) *Mixer {
	if channels < 0 {
		channels = 0
	}
	gains := make([]float64, channels)
	for i := range gains {
		gains[i] = DefaultGain
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewMixer",
		"channels": channels,
	}).Debug("Creating audio mixer")

	return &Mixer{gains: gains}
}

// Channels returns the configured channel count.
func (m *Mixer) Channels() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.gains)
}

// SetChannelGain sets the gain of one channel. Negative gains are raised to
// zero.
func (m *Mixer) SetChannelGain(channel int, gain float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if channel < 0 || channel >= len(m.gains) {
		return fmt.Errorf("%w: %d (mixer has %d channels)", ErrInvalidChannel, channel, len(m.gains))
	}
	if gain < 0 || math.IsNaN(gain) {
		gain = 0
	}
	m.gains[channel] = gain
	return nil
}

// ChannelGain returns the gain of one channel.
func (m *Mixer) ChannelGain(channel int) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if channel < 0 || channel >= len(m.gains) {
		return 0, false
	}
	return m.gains[channel], true
}

// Mix writes the gain-weighted sum of inputs into out, clipped to [-1, 1].
//
// out determines the length. Inputs beyond the channel count are ignored and
// an input shorter than out contributes nothing past its end.
func (m *Mixer) Mix(inputs [][]float64, out []float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range out {
		out[i] = 0
	}

	for ch, in := range inputs {
		if ch >= len(m.gains) {
			break
		}
		n := min(len(in), len(out))
		if n == 0 {
			continue
		}
		floats.AddScaled(out[:n], m.gains[ch], in[:n])
	}

	for i, v := range out {
		out[i] = clip(v)
	}
}

// MixInt16 mixes 16-bit PCM channels the same way Mix does, treating full
// scale as 1.0.
func (m *Mixer) MixInt16(inputs [][]int16, out []int16) {
	converted := make([][]float64, len(inputs))
	for ch, in := range inputs {
		converted[ch] = make([]float64, len(in))
		for i, s := range in {
			converted[ch][i] = float64(s) / pcmScale
		}
	}

	mixed := make([]float64, len(out))
	m.Mix(converted, mixed)

	for i, v := range mixed {
		out[i] = toPCM(v)
	}
}

const pcmScale = 32768.0

func clip(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}

func toPCM(v float64) int16 {
	s := math.Round(v * pcmScale)
	switch {
	case s > math.MaxInt16:
		return math.MaxInt16
	case s < math.MinInt16:
		return math.MinInt16
	default:
		return int16(s)
	}
}
