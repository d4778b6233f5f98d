// Package source provides capture sources that feed frame pipelines, and a
// registry for selecting them by name.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/streamcore/pipeline"
)

var (
	// ErrUnknownSource indicates a name with no registered factory.
	ErrUnknownSource = errors.New("unknown capture source")
	// ErrDuplicateSource indicates a name that is already registered.
	ErrDuplicateSource = errors.New("capture source already registered")
	// ErrSourceClosed is returned by ReadFrame after Close.
	ErrSourceClosed = errors.New("capture source closed")
	// ErrShortBuffer indicates a ReadFrame buffer smaller than FrameSize.
	ErrShortBuffer = errors.New("buffer smaller than frame size")
)

// Source produces frames from a capture device or a generator.
//
// ReadFrame blocks until the next frame is due, writes it into buf and
// returns the payload length and the frame timestamp in milliseconds.
// Implementations are safe for concurrent ReadFrame calls; each frame is
// delivered to exactly one caller.
type Source interface {
	Name() string
	FrameSize() int
	ReadFrame(ctx context.Context, buf []byte) (n int, timestamp int64, err error)
	Close() error
}

// Params configures a source when it is opened.
type Params struct {
	// Stream is the stream the frames are for. Video sources take their
	// dimensions and pacing from it.
	Stream pipeline.Config
	// FrameBytes overrides the payload size; 0 picks the source's natural
	// size.
	FrameBytes int
	// SampleRate applies to audio sources; 0 means 48 kHz.
	SampleRate int
}

// Factory opens a source.
type Factory func(params Params) (Source, error)

// Registry maps source names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default returns a registry holding the built-in sources: "synthetic"
// (moving-gradient I420 video) and "tone" (sine-wave PCM audio).
func Default() *Registry {
	r := NewRegistry()
	r.mustRegister(SyntheticName, NewSynthetic)
	r.mustRegister(ToneName, NewTone)
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("register source %q: name and factory are required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, name)
	}
	r.factories[name] = factory

	logrus.WithFields(logrus.Fields{
		"function": "Registry.Register",
		"source":   name,
	}).Debug("Capture source registered")

	return nil
}

func (r *Registry) mustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Unregister removes a factory. It reports whether name was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.factories[name]
	delete(r.factories, name)
	return ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names lists the registered sources in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the source registered under name.
func (r *Registry) Open(name string, params Params) (Source, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownSource, name, r.Names())
	}

	src, err := factory(params)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Registry.Open",
			"source":   name,
			"error":    err.Error(),
		}).Error("Failed to open capture source")
		return nil, fmt.Errorf("open source %s: %w", name, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Registry.Open",
		"source":     name,
		"frame_size": src.FrameSize(),
	}).Info("Capture source opened")

	return src, nil
}
