package drumkit

import (
	"log"
	"os"

	"github.com/cbegin/drumkit-go/internal/audio"
	"github.com/cbegin/drumkit-go/internal/voice"
)

// Backend selects the audio output used by Start.
type Backend = audio.Kind

const (
	BackendEbiten    Backend = audio.Ebiten
	BackendOto       Backend = audio.Oto
	BackendPortAudio Backend = audio.PortAudio
)

type Option func(*engineConfig)

type engineConfig struct {
	logger     *log.Logger
	maxVoices  int
	backend    Backend
	sampleTap  func([]float32)
	masterGain float64
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:     log.New(os.Stderr, "drumkit: ", log.LstdFlags),
		maxVoices:  voice.DefaultMaxVoices,
		backend:    BackendEbiten,
		masterGain: 1,
	}
}

// WithLogger routes control-plane and render diagnostics to l.
func WithLogger(l *log.Logger) Option {
	return func(cfg *engineConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithMaxVoices caps the voice pool. The oldest voice is stolen when a new
// one would exceed the cap. 0 removes the cap.
func WithMaxVoices(n int) Option {
	return func(cfg *engineConfig) {
		if n >= 0 {
			cfg.maxVoices = n
		}
	}
}

func WithBackend(b Backend) Option {
	return func(cfg *engineConfig) {
		cfg.backend = b
	}
}

// WithSampleTap installs a callback invoked with each rendered buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *engineConfig) {
		cfg.sampleTap = tap
	}
}

// WithMasterGain sets the initial master volume. 1.0 is unity.
func WithMasterGain(gain float64) Option {
	return func(cfg *engineConfig) {
		if gain >= 0 {
			cfg.masterGain = gain
		}
	}
}
