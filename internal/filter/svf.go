// Package filter provides the per-voice resonant state-variable filter.
package filter

import "math"

// Mode selects which SVF output is returned.
type Mode int

const (
	LowPass Mode = iota
	HighPass
	BandPass
	Notch
)

const (
	minCutoff = 20.0
	maxQ      = 24.0
)

// SVF is a single-channel zero-delay-feedback state-variable filter.
// Stereo voices own two independent instances.
type SVF struct {
	sampleRate float64
	mode       Mode
	cutoff     float64
	resonance  float64

	g, k       float64
	a1, a2, a3 float64

	ic1eq, ic2eq float64
}

// New returns a low-pass filter fully open at the given sample rate.
func New(sampleRate float64) *SVF {
	s := &SVF{sampleRate: sampleRate}
	s.Configure(LowPass, sampleRate/2, 0)
	return s
}

// Configure recomputes the coefficients. cutoffHz is clamped to
// [20Hz, 0.49*sampleRate]; resonance is 0..1. Filter state is kept so the
// filter can be retuned every block.
func (s *SVF) Configure(mode Mode, cutoffHz, resonance float64) {
	if s.sampleRate <= 0 {
		return
	}
	nyq := s.sampleRate * 0.49
	if cutoffHz < minCutoff {
		cutoffHz = minCutoff
	}
	if cutoffHz > nyq {
		cutoffHz = nyq
	}
	if resonance < 0 {
		resonance = 0
	}
	if resonance > 1 {
		resonance = 1
	}
	s.mode = mode
	s.cutoff = cutoffHz
	s.resonance = resonance

	// Q runs from Butterworth (0.707) at resonance 0 up to maxQ.
	q := 0.7071 * math.Pow(maxQ/0.7071, resonance)
	s.g = math.Tan(math.Pi * cutoffHz / s.sampleRate)
	s.k = 1 / q
	s.a1 = 1 / (1 + s.g*(s.g+s.k))
	s.a2 = s.g * s.a1
	s.a3 = s.g * s.a2
}

// Process filters one sample.
func (s *SVF) Process(in float64) float64 {
	v3 := in - s.ic2eq
	v1 := s.a1*s.ic1eq + s.a2*v3
	v2 := s.ic2eq + s.a2*s.ic1eq + s.a3*v3
	s.ic1eq = 2*v1 - s.ic1eq
	s.ic2eq = 2*v2 - s.ic2eq

	switch s.mode {
	case HighPass:
		return in - s.k*v1 - v2
	case BandPass:
		return v1
	case Notch:
		return in - s.k*v1
	default:
		return v2
	}
}

// Reset clears the integrator state.
func (s *SVF) Reset() {
	s.ic1eq = 0
	s.ic2eq = 0
}

// Cutoff returns the clamped cutoff in Hz.
func (s *SVF) Cutoff() float64 { return s.cutoff }

// Mode returns the configured mode.
func (s *SVF) Mode() Mode { return s.mode }
