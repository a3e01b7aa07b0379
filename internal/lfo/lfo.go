package lfo

import "math"

// Waveform selects the LFO shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveTriangle
	WaveSquare
	WaveSawUp
	WaveSawDown
	WaveRandom
	// WaveSmoothRandom currently behaves exactly like WaveRandom (stepped).
	WaveSmoothRandom
)

// Target is the voice parameter an LFO modulates.
type Target int

const (
	TargetPitch  Target = iota // depth in semitones
	TargetFilter               // depth in octaves of cutoff
	TargetVolume               // depth as a gain fraction
	TargetPan                  // depth in pan units
)

// Settings configures one LFO.
type Settings struct {
	Waveform Waveform
	Target   Target
	RateHz   float64
	Depth    float64
	Synced   bool
	Division Division
	FreeRun  bool // follow the engine clock instead of restarting at note-on
}

// phaseEpsilon absorbs accumulated rounding so N increments of 1/N wrap.
const phaseEpsilon = 1e-9

// LFO is a per-voice low-frequency oscillator producing per-sample modulation.
type LFO struct {
	settings  Settings
	increment float64 // phase advance per sample
	phase     float64 // current phase [0, 1)
	held      float64 // sample-and-hold value for random waveforms
	seed      uint32
	rng       uint32
	cycles    uint64
}

// New returns a configured LFO.
func New(s Settings, sampleRate, bpm float64) *LFO {
	l := &LFO{seed: 0x9E3779B9}
	l.Configure(s, sampleRate, bpm)
	l.Retrigger()
	return l
}

// Configure computes the phase increment from either the free rate or the
// tempo-synced division. bpm is only used when Synced is set.
func (l *LFO) Configure(s Settings, sampleRate, bpm float64) {
	l.settings = s
	l.increment = 0
	if sampleRate <= 0 {
		return
	}
	if s.Synced {
		cycle := s.Division.CycleSeconds(bpm)
		if cycle > 0 {
			l.increment = 1 / (cycle * sampleRate)
		}
		return
	}
	if s.RateHz > 0 {
		l.increment = s.RateHz / sampleRate
	}
}

// Seed sets the random seed used by Retrigger. Zero is ignored.
func (l *LFO) Seed(seed uint32) {
	if seed != 0 {
		l.seed = seed
	}
}

// Process returns the current value in [-depth, +depth] and advances one sample.
func (l *LFO) Process() float64 {
	if l.increment == 0 {
		return 0
	}
	v := l.shape() * l.settings.Depth

	l.phase += l.increment
	if l.phase >= 1-phaseEpsilon {
		l.phase -= 1
		if l.phase < 0 {
			l.phase = 0
		}
		l.cycles++
		if l.isRandom() {
			l.held = l.nextRandom()
		}
	}
	return v
}

// Value returns the current value without advancing.
func (l *LFO) Value() float64 {
	if l.increment == 0 {
		return 0
	}
	return l.shape() * l.settings.Depth
}

func (l *LFO) shape() float64 {
	p := l.phase
	switch l.settings.Waveform {
	case WaveSine:
		return math.Sin(2 * math.Pi * p)
	case WaveSquare:
		if p < 0.5 {
			return 1
		}
		return -1
	case WaveSawUp:
		return 2*p - 1
	case WaveSawDown:
		return 1 - 2*p
	case WaveRandom, WaveSmoothRandom:
		return l.held
	default: // WaveTriangle
		if p < 0.5 {
			return 4*p - 1
		}
		return 3 - 4*p
	}
}

func (l *LFO) isRandom() bool {
	return l.settings.Waveform == WaveRandom || l.settings.Waveform == WaveSmoothRandom
}

// nextRandom is an xorshift32 step mapped to [-1, 1).
func (l *LFO) nextRandom() float64 {
	x := l.rng
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	l.rng = x
	return float64(x)/float64(1<<31) - 1
}

// Retrigger zeros the phase and reseeds the random state.
func (l *LFO) Retrigger() {
	l.phase = 0
	l.cycles = 0
	l.rng = l.seed
	l.held = 0
	if l.isRandom() {
		l.held = l.nextRandom()
	}
}

// Skip advances the phase by n samples without producing output or
// counting cycles.
func (l *LFO) Skip(n int64) {
	if l.increment == 0 || n <= 0 {
		return
	}
	p := l.phase + float64(n)*l.increment
	l.phase = p - math.Floor(p)
}

// Settings returns the configured settings.
func (l *LFO) Settings() Settings { return l.settings }

// Phase returns the current phase in [0, 1).
func (l *LFO) Phase() float64 { return l.phase }

// Cycles returns how many times the phase has wrapped since the last retrigger.
func (l *LFO) Cycles() uint64 { return l.cycles }

// Increment returns the per-sample phase advance.
func (l *LFO) Increment() float64 { return l.increment }

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.settings.Depth != 0 && l.increment != 0
}
