// Package envelope implements the per-voice ADSR-family envelope generator.
package envelope

// Stage is the current segment of an envelope.
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageHold
	StageDecay
	StageSustain
	StageRelease
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAttack:
		return "attack"
	case StageHold:
		return "hold"
	case StageDecay:
		return "decay"
	case StageSustain:
		return "sustain"
	case StageRelease:
		return "release"
	}
	return "unknown"
}

// Kind selects the envelope shape.
type Kind int

const (
	KindADSR  Kind = iota // attack, decay, sustain, release
	KindAHDSR             // ADSR with a hold segment after the attack peak
	KindAD                // attack then decay to zero; no sustain, ignores note-off
)

// Settings holds stage durations in milliseconds.
type Settings struct {
	Kind      Kind
	AttackMs  float64
	HoldMs    float64
	DecayMs   float64
	Sustain   float64 // 0..1
	ReleaseMs float64
	// VelocitySens scales Level by note velocity: 0 ignores velocity, 1 is fully velocity driven.
	VelocitySens float64
}

// DefaultAmp is the amplitude envelope used when a pad configures none:
// instant attack, full sustain, short release.
func DefaultAmp() Settings {
	return Settings{Kind: KindADSR, Sustain: 1, ReleaseMs: 10}
}

// Envelope is a per-sample envelope state machine. Process is its only
// mutator of stage and value and must be called once per output frame.
type Envelope struct {
	settings    Settings
	sampleRate  float64
	stage       Stage
	value       float64
	attackRate  float64
	decayRate   float64
	releaseRate float64
	holdFrames  int
	holdLeft    int
	velScale    float64
}

// New returns a configured, idle envelope.
func New(s Settings, sampleRate float64, velocity float64) *Envelope {
	e := &Envelope{}
	e.Configure(s, sampleRate, velocity)
	return e
}

// stageRate converts a stage duration to a per-sample increment. Durations
// of zero or less are instant.
func stageRate(ms, sampleRate float64) float64 {
	if ms <= 0 || sampleRate <= 0 {
		return 1
	}
	return 1 / (ms / 1000 * sampleRate)
}

// Configure computes per-sample rates for the given settings. It does not
// change the current stage.
func (e *Envelope) Configure(s Settings, sampleRate float64, velocity float64) {
	s.Sustain = clamp(s.Sustain, 0, 1)
	s.VelocitySens = clamp(s.VelocitySens, 0, 1)
	e.settings = s
	e.sampleRate = sampleRate
	e.attackRate = stageRate(s.AttackMs, sampleRate)
	e.decayRate = stageRate(s.DecayMs, sampleRate)
	e.holdFrames = 0
	if s.Kind == KindAHDSR && s.HoldMs > 0 && sampleRate > 0 {
		e.holdFrames = int(s.HoldMs/1000*sampleRate + 0.5)
	}
	e.setVelocity(velocity)
}

func (e *Envelope) setVelocity(velocity float64) {
	velocity = clamp(velocity, 0, 1)
	e.velScale = 1 - e.settings.VelocitySens*(1-velocity)
}

// TriggerOn restarts the envelope from zero.
func (e *Envelope) TriggerOn(velocity float64) {
	e.setVelocity(velocity)
	e.value = 0
	if e.settings.AttackMs <= 0 {
		e.value = 1
		e.afterPeak()
		return
	}
	e.stage = StageAttack
}

func (e *Envelope) afterPeak() {
	if e.holdFrames > 0 {
		e.holdLeft = e.holdFrames
		e.stage = StageHold
		return
	}
	e.stage = StageDecay
}

// TriggerOff moves to the release stage. The release rate is derived from
// the current value so the fade always lasts ReleaseMs. AD envelopes run to
// completion and ignore it.
func (e *Envelope) TriggerOff() {
	if e.stage == StageIdle || e.stage == StageRelease || e.settings.Kind == KindAD {
		return
	}
	if e.settings.ReleaseMs <= 0 || e.sampleRate <= 0 || e.value <= 0 {
		e.value = 0
		e.stage = StageIdle
		return
	}
	e.releaseRate = e.value / (e.settings.ReleaseMs / 1000 * e.sampleRate)
	e.stage = StageRelease
}

// Process advances one sample and returns the value in [0, 1].
func (e *Envelope) Process() float64 {
	switch e.stage {
	case StageIdle:
		e.value = 0
	case StageAttack:
		e.value += e.attackRate
		if e.value >= 1 {
			e.value = 1
			e.afterPeak()
		}
	case StageHold:
		e.holdLeft--
		if e.holdLeft <= 0 {
			e.stage = StageDecay
		}
	case StageDecay:
		target := e.decayTarget()
		e.value -= e.decayRate * (1 - target)
		if e.value <= target {
			e.value = target
			if target <= 0 {
				e.value = 0
				e.stage = StageIdle
			} else {
				e.stage = StageSustain
			}
		}
	case StageSustain:
		e.value = e.settings.Sustain
	case StageRelease:
		e.value -= e.releaseRate
		if e.value <= 0 {
			e.value = 0
			e.stage = StageIdle
		}
	}
	return e.value
}

func (e *Envelope) decayTarget() float64 {
	if e.settings.Kind == KindAD {
		return 0
	}
	return e.settings.Sustain
}

// Value returns the last computed value without advancing.
func (e *Envelope) Value() float64 { return e.value }

// Level returns the current value scaled by velocity sensitivity.
func (e *Envelope) Level() float64 { return e.value * e.velScale }

// Stage returns the current stage.
func (e *Envelope) Stage() Stage { return e.stage }

// Active is false only when idle.
func (e *Envelope) Active() bool { return e.stage != StageIdle }

// Reset forces the envelope idle at zero.
func (e *Envelope) Reset() {
	e.stage = StageIdle
	e.value = 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
