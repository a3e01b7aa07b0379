// Package voice renders playing sample instances and owns the pool of
// voices mixed on every audio callback.
package voice

import (
	"math"

	"github.com/pkg/errors"

	"github.com/cbegin/drumkit-go/internal/envelope"
	"github.com/cbegin/drumkit-go/internal/filter"
	"github.com/cbegin/drumkit-go/internal/lfo"
	"github.com/cbegin/drumkit-go/internal/pad"
	"github.com/cbegin/drumkit-go/internal/sample"
)

const (
	minPitchFactor = 0.1
	maxPitchFactor = 4.0
)

// Config describes a voice to construct. Settings is the pad snapshot taken
// at trigger time and may be nil for voices without pad modulation
// (metronome clicks).
type Config struct {
	NoteID     int64
	TrackID    string
	PadID      string
	Sample     *sample.Sample
	Settings   *pad.Settings
	Volume     float64
	Pan        float64
	Tune       float64 // semitones
	Velocity   float64 // 0..1
	Mode       pad.PlaybackMode
	Amp        envelope.Settings
	StartFrame int
	EndFrame   int // 0 means end of sample
	LoopStart  int
	LoopEnd    int // 0 means end of sample
	Offset     int // frames of silence before the voice starts, within its first block
	SampleRate float64
	BPM        float64
	StartTime  int64 // engine frame clock at trigger time
}

// Voice is one playing instance of a sample.
type Voice struct {
	noteID   int64
	trackID  string
	padID    string
	sample   *sample.Sample
	settings *pad.Settings

	position  float64
	endFrame  int
	loopStart int
	loopEnd   int
	looping   bool
	rateRatio float64

	volume float64
	pan    float64
	tune   float64
	mode   pad.PlaybackMode
	delay  int

	active   bool
	released bool
	finished bool

	amp            envelope.Envelope
	filterEnv      *envelope.Envelope
	pitchEnv       *envelope.Envelope
	pitchEnvAmount float64
	lfos           []lfo.LFO

	filterOn  bool
	filterCfg pad.FilterSettings
	filterL   filter.SVF
	filterR   filter.SVF
}

// New builds a voice with fresh envelopes, LFOs and filters and triggers it.
func New(cfg Config) (*Voice, error) {
	if cfg.Sample == nil {
		return nil, errors.New("voice requires a sample")
	}
	if cfg.SampleRate <= 0 {
		return nil, errors.Errorf("invalid stream sample rate %v", cfg.SampleRate)
	}
	s := cfg.Sample
	v := &Voice{
		noteID:    cfg.NoteID,
		trackID:   cfg.TrackID,
		padID:     cfg.PadID,
		sample:    s,
		settings:  cfg.Settings,
		volume:    cfg.Volume,
		pan:       clamp(cfg.Pan, -1, 1),
		tune:      cfg.Tune,
		mode:      cfg.Mode,
		delay:     cfg.Offset,
		rateRatio: float64(s.SampleRate) / cfg.SampleRate,
		active:    true,
	}

	end := s.Frames
	if cfg.EndFrame > 0 && cfg.EndFrame < end {
		end = cfg.EndFrame
	}
	start := cfg.StartFrame
	if start < 0 {
		start = 0
	}
	v.endFrame = end
	v.position = float64(start)
	if start >= end {
		v.active = false
	}

	if cfg.Mode == pad.Loop {
		loopEnd := cfg.LoopEnd
		if loopEnd <= 0 || loopEnd > s.Frames {
			loopEnd = end
		}
		if cfg.LoopStart >= 0 && cfg.LoopStart < loopEnd {
			v.looping = true
			v.loopStart = cfg.LoopStart
			v.loopEnd = loopEnd
		}
	}

	v.amp.Configure(cfg.Amp, cfg.SampleRate, cfg.Velocity)
	v.amp.TriggerOn(cfg.Velocity)

	if ps := cfg.Settings; ps != nil {
		if ps.FilterEnvelopeOn {
			v.filterEnv = envelope.New(ps.FilterEnvelope, cfg.SampleRate, cfg.Velocity)
			v.filterEnv.TriggerOn(cfg.Velocity)
		}
		if ps.PitchEnvelopeOn {
			v.pitchEnv = envelope.New(ps.PitchEnvelope, cfg.SampleRate, cfg.Velocity)
			v.pitchEnv.TriggerOn(cfg.Velocity)
			v.pitchEnvAmount = ps.PitchEnvAmount
		}
		if len(ps.LFOs) > 0 {
			v.lfos = make([]lfo.LFO, len(ps.LFOs))
			for i, ls := range ps.LFOs {
				l := &v.lfos[i]
				l.Seed(uint32(cfg.NoteID)*2654435761 + uint32(i+1))
				l.Configure(ls, cfg.SampleRate, cfg.BPM)
				l.Retrigger()
				if ls.FreeRun {
					l.Skip(cfg.StartTime)
				}
			}
		}
		if ps.Filter.Enabled {
			v.filterOn = true
			v.filterCfg = ps.Filter
			v.filterL = *filter.New(cfg.SampleRate)
			v.filterR = *filter.New(cfg.SampleRate)
		}
	}
	if v.active {
		s.Acquire()
	} else {
		v.finished = true
	}
	return v, nil
}

// PanGains returns constant-power left/right gains for pan in [-1, 1].
func PanGains(pan float64) (float64, float64) {
	if pan <= -1 {
		return 1, 0
	}
	if pan >= 1 {
		return 0, 1
	}
	theta := (pan*0.5 + 0.5) * math.Pi / 2
	return math.Cos(theta), math.Sin(theta)
}

// PitchFactor converts a semitone offset to a playback rate, clamped to [0.1, 4].
func PitchFactor(semitones float64) float64 {
	return clamp(math.Pow(2, semitones/12), minPitchFactor, maxPitchFactor)
}

func (v *Voice) effectiveEnd() int {
	if v.looping {
		return v.loopEnd
	}
	return v.endFrame
}

// read linearly interpolates the sample at pos.
func (v *Voice) read(pos float64, end int) (float64, float64) {
	i0 := int(pos)
	frac := pos - float64(i0)
	l0, r0 := v.sample.Frame(i0)
	if frac == 0 {
		return float64(l0), float64(r0)
	}
	i1 := i0 + 1
	if i1 >= end {
		if v.looping {
			i1 = v.loopStart
		} else {
			i1 = i0
		}
	}
	l1, r1 := v.sample.Frame(i1)
	l := float64(l0) + (float64(l1)-float64(l0))*frac
	r := float64(r0) + (float64(r1)-float64(r0))*frac
	return l, r
}

// Render mixes frames of this voice into out, which is interleaved with
// the given channel count. Modulation of pitch, pan, volume and filter
// cutoff is sampled once per call; the velocity-scaled amp envelope is
// applied per frame.
func (v *Voice) Render(out []float32, frames, channels int) {
	if !v.active || frames <= 0 || channels <= 0 {
		return
	}
	start := 0
	if v.delay > 0 {
		if v.delay >= frames {
			v.delay -= frames
			return
		}
		start = v.delay
		v.delay = 0
	}

	semis := v.tune
	if v.pitchEnv != nil {
		semis += v.pitchEnv.Level() * v.pitchEnvAmount
	}
	var volMod, panMod, filterOct float64
	for i := range v.lfos {
		l := &v.lfos[i]
		switch l.Settings().Target {
		case lfo.TargetPitch:
			semis += l.Value()
		case lfo.TargetVolume:
			volMod += l.Value()
		case lfo.TargetPan:
			panMod += l.Value()
		case lfo.TargetFilter:
			filterOct += l.Value()
		}
	}
	step := PitchFactor(semis) * v.rateRatio
	gainL, gainR := PanGains(clamp(v.pan+panMod, -1, 1))
	volume := v.volume * math.Max(0, 1+volMod)

	if v.filterOn {
		if v.filterEnv != nil {
			filterOct += v.filterEnv.Level() * v.filterCfg.EnvAmount
		}
		cutoff := v.filterCfg.CutoffHz * math.Pow(2, filterOct)
		v.filterL.Configure(v.filterCfg.Mode, cutoff, v.filterCfg.Resonance)
		v.filterR.Configure(v.filterCfg.Mode, cutoff, v.filterCfg.Resonance)
	}

	end := v.effectiveEnd()
	for f := start; f < frames; f++ {
		v.amp.Process()
		amp := v.amp.Level()
		if v.filterEnv != nil {
			v.filterEnv.Process()
		}
		if v.pitchEnv != nil {
			v.pitchEnv.Process()
		}
		for i := range v.lfos {
			v.lfos[i].Process()
		}
		if !v.amp.Active() {
			v.active = false
			break
		}

		l, r := v.read(v.position, end)
		if v.filterOn {
			l = v.filterL.Process(l)
			r = v.filterR.Process(r)
		}
		g := volume * amp
		outL := l * g * gainL
		outR := r * g * gainR
		if channels == 1 {
			out[f] += float32(0.5 * (outL + outR))
		} else {
			idx := f * channels
			out[idx] += float32(outL)
			out[idx+1] += float32(outR)
		}

		v.position += step
		if v.position >= float64(end) {
			if !v.looping {
				v.active = false
				break
			}
			span := float64(v.loopEnd - v.loopStart)
			for v.position >= float64(end) {
				v.position -= span
			}
		}
	}
}

// Release starts the release stage of every envelope. One-shot voices
// ignore it.
func (v *Voice) Release() {
	if v.mode == pad.OneShot || v.released {
		return
	}
	v.released = true
	v.amp.TriggerOff()
	if v.filterEnv != nil {
		v.filterEnv.TriggerOff()
	}
	if v.pitchEnv != nil {
		v.pitchEnv.TriggerOff()
	}
	if !v.amp.Active() {
		v.active = false
	}
}

// Stop deactivates the voice immediately.
func (v *Voice) Stop() { v.active = false }

// finish drops the sample reference once the voice leaves the pool.
func (v *Voice) finish() {
	if v.finished {
		return
	}
	v.finished = true
	v.sample.Release()
}

func (v *Voice) Active() bool             { return v.active }
func (v *Voice) NoteID() int64            { return v.noteID }
func (v *Voice) TrackID() string          { return v.trackID }
func (v *Voice) PadID() string            { return v.padID }
func (v *Voice) Sample() *sample.Sample   { return v.sample }
func (v *Voice) Settings() *pad.Settings  { return v.settings }
func (v *Voice) Position() float64        { return v.position }
func (v *Voice) Looping() bool            { return v.looping }
func (v *Voice) AmpStage() envelope.Stage { return v.amp.Stage() }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
