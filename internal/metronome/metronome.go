// Package metronome schedules click voices on tempo-derived beat boundaries.
package metronome

import (
	"math"
	"sync"

	"github.com/pkg/errors"
)

// State is the control-plane view of the metronome.
type State struct {
	Enabled           bool
	BPM               float64
	Numerator         int
	Denominator       int
	Volume            float64
	PrimarySampleID   string // downbeat
	SecondarySampleID string // other beats; falls back to primary
}

// Click is one beat to sound, at Offset frames into the current block.
type Click struct {
	Offset   int
	Beat     int // 0-based position in the bar
	SampleID string
	Volume   float64
	Accent   bool
}

// Scheduler walks each render block frame by frame and emits a Click at
// every beat boundary.
type Scheduler struct {
	mu            sync.Mutex
	state         State
	sampleRate    float64
	framesPerBeat int
	untilNext     int
	beatInBar     int
}

func New(sampleRate float64) *Scheduler {
	return &Scheduler{
		sampleRate: sampleRate,
		state:      State{BPM: 120, Numerator: 4, Denominator: 4, Volume: 1},
	}
}

// FramesPerBeat derives the beat length; it is 0 when bpm or the sample
// rate is not positive.
func FramesPerBeat(bpm, sampleRate float64) int {
	if bpm <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Round(60 / bpm * sampleRate))
}

// SetState replaces the metronome state. Enabling a disabled metronome
// restarts the bar so the next block begins with a downbeat.
func (s *Scheduler) SetState(st State) error {
	if st.Numerator <= 0 {
		st.Numerator = 4
	}
	if st.Denominator <= 0 {
		st.Denominator = 4
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	restart := st.Enabled && !s.state.Enabled
	s.state = st
	s.recomputeLocked()
	if restart {
		s.untilNext = 0
		s.beatInBar = 0
	}
	if s.beatInBar >= st.Numerator {
		s.beatInBar = 0
	}
	if st.BPM <= 0 {
		return errors.Errorf("invalid metronome tempo %v", st.BPM)
	}
	return nil
}

// SetVolume changes the click volume.
func (s *Scheduler) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Volume = volume
}

// SetBPM changes only the tempo.
func (s *Scheduler) SetBPM(bpm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.BPM = bpm
	s.recomputeLocked()
	if bpm <= 0 {
		return errors.Errorf("invalid metronome tempo %v", bpm)
	}
	return nil
}

// SetSampleRate updates the stream rate.
func (s *Scheduler) SetSampleRate(sampleRate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = sampleRate
	s.recomputeLocked()
}

func (s *Scheduler) recomputeLocked() {
	s.framesPerBeat = FramesPerBeat(s.state.BPM, s.sampleRate)
	if s.untilNext > s.framesPerBeat {
		s.untilNext = s.framesPerBeat
	}
}

// State returns a copy of the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FramesPerBeat returns the derived beat length in frames.
func (s *Scheduler) FramesPerBeat() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesPerBeat
}

// Advance consumes frames of time and appends the clicks that fall inside
// them to dst.
func (s *Scheduler) Advance(frames int, dst []Click) []Click {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Enabled || s.framesPerBeat == 0 {
		return dst
	}
	for f := 0; f < frames; f++ {
		if s.untilNext <= 0 {
			dst = append(dst, s.clickLocked(f))
			s.untilNext = s.framesPerBeat
		}
		s.untilNext--
	}
	return dst
}

func (s *Scheduler) clickLocked(offset int) Click {
	beat := s.beatInBar
	s.beatInBar = (s.beatInBar + 1) % s.state.Numerator
	id := s.state.PrimarySampleID
	if beat != 0 && s.state.SecondarySampleID != "" {
		id = s.state.SecondarySampleID
	}
	return Click{
		Offset:   offset,
		Beat:     beat,
		SampleID: id,
		Volume:   s.state.Volume,
		Accent:   beat == 0,
	}
}
