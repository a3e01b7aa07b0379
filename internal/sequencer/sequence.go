// Package sequencer converts render time into musical ticks and dispatches
// the pad triggers of the loaded sequence.
package sequencer

import (
	"sort"

	"github.com/pkg/errors"
)

// Event is a pad trigger at a tick.
type Event struct {
	StartTick     int
	PadID         string
	Velocity      int // 0..127
	DurationTicks int // 0 means no note-off
}

// Sequence is a looped pattern of per-track events.
type Sequence struct {
	BPM         float64
	PPQN        int
	Numerator   int
	Denominator int
	BarLength   int // bars
	Tracks      map[string][]Event
}

// TicksPerBar is beatsPerBar * PPQN.
func (s *Sequence) TicksPerBar() int {
	return s.Numerator * s.PPQN
}

// TotalTicks is the loop length in ticks.
func (s *Sequence) TotalTicks() int {
	return s.BarLength * s.TicksPerBar()
}

// TickDurationMs is (60000/bpm)/PPQN, or 0 when either is invalid.
func TickDurationMs(bpm float64, ppqn int) float64 {
	if bpm <= 0 || ppqn <= 0 {
		return 0
	}
	return (60000 / bpm) / float64(ppqn)
}

// Validate checks the timing fields and that every event starts inside the
// loop.
func (s *Sequence) Validate() error {
	if s.BPM <= 0 {
		return errors.Errorf("invalid sequence tempo %v", s.BPM)
	}
	if s.PPQN <= 0 {
		return errors.Errorf("invalid sequence PPQN %d", s.PPQN)
	}
	if s.Numerator <= 0 {
		return errors.Errorf("invalid time signature numerator %d", s.Numerator)
	}
	if s.BarLength <= 0 {
		return errors.Errorf("invalid bar length %d", s.BarLength)
	}
	total := s.TotalTicks()
	for _, id := range s.TrackIDs() {
		for _, ev := range s.Tracks[id] {
			if ev.StartTick < 0 || ev.StartTick >= total {
				return errors.Errorf("track %q: event at tick %d outside loop of %d ticks", id, ev.StartTick, total)
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s *Sequence) Clone() *Sequence {
	c := *s
	c.Tracks = make(map[string][]Event, len(s.Tracks))
	for id, evs := range s.Tracks {
		c.Tracks[id] = append([]Event(nil), evs...)
	}
	return &c
}

// TrackIDs returns track ids in sorted order.
func (s *Sequence) TrackIDs() []string {
	ids := make([]string, 0, len(s.Tracks))
	for id := range s.Tracks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
