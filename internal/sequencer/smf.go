package sequencer

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// KeyMapper resolves a MIDI key to a pad id. Keys without a pad are skipped.
type KeyMapper func(key uint8) (padID string, ok bool)

// ImportSMF builds a Sequence from a Standard MIDI File. PPQN, the first
// tempo and the first meter come from the file; the bar length is the
// number of whole bars needed to hold the last event.
func ImportSMF(r io.Reader, mapKey KeyMapper) (*Sequence, error) {
	if mapKey == nil {
		return nil, errors.New("nil key mapper")
	}
	file, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(err, "read MIDI file")
	}
	ticks, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errors.New("SMPTE time format is not supported")
	}
	seq := &Sequence{
		BPM:         120,
		PPQN:        int(ticks.Resolution()),
		Numerator:   4,
		Denominator: 4,
		Tracks:      make(map[string][]Event),
	}
	haveTempo, haveMeter := false, false
	lastTick := 0
	for ti, track := range file.Tracks {
		var abs int64
		var events []Event
		open := make(map[uint8]int)
		for _, ev := range track {
			abs += int64(ev.Delta)
			msg := midi.Message(ev.Message)
			var (
				ch, key, vel uint8
				bpm          float64
				num, den     uint8
			)
			switch {
			case ev.Message.GetMetaTempo(&bpm):
				if !haveTempo && bpm > 0 {
					seq.BPM = bpm
					haveTempo = true
				}
			case ev.Message.GetMetaMeter(&num, &den):
				if !haveMeter && num > 0 && den > 0 {
					seq.Numerator = int(num)
					seq.Denominator = int(den)
					haveMeter = true
				}
			case msg.GetNoteStart(&ch, &key, &vel):
				padID, ok := mapKey(key)
				if !ok {
					continue
				}
				events = append(events, Event{StartTick: int(abs), PadID: padID, Velocity: int(vel)})
				open[key] = len(events) - 1
			case msg.GetNoteEnd(&ch, &key):
				if i, ok := open[key]; ok {
					events[i].DurationTicks = int(abs) - events[i].StartTick
					delete(open, key)
				}
			}
		}
		for _, e := range events {
			if e.StartTick > lastTick {
				lastTick = e.StartTick
			}
		}
		if len(events) > 0 {
			seq.Tracks[fmt.Sprintf("track%02d", ti)] = events
		}
	}
	perBar := seq.TicksPerBar()
	seq.BarLength = lastTick/perBar + 1
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return seq, nil
}
