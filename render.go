package drumkit

import (
	"math"

	"github.com/pkg/errors"

	"github.com/cbegin/drumkit-go/internal/audio"
	"github.com/cbegin/drumkit-go/internal/envelope"
	"github.com/cbegin/drumkit-go/internal/metronome"
	"github.com/cbegin/drumkit-go/internal/pad"
	"github.com/cbegin/drumkit-go/internal/sequencer"
	"github.com/cbegin/drumkit-go/internal/voice"
)

// Render is the real-time entry point. It fills buf with frames of
// interleaved audio and never blocks on I/O or the control plane beyond
// short per-resource critical sections.
func (e *Engine) Render(buf []float32, frames, channels int) audio.Result {
	if frames <= 0 || channels <= 0 {
		return audio.Continue
	}
	if frames*channels > len(buf) {
		frames = len(buf) / channels
	}
	out := buf[:frames*channels]
	clear(out)
	if !e.initialized.Load() {
		return audio.Stop
	}

	e.renderMu.Lock()
	defer e.renderMu.Unlock()

	bpm := e.metro.State().BPM
	e.clicks = e.metro.Advance(frames, e.clicks[:0])
	e.triggers = e.clock.Advance(frames, e.triggers[:0])
	if seqBPM := e.clock.BPM(); seqBPM > 0 {
		bpm = seqBPM
	}

	e.pending = e.pending[:0]
	for _, c := range e.clicks {
		e.spawnClick(c, bpm)
	}
	for _, t := range e.triggers {
		if t.Release {
			e.releaseNote(t.NoteID)
			continue
		}
		e.spawnEvent(t, bpm)
	}

	e.pool.Render(out, frames, channels, e.pending)
	for i := range e.pending {
		e.pending[i] = nil
	}
	e.frameClock.Add(int64(frames))

	e.bus.Process(out, channels)
	if g := e.MasterVolume(); g != 1 {
		gf := float32(g)
		for i := range out {
			out[i] *= gf
		}
	}
	if channels == audio.Channels {
		e.rec.Write(out)
	}
	if e.sampleTap != nil {
		e.sampleTap(out)
	}
	return audio.Continue
}

// releaseNote handles a sequencer note-off for a voice that may still be
// waiting in this block's pending list.
func (e *Engine) releaseNote(noteID int64) {
	for _, v := range e.pending {
		if v.NoteID() == noteID {
			v.Release()
		}
	}
	e.pool.Release(noteID)
}

func (e *Engine) spawnClick(c metronome.Click, bpm float64) {
	if c.SampleID == "" {
		return
	}
	s, ok := e.samples.Get(c.SampleID)
	if !ok {
		e.warn(warning{kind: warnUnknownSample, id: c.SampleID})
		return
	}
	v, err := voice.New(voice.Config{
		NoteID:     e.nextNoteID(),
		TrackID:    metronomeTrack,
		Sample:     s,
		Volume:     c.Volume,
		Velocity:   1,
		Mode:       pad.OneShot,
		Amp:        envelope.DefaultAmp(),
		Offset:     c.Offset,
		SampleRate: float64(e.sampleRate),
		BPM:        bpm,
		StartTime:  e.frameClock.Load() + int64(c.Offset),
	})
	if err != nil {
		e.warn(warning{kind: warnVoice, id: c.SampleID})
		return
	}
	e.pending = append(e.pending, v)
}

// spawnEvent resolves a sequencer trigger against the pad table: snapshot
// the pad, pick its first enabled layer and build a voice from both.
func (e *Engine) spawnEvent(t sequencer.Trigger, bpm float64) {
	ps, ok := e.pads.Snapshot(t.Event.PadID)
	if !ok {
		e.warn(warning{kind: warnUnknownPad, id: t.Event.PadID})
		return
	}
	layer, ok := ps.SelectLayer()
	if !ok {
		e.warn(warning{kind: warnNoLayer, id: t.Event.PadID})
		return
	}
	s, ok := e.samples.Get(layer.SampleID)
	if !ok {
		e.warn(warning{kind: warnUnknownSample, id: layer.SampleID})
		return
	}
	v, err := voice.New(voice.Config{
		NoteID:     t.NoteID,
		TrackID:    t.TrackID,
		PadID:      t.Event.PadID,
		Sample:     s,
		Settings:   ps,
		Volume:     ps.LayerGain(layer, t.Event.Velocity),
		Pan:        ps.LayerPan(layer),
		Tune:       ps.LayerTune(layer),
		Velocity:   pad.NormalizeVelocity(t.Event.Velocity),
		Mode:       ps.Mode,
		Amp:        ps.AmpEnvelope,
		StartFrame: layer.StartFrame,
		EndFrame:   layer.EndFrame,
		LoopStart:  layer.LoopStart,
		LoopEnd:    layer.LoopEnd,
		Offset:     t.Offset,
		SampleRate: float64(e.sampleRate),
		BPM:        bpm,
		StartTime:  e.frameClock.Load() + int64(t.Offset),
	})
	if err != nil {
		e.warn(warning{kind: warnVoice, id: layer.SampleID})
		return
	}
	e.pending = append(e.pending, v)
}

// ManualTrigger describes a trigger that does not come from the sequencer.
// Volume and Pan are used as given; Velocity only feeds velocity-sensitive
// envelopes. When PadID names a configured pad, its filter, pitch envelope
// and LFOs apply to the voice.
type ManualTrigger struct {
	NoteID     int64 // 0 assigns a fresh id
	TrackID    string
	PadID      string
	SampleID   string
	Velocity   int
	CoarseTune int     // semitones
	FineTune   float64 // cents
	Pan        float64
	Volume     float64
	Mode       PlaybackMode
	Amp        *EnvelopeSettings // nil uses the pad's envelope, or the default
}

// TriggerPadSample starts a voice immediately and returns its note id.
func (e *Engine) TriggerPadSample(t ManualTrigger) (int64, error) {
	var ps *pad.Settings
	if t.PadID != "" {
		var ok bool
		if ps, ok = e.pads.Snapshot(t.PadID); !ok {
			err := errors.Wrapf(ErrUnknownPad, "trigger pad %q", t.PadID)
			e.log.Print(err)
			return 0, err
		}
	}
	s, ok := e.samples.Get(t.SampleID)
	if !ok {
		err := errors.Wrapf(ErrUnknownSample, "trigger sample %q", t.SampleID)
		e.log.Print(err)
		return 0, err
	}
	amp := envelope.DefaultAmp()
	switch {
	case t.Amp != nil:
		amp = *t.Amp
	case ps != nil:
		amp = ps.AmpEnvelope
	}
	id := t.NoteID
	if id == 0 {
		id = e.nextNoteID()
	}
	bpm := e.metro.State().BPM
	if seqBPM := e.clock.BPM(); seqBPM > 0 {
		bpm = seqBPM
	}
	v, err := voice.New(voice.Config{
		NoteID:     id,
		TrackID:    t.TrackID,
		PadID:      t.PadID,
		Sample:     s,
		Settings:   ps,
		Volume:     math.Max(0, t.Volume),
		Pan:        t.Pan,
		Tune:       float64(t.CoarseTune) + t.FineTune/100,
		Velocity:   pad.NormalizeVelocity(t.Velocity),
		Mode:       t.Mode,
		Amp:        amp,
		SampleRate: float64(e.sampleRate),
		BPM:        bpm,
		StartTime:  e.FrameClock(),
	})
	if err != nil {
		e.log.Printf("trigger: %v", err)
		return 0, err
	}
	e.pool.Add(v)
	return id, nil
}

// FrameClock returns the number of frames rendered so far.
func (e *Engine) FrameClock() int64 { return e.frameClock.Load() }
