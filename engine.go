// Package drumkit is the real-time render core of a polyphonic sample
// player: pads, a step sequencer and a metronome feeding a voice pool that
// is mixed on the audio thread.
package drumkit

import (
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/cbegin/drumkit-go/internal/audio"
	"github.com/cbegin/drumkit-go/internal/bus"
	"github.com/cbegin/drumkit-go/internal/metronome"
	"github.com/cbegin/drumkit-go/internal/pad"
	"github.com/cbegin/drumkit-go/internal/recorder"
	"github.com/cbegin/drumkit-go/internal/sample"
	"github.com/cbegin/drumkit-go/internal/sequencer"
	"github.com/cbegin/drumkit-go/internal/voice"
)

var (
	ErrUnknownPad     = errors.New("unknown pad")
	ErrUnknownSample  = errors.New("unknown sample")
	ErrInvalidTempo   = errors.New("invalid tempo")
	ErrNotInitialized = errors.New("engine not initialized")
)

const metronomeTrack = "metronome"

// Engine owns every piece of shared state. The audio device calls Render;
// everything else is control plane and may be called from any goroutine.
type Engine struct {
	log        *log.Logger
	sampleRate int
	backend    Backend
	sampleTap  func([]float32)

	metro   *metronome.Scheduler
	clock   *sequencer.Clock
	pads    *pad.Table
	samples *sample.Table
	pool    *voice.Pool
	bus     *bus.Bus
	rec     *recorder.Recorder

	noteIDs     atomic.Int64
	masterGain  atomic.Uint64 // float64 bits
	initialized atomic.Bool

	// Render state. renderMu is only ever taken by Render callers.
	renderMu   sync.Mutex
	frameClock atomic.Int64
	clicks     []metronome.Click
	triggers   []sequencer.Trigger
	pending    []*voice.Voice

	warnings chan warning
	dropped  atomic.Uint64
	done     chan struct{}
	drained  sync.WaitGroup

	mu     sync.Mutex
	stream audio.Backend
	closed bool
}

// New returns an initialized engine for the given stream sample rate. No
// audio device is opened until Start.
func New(sampleRate int, opts ...Option) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine{
		log:        cfg.logger,
		sampleRate: sampleRate,
		backend:    cfg.backend,
		sampleTap:  cfg.sampleTap,
		metro:      metronome.New(float64(sampleRate)),
		pads:       pad.NewTable(),
		samples:    sample.NewTable(),
		pool:       voice.NewPool(cfg.maxVoices),
		bus:        bus.New(sampleRate),
		rec:        recorder.New(),
		clicks:     make([]metronome.Click, 0, 16),
		triggers:   make([]sequencer.Trigger, 0, 64),
		pending:    make([]*voice.Voice, 0, 64),
		warnings:   make(chan warning, warningBuffer),
		done:       make(chan struct{}),
	}
	e.clock = sequencer.NewClock(float64(sampleRate), e.nextNoteID)
	e.masterGain.Store(math.Float64bits(cfg.masterGain))
	e.initialized.Store(true)
	e.drained.Add(1)
	go e.drainWarnings()
	return e, nil
}

func (e *Engine) nextNoteID() int64 { return e.noteIDs.Add(1) }

// SampleRate returns the stream sample rate.
func (e *Engine) SampleRate() int { return e.sampleRate }

// ConfigurePad replaces a pad's settings. Voices already sounding keep the
// settings they were triggered with.
func (e *Engine) ConfigurePad(key string, s PadSettings) error {
	if err := e.pads.Configure(key, s); err != nil {
		e.log.Printf("configure pad: %v", err)
		return err
	}
	return nil
}

func (e *Engine) SetPadVolume(key string, volume float64) error {
	if volume < 0 {
		volume = 0
	}
	return e.updatePad(key, func(s *pad.Settings) { s.Volume = volume })
}

func (e *Engine) SetPadPan(key string, pan float64) error {
	pan = math.Max(-1, math.Min(1, pan))
	return e.updatePad(key, func(s *pad.Settings) { s.Pan = pan })
}

func (e *Engine) updatePad(key string, fn func(*pad.Settings)) error {
	if err := e.pads.Update(key, fn); err != nil {
		err = errors.Wrapf(ErrUnknownPad, "pad %q", key)
		e.log.Print(err)
		return err
	}
	return nil
}

// PadSettings returns a copy of a pad's current settings.
func (e *Engine) PadSettings(key string) (PadSettings, bool) {
	s, ok := e.pads.Snapshot(key)
	if !ok {
		return PadSettings{}, false
	}
	return *s.Clone(), true
}

// LoadSample publishes interleaved PCM under id, replacing any sample with
// the same id.
func (e *Engine) LoadSample(id string, channels, sampleRate int, data []float32) error {
	s, err := sample.New(id, channels, sampleRate, data)
	if err != nil {
		e.log.Printf("load sample %q: %v", id, err)
		return err
	}
	e.samples.Publish(s)
	return nil
}

// LoadSampleFile decodes a WAV file and publishes it under id.
func (e *Engine) LoadSampleFile(id, path string) error {
	s, err := sample.LoadFile(id, path)
	if err != nil {
		e.log.Printf("load sample %q: %v", id, err)
		return err
	}
	e.samples.Publish(s)
	return nil
}

func (e *Engine) IsLoaded(id string) bool { return e.samples.IsLoaded(id) }

// Unload removes a sample from the table. New triggers stop finding it at
// once; voices still playing it finish on their own reference.
func (e *Engine) Unload(id string) error {
	s, ok := e.samples.Unload(id)
	if !ok {
		err := errors.Wrapf(ErrUnknownSample, "unload %q", id)
		e.log.Print(err)
		return err
	}
	if n := s.Users(); n > 0 {
		e.log.Printf("unload %q deferred: %d voices still playing it", id, n)
	}
	return nil
}

// LoadSequence replaces the current sequence and rewinds to tick 0. Notes
// the old sequence was holding are released.
func (e *Engine) LoadSequence(seq *Sequence) error {
	pending, err := e.clock.Load(seq)
	if err != nil {
		err = errors.Wrap(err, "load sequence")
		e.log.Print(err)
		return err
	}
	e.releaseNotes(pending)
	return nil
}

// ImportSMF reads a Standard MIDI File into a Sequence, mapping MIDI keys to
// pad ids through keys. Unmapped notes are skipped.
func ImportSMF(r io.Reader, keys map[uint8]string) (*Sequence, error) {
	return sequencer.ImportSMF(r, func(key uint8) (string, bool) {
		id, ok := keys[key]
		return id, ok
	})
}

func (e *Engine) PlaySequence() error {
	if err := e.clock.Play(); err != nil {
		e.log.Printf("play sequence: %v", err)
		return err
	}
	return nil
}

// StopSequence pauses the sequencer at the current tick and releases any
// notes waiting for their note-off.
func (e *Engine) StopSequence() {
	e.releaseNotes(e.clock.Stop())
}

// RewindSequence moves the playhead back to the first tick.
func (e *Engine) RewindSequence() { e.clock.Rewind() }

func (e *Engine) SetSequenceBPM(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		err := errors.Wrapf(ErrInvalidTempo, "sequence bpm %v", bpm)
		e.log.Print(err)
		return err
	}
	if err := e.clock.SetBPM(bpm); err != nil {
		e.log.Printf("set sequence bpm: %v", err)
		return err
	}
	return nil
}

func (e *Engine) SequencePlaying() bool { return e.clock.Playing() }

// Playhead returns the current sequencer tick.
func (e *Engine) Playhead() int { return e.clock.Playhead() }

// SetMetronomeState replaces the metronome configuration. An invalid tempo
// leaves the previous state in place.
func (e *Engine) SetMetronomeState(enabled bool, bpm float64, numerator, denominator int, primarySampleID, secondarySampleID string) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		err := errors.Wrapf(ErrInvalidTempo, "metronome bpm %v", bpm)
		e.log.Print(err)
		return err
	}
	st := e.metro.State()
	st.Enabled = enabled
	st.BPM = bpm
	st.Numerator = numerator
	st.Denominator = denominator
	st.PrimarySampleID = primarySampleID
	st.SecondarySampleID = secondarySampleID
	if enabled && primarySampleID != "" && !e.samples.IsLoaded(primarySampleID) {
		e.log.Printf("metronome sample %q is not loaded yet", primarySampleID)
	}
	return e.metro.SetState(st)
}

func (e *Engine) SetMetronomeVolume(volume float64) { e.metro.SetVolume(volume) }

func (e *Engine) MetronomeState() MetronomeState { return e.metro.State() }

// StopNote releases the voices started for noteID. Returns the number of
// voices affected.
func (e *Engine) StopNote(noteID int64) int { return e.pool.Release(noteID) }

// KillNote silences the voices for noteID without a release tail.
func (e *Engine) KillNote(noteID int64) int { return e.pool.Stop(noteID) }

// StopAll silences every voice.
func (e *Engine) StopAll() { e.pool.StopAll() }

func (e *Engine) releaseNotes(ids []int64) {
	for _, id := range ids {
		e.pool.Release(id)
	}
}

// ActiveVoices returns the current pool size.
func (e *Engine) ActiveVoices() int { return e.pool.Len() }

// StolenVoices returns how many voices were dropped to respect the voice cap.
func (e *Engine) StolenVoices() uint64 { return e.pool.Stolen() }

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (e *Engine) SetMasterVolume(volume float64) {
	if volume < 0 || math.IsNaN(volume) {
		volume = 0
	}
	e.masterGain.Store(math.Float64bits(volume))
}

func (e *Engine) MasterVolume() float64 {
	return math.Float64frombits(e.masterGain.Load())
}

// SetEQBand sets the gain for a master EQ band (0-4). 1.0 = unity.
// Band frequencies: 0=<200Hz, 1=200-800Hz, 2=800-2.5kHz, 3=2.5-8kHz, 4=>8kHz.
func (e *Engine) SetEQBand(band int, gain float32) {
	e.bus.EQ.SetGain(band, gain)
}

// EQBand returns the current gain for a master EQ band (0-4).
func (e *Engine) EQBand(band int) float32 {
	return e.bus.EQ.Gain(band)
}

// SetBusCompressor configures the compressor on the master bus.
func (e *Engine) SetBusCompressor(s BusCompressor) {
	e.bus.Compressor.Configure(s)
}

func (e *Engine) BusCompressor() BusCompressor { return e.bus.Compressor.Settings() }

// BusGainReduction returns the smallest compressor gain of the last block.
func (e *Engine) BusGainReduction() float32 { return e.bus.Compressor.GainReduction() }

// Initialized reports whether Render is producing audio.
func (e *Engine) Initialized() bool { return e.initialized.Load() }

// Start opens the configured audio backend and begins playback.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("engine closed")
	}
	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	if e.stream == nil {
		s, err := audio.Open(e.backend, e.sampleRate, e)
		if err != nil {
			err = errors.Wrapf(err, "open %s backend", e.backend)
			e.log.Print(err)
			return err
		}
		e.stream = s
	}
	e.stream.Play()
	return nil
}

// Pause stops pulling buffers from the engine without closing the device.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream != nil {
		e.stream.Pause()
	}
}

// MarkStreamFailed records an audio device failure. Render returns silence
// and Stop until Reinitialize is called.
func (e *Engine) MarkStreamFailed(err error) {
	e.initialized.Store(false)
	e.log.Printf("audio stream failed: %v", err)
	e.mu.Lock()
	s := e.stream
	e.stream = nil
	e.mu.Unlock()
	if s != nil {
		_ = s.Close()
	}
}

// Reinitialize re-arms the engine after MarkStreamFailed. Voices that were
// sounding when the stream failed are discarded.
func (e *Engine) Reinitialize() error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return errors.New("engine closed")
	}
	e.pool.StopAll()
	e.renderMu.Lock()
	e.bus.Reset()
	e.renderMu.Unlock()
	e.initialized.Store(true)
	return nil
}

// StartRecording captures rendered output to a 16-bit WAV file at path.
func (e *Engine) StartRecording(path string) error {
	if err := e.rec.Start(path, e.sampleRate, audio.Channels); err != nil {
		e.log.Printf("start recording: %v", err)
		return err
	}
	return nil
}

// StopRecording finalises the current recording and returns its path.
func (e *Engine) StopRecording() (string, error) {
	path, err := e.rec.Stop()
	if err != nil {
		return path, err
	}
	if n := e.rec.Dropped(); n > 0 {
		e.log.Printf("recording %s dropped %d samples", path, n)
	}
	return path, nil
}

// Close stops the stream, any recording and the diagnostics goroutine.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	s := e.stream
	e.stream = nil
	e.mu.Unlock()

	e.initialized.Store(false)
	var err error
	if s != nil {
		err = s.Close()
	}
	if e.rec.Active() {
		if _, rerr := e.StopRecording(); rerr != nil && err == nil {
			err = rerr
		}
	}
	e.pool.StopAll()
	close(e.done)
	e.drained.Wait()
	return err
}
