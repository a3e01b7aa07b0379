// Package pad holds per-pad trigger configuration.
//
// Settings published to a Table are immutable: every edit installs a fresh
// copy, so the pointer handed to a voice at trigger time is a snapshot that
// later edits never reach.
package pad

import (
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/cbegin/drumkit-go/internal/envelope"
	"github.com/cbegin/drumkit-go/internal/filter"
	"github.com/cbegin/drumkit-go/internal/lfo"
)

// PlaybackMode controls how a voice reacts to note-off.
type PlaybackMode int

const (
	OneShot PlaybackMode = iota // plays to the end of the sample, ignores note-off
	Gate                        // releases the amp envelope on note-off
	Loop                        // loops between the loop points until note-off
)

// Layer is one sample slot of a pad.
type Layer struct {
	SampleID   string
	Enabled    bool
	VolumeDB   float64
	Pan        float64
	CoarseTune int     // semitones
	FineTune   float64 // cents
	StartFrame int
	EndFrame   int // 0 means end of sample
	LoopStart  int
	LoopEnd    int // 0 means end of sample
}

// FilterSettings configures the per-voice filter.
type FilterSettings struct {
	Enabled   bool
	Mode      filter.Mode
	CutoffHz  float64
	Resonance float64
	EnvAmount float64 // octaves added at full filter-envelope level
}

// Settings is the complete configuration of one pad.
type Settings struct {
	Volume     float64
	Pan        float64
	CoarseTune int
	FineTune   float64
	Mode       PlaybackMode

	AmpEnvelope envelope.Settings

	FilterEnvelopeOn bool
	FilterEnvelope   envelope.Settings

	PitchEnvelopeOn bool
	PitchEnvelope   envelope.Settings
	PitchEnvAmount  float64 // semitones at full pitch-envelope level

	LFOs   []lfo.Settings
	Filter FilterSettings
	Layers []Layer
}

// Default returns a one-shot pad at unity volume with the default amp envelope.
func Default() Settings {
	return Settings{
		Volume:      1,
		AmpEnvelope: envelope.DefaultAmp(),
		Filter:      FilterSettings{Mode: filter.LowPass, CutoffHz: 20000},
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() *Settings {
	c := s
	if s.LFOs != nil {
		c.LFOs = append([]lfo.Settings(nil), s.LFOs...)
	}
	if s.Layers != nil {
		c.Layers = append([]Layer(nil), s.Layers...)
	}
	return &c
}

// SelectLayer returns the first enabled layer with a sample id. Velocity
// does not take part in the choice.
func (s *Settings) SelectLayer() (Layer, bool) {
	for _, l := range s.Layers {
		if l.Enabled && l.SampleID != "" {
			return l, true
		}
	}
	return Layer{}, false
}

// NormalizeVelocity maps a MIDI velocity to 0..1.
func NormalizeVelocity(velocity int) float64 {
	return clamp(float64(velocity)/127, 0, 1)
}

// LayerGain is padVolume * 10^(layerDB/20) * velocity.
func (s *Settings) LayerGain(l Layer, velocity int) float64 {
	return s.Volume * math.Pow(10, l.VolumeDB/20) * NormalizeVelocity(velocity)
}

// LayerPan is the pad pan plus the layer offset, clamped to [-1, 1].
func (s *Settings) LayerPan(l Layer) float64 {
	return clamp(s.Pan+l.Pan, -1, 1)
}

// LayerTune returns the combined pad and layer tuning in semitones.
func (s *Settings) LayerTune(l Layer) float64 {
	return float64(s.CoarseTune+l.CoarseTune) + (s.FineTune+l.FineTune)/100
}

// Table is the pad-settings table shared by the control plane and the
// render thread.
type Table struct {
	mu   sync.RWMutex
	pads map[string]*Settings
}

func NewTable() *Table {
	return &Table{pads: make(map[string]*Settings)}
}

// Configure installs a copy of s for key.
func (t *Table) Configure(key string, s Settings) error {
	if key == "" {
		return errors.New("pad key must not be empty")
	}
	c := s.Clone()
	t.mu.Lock()
	t.pads[key] = c
	t.mu.Unlock()
	return nil
}

// Update applies fn to a copy of the pad's settings and installs the result.
func (t *Table) Update(key string, fn func(*Settings)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.pads[key]
	if !ok {
		return errors.Errorf("unknown pad %q", key)
	}
	c := cur.Clone()
	fn(c)
	t.pads[key] = c
	return nil
}

// Snapshot returns the current immutable settings for key. Callers must not
// modify the result.
func (t *Table) Snapshot(key string) (*Settings, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.pads[key]
	return s, ok
}

// Remove deletes a pad.
func (t *Table) Remove(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pads[key]
	delete(t.pads, key)
	return ok
}

// Keys returns the configured pad keys in sorted order.
func (t *Table) Keys() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.pads))
	for k := range t.pads {
		keys = append(keys, k)
	}
	t.mu.RUnlock()
	sort.Strings(keys)
	return keys
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
