package drumkit

import (
	"github.com/cbegin/drumkit-go/internal/audio"
	"github.com/cbegin/drumkit-go/internal/bus"
	"github.com/cbegin/drumkit-go/internal/envelope"
	"github.com/cbegin/drumkit-go/internal/filter"
	"github.com/cbegin/drumkit-go/internal/lfo"
	"github.com/cbegin/drumkit-go/internal/metronome"
	"github.com/cbegin/drumkit-go/internal/pad"
	"github.com/cbegin/drumkit-go/internal/sequencer"
)

type (
	PadSettings      = pad.Settings
	Layer            = pad.Layer
	FilterSettings   = pad.FilterSettings
	PlaybackMode     = pad.PlaybackMode
	EnvelopeSettings = envelope.Settings
	EnvelopeKind     = envelope.Kind
	LFOSettings      = lfo.Settings
	Division         = lfo.Division
	FilterMode       = filter.Mode
	Sequence         = sequencer.Sequence
	Event            = sequencer.Event
	MetronomeState   = metronome.State
	RenderResult     = audio.Result
	BusCompressor    = bus.CompressorSettings
)

const (
	OneShot = pad.OneShot
	Gate    = pad.Gate
	Loop    = pad.Loop

	Continue = audio.Continue
	Stop     = audio.Stop
)

// DefaultPadSettings returns a one-shot pad at unity volume.
func DefaultPadSettings() PadSettings { return pad.Default() }

// DefaultAmpEnvelope is the envelope used for metronome clicks and manual
// triggers that do not supply one.
func DefaultAmpEnvelope() EnvelopeSettings { return envelope.DefaultAmp() }

// DefaultBusCompressor is a 4:1 glue compressor at -12 dB, disabled.
func DefaultBusCompressor() BusCompressor { return bus.DefaultCompressor() }
