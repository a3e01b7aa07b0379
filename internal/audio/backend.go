package audio

import (
	"github.com/pkg/errors"
)

// Kind names an output backend.
type Kind string

const (
	Ebiten    Kind = "ebiten"
	Oto       Kind = "oto"
	PortAudio Kind = "portaudio"
)

// Channels is the channel count every backend opens.
const Channels = 2

// Backend is an open output stream.
type Backend interface {
	Play()
	Pause()
	Close() error
}

// Open starts a stream of the given kind pulling from r. The stream is
// paused until Play is called.
func Open(kind Kind, sampleRate int, r Renderer) (Backend, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if r == nil {
		return nil, errors.New("nil renderer")
	}
	switch kind {
	case Ebiten, "":
		p, err := NewPlayer(sampleRate, r)
		if err != nil {
			return nil, err
		}
		return p, nil
	case Oto:
		p, err := NewOtoPlayer(sampleRate, r)
		if err != nil {
			return nil, err
		}
		return p, nil
	case PortAudio:
		return newPortAudioStream(sampleRate, r)
	default:
		return nil, errors.Errorf("unknown audio backend %q", kind)
	}
}
