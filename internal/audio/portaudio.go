//go:build portaudio

package audio

import (
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"
)

const framesPerBuffer = 256

// PortAudioStream calls the Renderer straight from the PortAudio callback.
type PortAudioStream struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
}

func newPortAudioStream(sampleRate int, r Renderer) (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "initialize portaudio")
	}
	s, err := portaudio.OpenDefaultStream(0, Channels, float64(sampleRate), framesPerBuffer, func(out []float32) {
		if r.Render(out, len(out)/Channels, Channels) == Stop {
			for i := range out {
				out[i] = 0
			}
		}
	})
	if err != nil {
		portaudio.Terminate()
		return nil, errors.Wrap(err, "open portaudio stream")
	}
	return &PortAudioStream{stream: s}, nil
}

func (p *PortAudioStream) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil && !p.running {
		if err := p.stream.Start(); err == nil {
			p.running = true
		}
	}
}

func (p *PortAudioStream) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil && p.running {
		_ = p.stream.Stop()
		p.running = false
	}
}

func (p *PortAudioStream) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	if p.running {
		_ = p.stream.Stop()
		p.running = false
	}
	err := p.stream.Close()
	p.stream = nil
	portaudio.Terminate()
	return err
}
