//go:build !portaudio

package audio

import "github.com/pkg/errors"

func newPortAudioStream(int, Renderer) (Backend, error) {
	return nil, errors.New("portaudio backend not built; rebuild with -tags portaudio")
}
