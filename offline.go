package drumkit

import (
	"os"

	"github.com/pkg/errors"

	"github.com/cbegin/drumkit-go/internal/recorder"
)

// RenderOffline renders frames of audio in blocks of blockFrames without an
// audio device. It drives the same Render path the device does.
func (e *Engine) RenderOffline(frames, blockFrames, channels int) ([]float32, error) {
	if frames < 0 {
		return nil, errors.Errorf("invalid frame count %d", frames)
	}
	if blockFrames <= 0 {
		return nil, errors.Errorf("invalid block size %d", blockFrames)
	}
	if channels < 1 || channels > 2 {
		return nil, errors.Errorf("unsupported channel count %d", channels)
	}
	out := make([]float32, frames*channels)
	for pos := 0; pos < frames; pos += blockFrames {
		n := blockFrames
		if pos+n > frames {
			n = frames - pos
		}
		if e.Render(out[pos*channels:(pos+n)*channels], n, channels) == Stop {
			return out, ErrNotInitialized
		}
	}
	return out, nil
}

// RenderOfflineWAV renders stereo audio to a 16-bit WAV file at path.
func (e *Engine) RenderOfflineWAV(path string, frames, blockFrames int) error {
	samples, err := e.RenderOffline(frames, blockFrames, 2)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := recorder.WriteWAV(f, samples, e.sampleRate, 2); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
