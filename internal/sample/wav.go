package sample

import (
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// DecodeWAV reads a PCM WAV stream into a Sample.
func DecodeWAV(id string, r io.ReadSeeker) (*Sample, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.Errorf("sample %q: not a valid WAV file", id)
	}
	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrapf(err, "sample %q: decode WAV", id)
	}
	if buffer.Format == nil {
		return nil, errors.Errorf("sample %q: WAV has no format chunk", id)
	}
	bitDepth := buffer.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, errors.Errorf("sample %q: unsupported bit depth %d", id, bitDepth)
	}
	// 8-bit WAV is unsigned; everything wider is signed.
	scale := float32(int64(1) << uint(bitDepth-1))
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	data := make([]float32, len(buffer.Data))
	for i, v := range buffer.Data {
		data[i] = float32(v-offset) / scale
	}
	return New(id, buffer.Format.NumChannels, buffer.Format.SampleRate, data)
}

// LoadFile decodes the WAV file at path.
func LoadFile(id, path string) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "sample %q", id)
	}
	defer f.Close()
	return DecodeWAV(id, f)
}
