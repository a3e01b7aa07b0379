// Package audio connects a Renderer to an output device.
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
)

// Result tells the device whether to keep pulling buffers.
type Result int

const (
	Continue Result = iota
	Stop
)

func (r Result) String() string {
	if r == Stop {
		return "stop"
	}
	return "continue"
}

// Renderer fills buf with frames*channels interleaved samples.
type Renderer interface {
	Render(buf []float32, frames, channels int) Result
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(buf []float32, frames, channels int) Result

func (f RenderFunc) Render(buf []float32, frames, channels int) Result {
	return f(buf, frames, channels)
}

// StreamReader exposes a Renderer as a float32 little-endian PCM stream.
type StreamReader struct {
	mu       sync.Mutex
	renderer Renderer
	channels int
	buf      []float32
	done     bool
}

func NewStreamReader(renderer Renderer, channels int) *StreamReader {
	if channels < 1 {
		channels = 2
	}
	return &StreamReader{renderer: renderer, channels: channels}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return 0, io.EOF
	}
	frameBytes := 4 * r.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	need := frames * r.channels
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	res := r.renderer.Render(r.buf, frames, r.channels)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	n := frames * frameBytes
	if res == Stop {
		r.done = true
		return n, io.EOF
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }
