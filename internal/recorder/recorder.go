// Package recorder captures rendered output to a WAV file without blocking
// the render thread.
package recorder

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	chunkCount   = 64
	chunkSamples = 8192
)

// Recorder hands fixed-size chunks from the render thread to a writer
// goroutine. When the writer falls behind, chunks are dropped and counted.
type Recorder struct {
	ctl    sync.Mutex // serializes Start and Stop
	create func(path string) (*os.File, error)

	// mu guards the fields the render thread reads in Write.
	mu       sync.Mutex
	active   bool
	path     string
	channels int
	full     chan []float32
	free     chan []float32
	g        *errgroup.Group

	dropped atomic.Uint64
	written atomic.Int64
}

func New() *Recorder {
	return &Recorder{create: os.Create}
}

// Start opens path and begins accepting samples.
func (r *Recorder) Start(path string, sampleRate, channels int) error {
	if sampleRate <= 0 {
		return errors.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels < 1 || channels > 2 {
		return errors.Errorf("unsupported channel count %d", channels)
	}
	r.ctl.Lock()
	defer r.ctl.Unlock()
	if r.Active() {
		return errors.Errorf("already recording to %s", r.path)
	}
	f, err := r.create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	full := make(chan []float32, chunkCount)
	free := make(chan []float32, chunkCount)
	for i := 0; i < chunkCount; i++ {
		free <- make([]float32, 0, chunkSamples)
	}
	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	g := new(errgroup.Group)
	g.Go(func() error {
		buf := &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:           make([]int, 0, chunkSamples),
			SourceBitDepth: bitDepth,
		}
		var werr error
		for chunk := range full {
			if werr == nil {
				buf.Data = buf.Data[:len(chunk)]
				toPCM16(buf.Data, chunk)
				werr = enc.Write(buf)
			}
			free <- chunk[:0]
		}
		if werr != nil {
			_ = f.Close()
			return errors.Wrap(werr, "encode wav")
		}
		if err := enc.Close(); err != nil {
			_ = f.Close()
			return errors.Wrap(err, "finish wav")
		}
		return errors.Wrap(f.Close(), "close wav")
	})

	r.mu.Lock()
	r.active = true
	r.path = path
	r.channels = channels
	r.full = full
	r.free = free
	r.g = g
	r.dropped.Store(0)
	r.written.Store(0)
	r.mu.Unlock()
	return nil
}

// Write queues interleaved samples. It never blocks.
func (r *Recorder) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	for len(samples) > 0 {
		n := len(samples)
		if n > chunkSamples {
			n = chunkSamples - chunkSamples%r.channels
		}
		var chunk []float32
		select {
		case chunk = <-r.free:
		default:
			r.dropped.Add(uint64(n))
			samples = samples[n:]
			continue
		}
		chunk = append(chunk, samples[:n]...)
		r.full <- chunk
		r.written.Add(int64(n))
		samples = samples[n:]
	}
}

// Stop flushes queued chunks, finalises the file and returns the path.
func (r *Recorder) Stop() (string, error) {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return "", errors.New("not recording")
	}
	r.active = false
	close(r.full)
	g, path := r.g, r.path
	r.full, r.free, r.g = nil, nil, nil
	r.mu.Unlock()
	return path, g.Wait()
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Dropped returns the number of samples lost because the writer fell behind.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Written returns the number of samples queued for the current recording.
func (r *Recorder) Written() int64 { return r.written.Load() }
