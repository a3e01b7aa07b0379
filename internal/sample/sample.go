// Package sample holds decoded PCM samples and the table voices borrow them from.
package sample

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Sample is an immutable block of interleaved float PCM. Once published to a
// Table it is never written again, so voices read it without locking.
type Sample struct {
	ID         string
	Channels   int
	SampleRate int
	Data       []float32
	Frames     int

	users atomic.Int32
}

// New validates and wraps interleaved PCM data. The slice is retained, not copied.
func New(id string, channels, sampleRate int, data []float32) (*Sample, error) {
	if id == "" {
		return nil, errors.New("sample id must not be empty")
	}
	if channels != 1 && channels != 2 {
		return nil, errors.Errorf("sample %q: only 1 or 2 channels are supported, got %d", id, channels)
	}
	if sampleRate <= 0 {
		return nil, errors.Errorf("sample %q: sample rate must be positive, got %d", id, sampleRate)
	}
	if len(data)%channels != 0 {
		return nil, errors.Errorf("sample %q: %d values is not a whole number of %d-channel frames", id, len(data), channels)
	}
	return &Sample{
		ID:         id,
		Channels:   channels,
		SampleRate: sampleRate,
		Data:       data,
		Frames:     len(data) / channels,
	}, nil
}

// Frame returns the left and right values at frame i. Mono samples return
// the same value twice. Out-of-range frames are silent.
func (s *Sample) Frame(i int) (float32, float32) {
	if i < 0 || i >= s.Frames {
		return 0, 0
	}
	if s.Channels == 1 {
		v := s.Data[i]
		return v, v
	}
	return s.Data[i*2], s.Data[i*2+1]
}

// Acquire records a voice reading this sample.
func (s *Sample) Acquire() { s.users.Add(1) }

// Release undoes Acquire.
func (s *Sample) Release() { s.users.Add(-1) }

// Users returns how many voices currently read this sample.
func (s *Sample) Users() int { return int(s.users.Load()) }

// Table maps sample ids to published samples.
type Table struct {
	mu      sync.RWMutex
	samples map[string]*Sample
}

func NewTable() *Table {
	return &Table{samples: make(map[string]*Sample)}
}

// Publish stores s, replacing any sample with the same id. Voices already
// playing the replaced sample keep their reference until they finish.
func (t *Table) Publish(s *Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples[s.ID] = s
}

// Get looks up a sample by id.
func (t *Table) Get(id string) (*Sample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.samples[id]
	return s, ok
}

// IsLoaded reports whether id is in the table.
func (t *Table) IsLoaded(id string) bool {
	_, ok := t.Get(id)
	return ok
}

// Unload removes id from the table and returns the sample so the caller can
// inspect how many voices still hold it. New triggers stop finding it
// immediately; sounding voices finish on their borrowed reference.
func (t *Table) Unload(id string) (*Sample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.samples[id]
	if ok {
		delete(t.samples, id)
	}
	return s, ok
}

// IDs returns the loaded ids in sorted order.
func (t *Table) IDs() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.samples))
	for id := range t.samples {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
