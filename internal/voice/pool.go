package voice

import "sync"

// DefaultMaxVoices caps the pool when no explicit limit is configured.
const DefaultMaxVoices = 128

// Pool is the set of sounding voices. The render thread appends, mixes and
// compacts it under a single lock acquisition per block.
type Pool struct {
	mu     sync.Mutex
	voices []*Voice
	max    int
	stolen uint64
}

// NewPool returns a pool holding at most max voices; max <= 0 is unlimited.
func NewPool(max int) *Pool {
	capacity := max
	if capacity <= 0 {
		capacity = DefaultMaxVoices
	}
	return &Pool{voices: make([]*Voice, 0, capacity), max: max}
}

// Add appends voices, stealing the oldest when the pool is full.
func (p *Pool) Add(vs ...*Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range vs {
		p.addLocked(v)
	}
}

func (p *Pool) addLocked(v *Voice) {
	if v == nil || !v.active {
		if v != nil {
			v.finish()
		}
		return
	}
	if p.max > 0 && len(p.voices) >= p.max {
		oldest := p.voices[0]
		oldest.active = false
		oldest.finish()
		copy(p.voices, p.voices[1:])
		p.voices[len(p.voices)-1] = nil
		p.voices = p.voices[:len(p.voices)-1]
		p.stolen++
	}
	p.voices = append(p.voices, v)
}

// Render appends pending, mixes every active voice into out and removes the
// voices that finished, all under one lock.
func (p *Pool) Render(out []float32, frames, channels int, pending []*Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range pending {
		p.addLocked(v)
	}
	for _, v := range p.voices {
		v.Render(out, frames, channels)
	}
	p.compactLocked()
}

func (p *Pool) compactLocked() {
	n := 0
	for _, v := range p.voices {
		if v.active {
			p.voices[n] = v
			n++
			continue
		}
		v.finish()
	}
	for i := n; i < len(p.voices); i++ {
		p.voices[i] = nil
	}
	p.voices = p.voices[:n]
}

// Release releases every voice started by noteID and returns how many matched.
func (p *Pool) Release(noteID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, v := range p.voices {
		if v.noteID == noteID && v.active {
			v.Release()
			n++
		}
	}
	return n
}

// Stop deactivates every voice started by noteID. They are removed on the
// next render.
func (p *Pool) Stop(noteID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, v := range p.voices {
		if v.noteID == noteID && v.active {
			v.Stop()
			n++
		}
	}
	return n
}

// StopAll deactivates and removes every voice.
func (p *Pool) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range p.voices {
		v.Stop()
	}
	p.compactLocked()
}

// Len returns the number of voices in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.voices)
}

// Stolen returns how many voices were dropped to make room.
func (p *Pool) Stolen() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stolen
}
