package sequencer

import (
	"sync"

	"github.com/pkg/errors"
)

// Trigger is a sequencer event resolved to a frame offset in the current
// block. Release triggers carry the NoteID of an earlier trigger whose
// duration has elapsed.
type Trigger struct {
	Offset  int
	TrackID string
	Event   Event
	NoteID  int64
	Release bool
}

type tickEvent struct {
	trackID string
	event   Event
}

type noteOff struct {
	tick   int64
	noteID int64
}

// Clock advances a loaded Sequence in render time.
type Clock struct {
	mu          sync.Mutex
	seq         *Sequence
	byTick      map[int][]tickEvent
	sampleRate  float64
	nextID      func() int64
	tickMs      float64
	sinceTickMs float64
	playhead    int
	totalTicks  int
	absTick     int64
	playing     bool
	primed      bool // events at the playhead have not been dispatched yet
	noteOffs    []noteOff
}

// NewClock returns an empty, stopped clock. nextID supplies note ids for
// dispatched triggers.
func NewClock(sampleRate float64, nextID func() int64) *Clock {
	if nextID == nil {
		var n int64
		nextID = func() int64 { n++; return n }
	}
	return &Clock{
		sampleRate: sampleRate,
		nextID:     nextID,
		noteOffs:   make([]noteOff, 0, 64),
	}
}

// Load replaces the sequence and resets the playhead and tick accumulator.
// It returns the note ids still awaiting a note-off so the caller can
// release them.
func (c *Clock) Load(seq *Sequence) ([]int64, error) {
	if seq == nil {
		return nil, errors.New("nil sequence")
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	own := seq.Clone()
	byTick := make(map[int][]tickEvent)
	for _, id := range own.TrackIDs() {
		for _, ev := range own.Tracks[id] {
			byTick[ev.StartTick] = append(byTick[ev.StartTick], tickEvent{trackID: id, event: ev})
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.pendingLocked()
	c.seq = own
	c.byTick = byTick
	c.totalTicks = own.TotalTicks()
	c.tickMs = TickDurationMs(own.BPM, own.PPQN)
	c.resetLocked()
	return pending, nil
}

func (c *Clock) resetLocked() {
	c.playhead = 0
	c.sinceTickMs = 0
	c.primed = true
	c.noteOffs = c.noteOffs[:0]
}

func (c *Clock) pendingLocked() []int64 {
	if len(c.noteOffs) == 0 {
		return nil
	}
	ids := make([]int64, len(c.noteOffs))
	for i, off := range c.noteOffs {
		ids[i] = off.noteID
	}
	return ids
}

// Play starts or resumes playback from the current playhead.
func (c *Clock) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == nil {
		return errors.New("no sequence loaded")
	}
	c.playing = true
	return nil
}

// Stop pauses playback and returns note ids that were awaiting note-off.
func (c *Clock) Stop() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
	pending := c.pendingLocked()
	c.noteOffs = c.noteOffs[:0]
	return pending
}

// Rewind moves the playhead back to tick 0.
func (c *Clock) Rewind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playhead = 0
	c.sinceTickMs = 0
	c.primed = true
}

// SetBPM changes the tempo of the loaded sequence.
func (c *Clock) SetBPM(bpm float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == nil {
		return errors.New("no sequence loaded")
	}
	if bpm <= 0 {
		return errors.Errorf("invalid sequence tempo %v", bpm)
	}
	c.seq.BPM = bpm
	c.tickMs = TickDurationMs(bpm, c.seq.PPQN)
	if c.sinceTickMs > c.tickMs {
		c.sinceTickMs = c.tickMs
	}
	return nil
}

// SetSampleRate updates the stream rate used to convert frames to time.
func (c *Clock) SetSampleRate(sampleRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sampleRate = sampleRate
}

// BPM returns the tempo of the loaded sequence, or 0.
func (c *Clock) BPM() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == nil {
		return 0
	}
	return c.seq.BPM
}

// Playing reports whether the clock is running.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Playhead returns the current tick within the loop.
func (c *Clock) Playhead() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playhead
}

// TickDurationMs returns the current tick length.
func (c *Clock) TickDurationMs() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickMs
}

// Advance consumes frames of render time, dispatching every tick crossed,
// and appends the resulting triggers to dst.
func (c *Clock) Advance(frames int, dst []Trigger) []Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing || c.seq == nil || c.tickMs <= 0 || c.sampleRate <= 0 || frames <= 0 {
		return dst
	}
	msPerFrame := 1000 / c.sampleRate
	blockMs := float64(frames) * msPerFrame

	if c.primed {
		c.primed = false
		dst = c.dispatchLocked(0, dst)
	}
	next := c.tickMs - c.sinceTickMs
	for next < blockMs {
		offset := int(next / msPerFrame)
		if offset >= frames {
			offset = frames - 1
		}
		c.playhead++
		if c.playhead >= c.totalTicks {
			c.playhead = 0
		}
		c.absTick++
		dst = c.dispatchLocked(offset, dst)
		next += c.tickMs
	}
	c.sinceTickMs = blockMs - (next - c.tickMs)
	return dst
}

func (c *Clock) dispatchLocked(offset int, dst []Trigger) []Trigger {
	n := 0
	for _, off := range c.noteOffs {
		if off.tick <= c.absTick {
			dst = append(dst, Trigger{Offset: offset, NoteID: off.noteID, Release: true})
			continue
		}
		c.noteOffs[n] = off
		n++
	}
	c.noteOffs = c.noteOffs[:n]

	for _, te := range c.byTick[c.playhead] {
		id := c.nextID()
		dst = append(dst, Trigger{Offset: offset, TrackID: te.trackID, Event: te.event, NoteID: id})
		if te.event.DurationTicks > 0 {
			c.noteOffs = append(c.noteOffs, noteOff{tick: c.absTick + int64(te.event.DurationTicks), noteID: id})
		}
	}
	return dst
}
