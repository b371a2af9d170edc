package document

import (
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// TicksPerBeat is the timing resolution the corpus is quantized to.
const TicksPerBeat = 24

// Track roles by index, as laid out in the corpus files.
const (
	ScoreTrack = 0
	ChordTrack = 1
)

// Event is a MIDI event at an absolute tick position. Message always holds
// the full message bytes, status byte included.
type Event struct {
	Tick    int64
	Message smf.Message

	// noStatus records that the source file omitted the status byte
	// (running status), so Save can reproduce the exact encoding.
	noStatus bool
}

// Track is an ordered sequence of events. Ticks are non-decreasing.
type Track []Event

// Document is the in-memory form of one MIDI file: the SMF header fields
// plus all tracks converted to absolute ticks.
type Document struct {
	Format     uint16
	TimeFormat smf.TimeFormat
	Tracks     []Track
}

// Resolution returns the number of ticks per quarter note.
func (d *Document) Resolution() int64 {
	if mt, ok := d.TimeFormat.(smf.MetricTicks); ok {
		return int64(mt)
	}
	return TicksPerBeat
}

// ValidateRoles checks the corpus track layout: a score track, a chord
// track, and optionally one algorithmic chord track.
func (d *Document) ValidateRoles() error {
	if len(d.Tracks) != 2 && len(d.Tracks) != 3 {
		return &RoleAssignmentError{Tracks: len(d.Tracks)}
	}
	return nil
}

// DropAlgorithmicChordTrack removes the third track if present. Raw corpus
// files may carry an algorithm-generated chord track; it is discarded before
// corrections apply and never regenerated.
func (d *Document) DropAlgorithmicChordTrack() bool {
	if len(d.Tracks) != 3 {
		return false
	}
	d.Tracks = d.Tracks[:2]
	return true
}

// RemoveMetaAt deletes all meta events of the given type at exactly the
// given tick, in every track. Returns the number of events removed.
func (d *Document) RemoveMetaAt(t midi.Type, tick int64) int {
	removed := 0
	for i, track := range d.Tracks {
		out := track[:0]
		for _, ev := range track {
			if ev.Tick == tick && ev.Message.Is(t) {
				removed++
				continue
			}
			out = append(out, ev)
		}
		d.Tracks[i] = out
	}
	return removed
}

// InsertAt inserts a message into the track at the given tick, after any
// events already at that tick and before the end-of-track event. The
// end-of-track position is pushed out if the tick lies beyond it.
func (tr *Track) InsertAt(tick int64, msg smf.Message) {
	t := *tr
	// Strip the end-of-track event; it is re-appended below.
	var eotTick int64
	if n := len(t); n > 0 && t[n-1].Message.Is(smf.MetaEndOfTrackMsg) {
		eotTick = t[n-1].Tick
		t = t[:n-1]
	} else if n > 0 {
		eotTick = t[n-1].Tick
	}
	pos := len(t)
	for i, ev := range t {
		if ev.Tick > tick {
			pos = i
			break
		}
	}
	t = append(t, Event{})
	copy(t[pos+1:], t[pos:])
	t[pos] = Event{Tick: tick, Message: msg}
	// The inserted event interrupts any running status spanning the
	// position; the next channel event gets its status byte back.
	for i := pos + 1; i < len(t); i++ {
		if b := t[i].Message; len(b) > 0 && b[0] >= 0x80 && b[0] < 0xF0 {
			t[i].noStatus = false
			break
		}
	}
	if tick > eotTick {
		eotTick = tick
	}
	t = append(t, Event{Tick: eotTick, Message: smf.EOT})
	*tr = t
}
