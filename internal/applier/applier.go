// Package applier applies logged correction operations to a MIDI document.
//
// Operations apply strictly in log order; each operation sees the document
// as left by the previous one. Tick positions in the log are therefore
// authored in post-prior-operation coordinates: a shift changes where a
// later time signature insert lands relative to the original file.
package applier

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/divVerent/midicorrect/internal/document"
	"github.com/divVerent/midicorrect/internal/opslog"
)

// InvalidShiftError reports a shift that would move an event before tick 0.
// Fatal for the file, not the batch.
type InvalidShiftError struct {
	Delta int64
	Tick  int64 // tick of an offending event
}

func (e *InvalidShiftError) Error() string {
	return fmt.Sprintf("shift by %d would move event at tick %d to a negative tick", e.Delta, e.Tick)
}

// Apply mutates doc by applying each operation in order. On error the
// document is in an undefined intermediate state and must be discarded.
func Apply(doc *document.Document, ops []opslog.Operation) error {
	for i, op := range ops {
		var err error
		switch op := op.(type) {
		case opslog.SetTimeSignature:
			err = setTimeSignature(doc, op)
		case opslog.InsertKeySignature:
			err = insertKeySignature(doc, op)
		case opslog.ShiftStartBeat:
			err = shiftStartBeat(doc, op)
		default:
			err = fmt.Errorf("no handler for operation kind %q", op.Kind())
		}
		if err != nil {
			return fmt.Errorf("operation %d (%s): %w", i+1, op.Kind(), err)
		}
	}
	return nil
}

// setTimeSignature replaces the time signature at exactly the target tick.
// Time signature events elsewhere are left alone. The new event goes on the
// score track, where the corpus keeps its signature metadata.
func setTimeSignature(doc *document.Document, op opslog.SetTimeSignature) error {
	if len(doc.Tracks) == 0 {
		return fmt.Errorf("document has no tracks")
	}
	doc.RemoveMetaAt(smf.MetaTimeSigMsg, op.Tick)
	doc.Tracks[document.ScoreTrack].InsertAt(op.Tick, smf.MetaTimeSig(op.Numerator, op.Denominator, 24, 8))
	return nil
}

// insertKeySignature inserts a key signature at the target tick, replacing
// one already there. Re-applying the same log yields the same document.
func insertKeySignature(doc *document.Document, op opslog.InsertKeySignature) error {
	if len(doc.Tracks) == 0 {
		return fmt.Errorf("document has no tracks")
	}
	doc.RemoveMetaAt(smf.MetaKeySigMsg, op.Tick)
	doc.Tracks[document.ScoreTrack].InsertAt(op.Tick, op.Key.Meta())
	return nil
}

// shiftStartBeat translates every event by the delta. Positive inserts
// silence before the first downbeat, negative trims. The whole shift is
// validated before any event moves, so a rejected shift leaves the
// document untouched.
func shiftStartBeat(doc *document.Document, op opslog.ShiftStartBeat) error {
	for _, track := range doc.Tracks {
		for _, ev := range track {
			if ev.Tick+op.DeltaTicks < 0 {
				return &InvalidShiftError{Delta: op.DeltaTicks, Tick: ev.Tick}
			}
		}
	}
	for _, track := range doc.Tracks {
		for i := range track {
			track[i].Tick += op.DeltaTicks
		}
	}
	return nil
}
