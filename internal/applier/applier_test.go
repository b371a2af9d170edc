package applier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/divVerent/midicorrect/internal/document"
	"github.com/divVerent/midicorrect/internal/opslog"
)

func testDoc() *document.Document {
	return &document.Document{
		TimeFormat: smf.MetricTicks(document.TicksPerBeat),
		Tracks: []document.Track{
			{
				{Tick: 0, Message: smf.MetaTimeSig(4, 4, 24, 8)},
				{Tick: 0, Message: smf.Message(midi.NoteOn(0, 60, 100))},
				{Tick: 96, Message: smf.Message(midi.NoteOff(0, 60))},
				{Tick: 96, Message: smf.EOT},
			},
			{
				{Tick: 0, Message: smf.Message(midi.NoteOn(1, 48, 80))},
				{Tick: 48, Message: smf.Message(midi.NoteOff(1, 48))},
				{Tick: 48, Message: smf.EOT},
			},
		},
	}
}

func saved(t *testing.T, doc *document.Document) []byte {
	t.Helper()
	out, err := doc.Save()
	require.NoError(t, err)
	return out
}

// timeSigTicks lists (tick, numerator) of all time signature events.
func timeSigTicks(doc *document.Document) map[int64]uint8 {
	sigs := map[int64]uint8{}
	for _, track := range doc.Tracks {
		for _, ev := range track {
			var num, denom, cpt, dsqpq uint8
			if ev.Message.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq) {
				sigs[ev.Tick] = num
			}
		}
	}
	return sigs
}

func mustKey(t *testing.T, name string) document.KeySignature {
	t.Helper()
	k, err := document.ParseKeyName(name)
	require.NoError(t, err)
	return k
}

func TestSetTimeSignatureReplacesAtExactTickOnly(t *testing.T) {
	doc := testDoc()
	err := Apply(doc, []opslog.Operation{
		opslog.SetTimeSignature{Tick: 96, Numerator: 3, Denominator: 4},
	})
	require.NoError(t, err)

	sigs := timeSigTicks(doc)
	assert.Equal(t, uint8(4), sigs[0], "signature elsewhere must not change")
	assert.Equal(t, uint8(3), sigs[96])
}

func TestSetTimeSignatureIdempotent(t *testing.T) {
	ops := []opslog.Operation{
		opslog.SetTimeSignature{Tick: 0, Numerator: 3, Denominator: 4},
	}

	once := testDoc()
	require.NoError(t, Apply(once, ops))

	twice := testDoc()
	require.NoError(t, Apply(twice, ops))
	require.NoError(t, Apply(twice, ops))

	assert.Equal(t, saved(t, once), saved(t, twice))
}

func TestInsertKeySignatureIdempotent(t *testing.T) {
	ops := []opslog.Operation{
		opslog.InsertKeySignature{Tick: 48, Key: mustKey(t, "Eb")},
	}

	once := testDoc()
	require.NoError(t, Apply(once, ops))

	twice := testDoc()
	require.NoError(t, Apply(twice, ops))
	require.NoError(t, Apply(twice, ops))

	assert.Equal(t, saved(t, once), saved(t, twice))
}

func TestInsertKeySignatureReplacesAtSameTick(t *testing.T) {
	doc := testDoc()
	require.NoError(t, Apply(doc, []opslog.Operation{
		opslog.InsertKeySignature{Tick: 0, Key: mustKey(t, "G")},
		opslog.InsertKeySignature{Tick: 0, Key: mustKey(t, "Bb")},
	}))

	var got []document.KeySignature
	for _, track := range doc.Tracks {
		for _, ev := range track {
			if key, ok := document.KeySignatureOf(ev.Message); ok {
				got = append(got, key)
			}
		}
	}
	require.Len(t, got, 1, "later declaration at the same tick overrides")
	assert.Equal(t, mustKey(t, "Bb"), got[0])
}

func TestShiftStartBeat(t *testing.T) {
	doc := testDoc()
	require.NoError(t, Apply(doc, []opslog.Operation{
		opslog.ShiftStartBeat{DeltaTicks: 48},
	}))

	score := doc.Tracks[document.ScoreTrack]
	assert.Equal(t, int64(48), score[0].Tick)
	assert.Equal(t, int64(144), score[2].Tick)
}

func TestShiftStartBeatNotIdempotent(t *testing.T) {
	ops := []opslog.Operation{opslog.ShiftStartBeat{DeltaTicks: 24}}

	once := testDoc()
	require.NoError(t, Apply(once, ops))

	twice := testDoc()
	require.NoError(t, Apply(twice, ops))
	require.NoError(t, Apply(twice, ops))

	assert.NotEqual(t, saved(t, once), saved(t, twice),
		"double application of a shift must be detectable")
}

func TestShiftThenSetDiffersFromSetThenShift(t *testing.T) {
	shift := opslog.ShiftStartBeat{DeltaTicks: 48}
	set := opslog.SetTimeSignature{Tick: 96, Numerator: 3, Denominator: 4}

	shiftFirst := testDoc()
	require.NoError(t, Apply(shiftFirst, []opslog.Operation{shift, set}))

	setFirst := testDoc()
	require.NoError(t, Apply(setFirst, []opslog.Operation{set, shift}))

	assert.NotEqual(t, saved(t, shiftFirst), saved(t, setFirst))

	// Ticks are post-prior-operation coordinates: applied after the shift,
	// the new signature lands at 96; applied before, the shift carries it
	// to 144.
	assert.Equal(t, uint8(3), timeSigTicks(shiftFirst)[96])
	assert.Equal(t, uint8(3), timeSigTicks(setFirst)[144])
}

func TestNegativeShiftRejected(t *testing.T) {
	doc := testDoc()
	before := saved(t, doc)

	err := Apply(doc, []opslog.Operation{opslog.ShiftStartBeat{DeltaTicks: -1000}})
	var ise *InvalidShiftError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(-1000), ise.Delta)

	assert.Equal(t, before, saved(t, doc), "rejected shift leaves the document untouched")
}

func TestNegativeShiftWithinRangeAccepted(t *testing.T) {
	doc := testDoc()
	// All events sit at tick >= 0 after shifting back by 0 ticks.
	require.NoError(t, Apply(doc, []opslog.Operation{
		opslog.ShiftStartBeat{DeltaTicks: 24},
		opslog.ShiftStartBeat{DeltaTicks: -24},
	}))
	assert.Equal(t, saved(t, testDoc()), saved(t, doc))
}

func TestApplyReportsOperationIndex(t *testing.T) {
	doc := testDoc()
	err := Apply(doc, []opslog.Operation{
		opslog.ShiftStartBeat{DeltaTicks: 24},
		opslog.ShiftStartBeat{DeltaTicks: -5000},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation 2")
	assert.True(t, errors.As(err, new(*InvalidShiftError)))
}
