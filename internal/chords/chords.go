// Package chords derives a chord label table from a corrected file's chord
// track. Read-only view; the document is never modified.
package chords

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/divVerent/midicorrect/internal/document"
)

// Row is one labeled chord onset. Offsets are in quarter beats. A row with
// all labels "N" marks a gap with no sounding chord.
type Row struct {
	OffsetQB float64
	Root     string
	Quality  string
	Bass     string
	LocalKey string
}

var pitchClassNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Chord qualities by interval set above the root. Sevenths are matched
// before triads so a D7 does not collapse to its upper triad.
var triadNames = []string{"M", "m", "o", "+", "sus2", "sus4"}

var triadDegrees = []map[int]bool{
	{0: true, 4: true, 7: true},
	{0: true, 3: true, 7: true},
	{0: true, 3: true, 6: true},
	{0: true, 4: true, 8: true},
	{0: true, 2: true, 7: true},
	{0: true, 5: true, 7: true},
}

var seventhNames = []string{"D7", "M7", "m7", "/o7", "o7", "mM7", "+7"}

var seventhDegrees = []map[int]bool{
	{0: true, 4: true, 7: true, 10: true},
	{0: true, 4: true, 7: true, 11: true},
	{0: true, 3: true, 7: true, 10: true},
	{0: true, 3: true, 6: true, 10: true},
	{0: true, 3: true, 6: true, 9: true},
	{0: true, 3: true, 7: true, 11: true},
	{0: true, 4: true, 8: true, 10: true},
}

type note struct {
	start, end int64
	pitch      uint8
}

// classify returns the root pitch class and quality name for a set of
// pitch classes, or (-1, "other") if no known quality matches.
func classify(pitchClasses map[int]bool) (int, string) {
	if len(pitchClasses) == 0 {
		return -1, "N"
	}
	var pcs []int
	for pc := range pitchClasses {
		pcs = append(pcs, pc)
	}
	sort.Ints(pcs)
	for _, root := range pcs {
		degrees := map[int]bool{}
		for _, pc := range pcs {
			degrees[((pc-root)%12+12)%12] = true
		}
		for i, want := range seventhDegrees {
			if degreesEqual(degrees, want) {
				return root, seventhNames[i]
			}
		}
		for i, want := range triadDegrees {
			if degreesEqual(degrees, want) {
				return root, triadNames[i]
			}
		}
	}
	return -1, "other"
}

func degreesEqual(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// block is one labeled chord span: the notes of a single onset that
// classified to a known quality.
type block struct {
	start, end int64
	root       int
	quality    string
	bass       uint8
}

// Extract labels every chord onset on the chord track. Onsets with no
// recognizable quality are dropped, and gaps are measured between the
// labeled chords that remain.
func Extract(doc *document.Document) ([]Row, error) {
	if err := doc.ValidateRoles(); err != nil {
		return nil, err
	}
	notes, err := chordNotes(doc.Tracks[document.ChordTrack])
	if err != nil {
		return nil, err
	}
	keys := keyTimeline(doc)
	resolution := float64(doc.Resolution())

	byOnset := map[int64][]note{}
	for _, n := range notes {
		byOnset[n.start] = append(byOnset[n.start], n)
	}
	var onsets []int64
	for tick := range byOnset {
		onsets = append(onsets, tick)
	}
	sort.Slice(onsets, func(i, j int) bool { return onsets[i] < onsets[j] })

	var blocks []block
	for _, tick := range onsets {
		group := byOnset[tick]
		pitchClasses := map[int]bool{}
		bass := group[0].pitch
		end := group[0].end
		for _, n := range group {
			pitchClasses[int(n.pitch)%12] = true
			if n.pitch < bass {
				bass = n.pitch
			}
			if n.end > end {
				end = n.end
			}
		}
		root, quality := classify(pitchClasses)
		if root < 0 {
			continue
		}
		blocks = append(blocks, block{start: tick, end: end, root: root, quality: quality, bass: bass})
	}

	var rows []Row
	if len(blocks) == 0 || blocks[0].start > 0 {
		rows = append(rows, gapRow(0))
	}
	for i, b := range blocks {
		rows = append(rows, Row{
			OffsetQB: float64(b.start) / resolution,
			Root:     pitchClassNames[b.root],
			Quality:  b.quality,
			Bass:     pitchClassNames[int(b.bass)%12],
			LocalKey: localKey(keys, b.start),
		})
		// Gap before the next labeled chord?
		if i+1 < len(blocks) && blocks[i+1].start > b.end {
			rows = append(rows, gapRow(float64(b.end)/resolution))
		}
	}
	return rows, nil
}

func gapRow(offsetQB float64) Row {
	return Row{OffsetQB: offsetQB, Root: "N", Quality: "N", Bass: "N", LocalKey: "N"}
}

// chordNotes pairs note-on and note-off events on the chord track.
func chordNotes(track document.Track) ([]note, error) {
	type key struct {
		ch, pitch uint8
	}
	active := map[key]int64{}
	var notes []note
	for _, ev := range track {
		var ch, pitch uint8
		if ev.Message.GetNoteStart(&ch, &pitch, nil) {
			active[key{ch, pitch}] = ev.Tick
			continue
		}
		if ev.Message.GetNoteEnd(&ch, &pitch) {
			k := key{ch, pitch}
			start, ok := active[k]
			if !ok {
				return nil, fmt.Errorf("note off without note on for pitch %d at tick %d", pitch, ev.Tick)
			}
			delete(active, k)
			notes = append(notes, note{start: start, end: ev.Tick, pitch: pitch})
		}
	}
	return notes, nil
}

type keyChange struct {
	tick int64
	key  document.KeySignature
}

// keyTimeline collects key signature events across all tracks in tick order.
func keyTimeline(doc *document.Document) []keyChange {
	var keys []keyChange
	for _, track := range doc.Tracks {
		for _, ev := range track {
			key, ok := document.KeySignatureOf(ev.Message)
			if !ok {
				continue
			}
			keys = append(keys, keyChange{tick: ev.Tick, key: key})
		}
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].tick < keys[j].tick })
	return keys
}

// localKey names the key active at the tick: root name, lowercased for
// minor keys, "C" when the file has no key signature.
func localKey(keys []keyChange, tick int64) string {
	name := "C"
	for _, kc := range keys {
		if kc.tick > tick {
			break
		}
		if kc.key.Minor {
			name = strings.ToLower(kc.key.RootName())
		} else {
			name = kc.key.RootName()
		}
	}
	return name
}

// WriteCSV emits the chord label table in the dataset's column layout.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"offset_qb", "root", "quality", "bass", "local_key"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			fmt.Sprintf("%.4f", r.OffsetQB),
			r.Root, r.Quality, r.Bass, r.LocalKey,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
