package document

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"
)

// KeySignature describes a key in circle-of-fifths form, as stored in a
// MIDI key signature meta event.
type KeySignature struct {
	// Root pitch class (0 = C .. 11 = B).
	Root uint8
	// Number of sharps (positive) or flats (negative), -7..7.
	Accidentals int8
	Minor       bool
}

// The annotation log spells some keys with sharps; the corpus convention is
// flats. Same table the curators used while cleaning the annotations.
var sharpToFlat = map[string]string{
	"A#":  "Bb",
	"D#":  "Eb",
	"G#":  "Ab",
	"A#m": "Bbm",
	"D#m": "Ebm",
	"G#m": "Abm",
	"Cbm": "Bm",
	"C#":  "Db",
	"F#":  "Gb",
	"B#":  "C",
	"E#":  "F",
}

type keyInfo struct {
	root uint8
	acc  int8
}

var majorKeys = map[string]keyInfo{
	"C":  {0, 0},
	"G":  {7, 1},
	"D":  {2, 2},
	"A":  {9, 3},
	"E":  {4, 4},
	"B":  {11, 5},
	"F#": {6, 6},
	"C#": {1, 7},
	"F":  {5, -1},
	"Bb": {10, -2},
	"Eb": {3, -3},
	"Ab": {8, -4},
	"Db": {1, -5},
	"Gb": {6, -6},
	"Cb": {11, -7},
}

var minorKeys = map[string]keyInfo{
	"A":  {9, 0},
	"E":  {4, 1},
	"B":  {11, 2},
	"F#": {6, 3},
	"C#": {1, 4},
	"G#": {8, 5},
	"D#": {3, 6},
	"A#": {10, 7},
	"D":  {2, -1},
	"G":  {7, -2},
	"C":  {0, -3},
	"F":  {5, -4},
	"Bb": {10, -5},
	"Eb": {3, -6},
	"Ab": {8, -7},
}

var majorNames = map[int8]string{
	0: "C", 1: "G", 2: "D", 3: "A", 4: "E", 5: "B", 6: "F#", 7: "C#",
	-1: "F", -2: "Bb", -3: "Eb", -4: "Ab", -5: "Db", -6: "Gb", -7: "Cb",
}

var minorNames = map[int8]string{
	0: "A", 1: "E", 2: "B", 3: "F#", 4: "C#", 5: "G#", 6: "D#", 7: "A#",
	-1: "D", -2: "G", -3: "C", -4: "F", -5: "Bb", -6: "Eb", -7: "Ab",
}

// ParseKeyName parses a key name as written in the annotation log: a root
// note like "Eb" or "F#" for major keys, with an "m" suffix for minor keys.
// Sharp spellings are normalized to the corpus's flat convention first.
func ParseKeyName(name string) (KeySignature, error) {
	if flat, ok := sharpToFlat[name]; ok {
		name = flat
	}
	minor := false
	root := name
	if n := len(name); n > 1 && name[n-1] == 'm' {
		minor = true
		root = name[:n-1]
	}
	table := majorKeys
	if minor {
		table = minorKeys
	}
	info, ok := table[root]
	if !ok {
		return KeySignature{}, fmt.Errorf("unknown key name %q", name)
	}
	return KeySignature{Root: info.root, Accidentals: info.acc, Minor: minor}, nil
}

// Name returns the key name in log spelling ("Eb", "Bbm").
func (k KeySignature) Name() string {
	if k.Minor {
		return minorNames[k.Accidentals] + "m"
	}
	return majorNames[k.Accidentals]
}

// RootName returns just the root note name ("Eb", "Bb").
func (k KeySignature) RootName() string {
	if k.Minor {
		return minorNames[k.Accidentals]
	}
	return majorNames[k.Accidentals]
}

// Meta returns the key signature meta event message.
func (k KeySignature) Meta() smf.Message {
	num := k.Accidentals
	flat := num < 0
	if flat {
		num = -num
	}
	return smf.MetaKey(k.Root, !k.Minor, uint8(num), flat)
}

// KeySignatureOf decodes a key signature meta event, reporting false for
// any other message. Decoded from the raw FF 59 02 sf mi bytes.
func KeySignatureOf(msg smf.Message) (KeySignature, bool) {
	if !msg.Is(smf.MetaKeySigMsg) {
		return KeySignature{}, false
	}
	b := msg.Bytes()
	if len(b) < 5 {
		return KeySignature{}, false
	}
	acc := int8(b[3])
	if acc < -7 || acc > 7 {
		return KeySignature{}, false
	}
	minor := b[4] == 1
	names, table := majorNames, majorKeys
	if minor {
		names, table = minorNames, minorKeys
	}
	return KeySignature{
		Root:        table[names[acc]].root,
		Accidentals: acc,
		Minor:       minor,
	}, true
}
