// Package opslog reads the hand-curated metadata correction log: a JSON
// document mapping piece identifiers to ordered lists of edit operations.
// The log is the single source of truth for all corrections; nothing is
// inferred from file content.
package opslog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/divVerent/midicorrect/internal/document"
)

// Log maps a piece identifier to its ordered operations. Read-only after
// loading.
type Log map[string][]Operation

// Operation is one logged edit. The set of kinds is closed: an unknown kind
// in the log is a load error, never silently skipped.
type Operation interface {
	Kind() string
}

// SetTimeSignature replaces the time signature meta event at an exact tick.
type SetTimeSignature struct {
	Tick        int64
	Numerator   uint8
	Denominator uint8
}

func (SetTimeSignature) Kind() string { return "change_time_signature" }

// InsertKeySignature inserts (or replaces) a key signature meta event at a
// tick. The key name is validated and normalized at load time.
type InsertKeySignature struct {
	Tick int64
	Key  document.KeySignature
}

func (InsertKeySignature) Kind() string { return "add_key_change" }

// ShiftStartBeat translates every event in the file by a fixed tick delta.
type ShiftStartBeat struct {
	DeltaTicks int64
}

func (ShiftStartBeat) Kind() string { return "shift_start_beat" }

// rawOperation is the wire form of a log entry. Pointer fields distinguish
// absent from zero.
type rawOperation struct {
	Operation     string   `json:"operation"`
	Tick          *int64   `json:"tick"`
	Numerator     *uint8   `json:"numerator"`
	Denominator   *uint8   `json:"denominator"`
	TimeSignature string   `json:"time_signature"`
	Key           string   `json:"key"`
	DeltaTicks    *int64   `json:"delta_ticks"`
	DeltaBeats    *float64 `json:"delta_beats"`
}

// Load reads the operations log. Duplicate piece identifiers are tolerated
// (the log is incrementally edited by hand): the last entry wins and a
// DuplicateKeyError is returned as a warning. Any other irregularity is a
// MalformedLogError and fatal.
func Load(path string) (Log, []*DuplicateKeyError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read %v: %v", path, err)
	}
	return Parse(data)
}

// Parse decodes log bytes. Token-level decoding so that duplicate piece
// identifiers are observable; encoding/json map decoding would swallow them.
func Parse(data []byte) (Log, []*DuplicateKeyError, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, &MalformedLogError{Reason: fmt.Sprintf("not a JSON document: %v", err)}
	}
	if tok != json.Delim('{') {
		return nil, nil, &MalformedLogError{Reason: fmt.Sprintf("top level must be an object, got %v", tok)}
	}
	log := Log{}
	var warnings []*DuplicateKeyError
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, &MalformedLogError{Reason: fmt.Sprintf("bad piece key: %v", err)}
		}
		piece, ok := keyTok.(string)
		if !ok {
			return nil, nil, &MalformedLogError{Reason: fmt.Sprintf("bad piece key %v", keyTok)}
		}
		var raw []rawOperation
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, &MalformedLogError{Piece: piece, Reason: fmt.Sprintf("operations must be a list of records: %v", err)}
		}
		ops := make([]Operation, 0, len(raw))
		for i, r := range raw {
			op, err := r.decode()
			if err != nil {
				return nil, nil, &MalformedLogError{Piece: piece, Index: i + 1, Reason: err.Error()}
			}
			ops = append(ops, op)
		}
		if _, dup := log[piece]; dup {
			warnings = append(warnings, &DuplicateKeyError{Piece: piece})
		}
		log[piece] = ops
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, &MalformedLogError{Reason: fmt.Sprintf("unterminated document: %v", err)}
	}
	return log, warnings, nil
}

func (r rawOperation) decode() (Operation, error) {
	tick := int64(0)
	if r.Tick != nil {
		tick = *r.Tick
	}
	switch r.Operation {
	case "change_time_signature":
		num, denom := r.Numerator, r.Denominator
		if r.TimeSignature != "" {
			n, d, err := parseMeter(r.TimeSignature)
			if err != nil {
				return nil, err
			}
			num, denom = &n, &d
		}
		if num == nil || denom == nil {
			return nil, fmt.Errorf("change_time_signature needs numerator/denominator or time_signature")
		}
		if *num == 0 || *denom == 0 {
			return nil, fmt.Errorf("invalid time signature %d/%d", *num, *denom)
		}
		return SetTimeSignature{Tick: tick, Numerator: *num, Denominator: *denom}, nil
	case "add_key_change":
		if r.Key == "" {
			return nil, fmt.Errorf("add_key_change needs a key")
		}
		key, err := document.ParseKeyName(r.Key)
		if err != nil {
			return nil, err
		}
		return InsertKeySignature{Tick: tick, Key: key}, nil
	case "shift_start_beat":
		if r.DeltaTicks != nil {
			return ShiftStartBeat{DeltaTicks: *r.DeltaTicks}, nil
		}
		if r.DeltaBeats != nil {
			return ShiftStartBeat{DeltaTicks: int64(*r.DeltaBeats * document.TicksPerBeat)}, nil
		}
		return nil, fmt.Errorf("shift_start_beat needs delta_ticks or delta_beats")
	case "":
		return nil, fmt.Errorf("record has no operation kind")
	default:
		return nil, fmt.Errorf("unknown operation kind %q", r.Operation)
	}
}

func parseMeter(s string) (num, denom uint8, err error) {
	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return 0, 0, fmt.Errorf("time_signature %q not in numerator/denominator form", s)
	}
	var n, d int
	if _, err := fmt.Sscanf(s, "%d/%d", &n, &d); err != nil {
		return 0, 0, fmt.Errorf("time_signature %q not in numerator/denominator form", s)
	}
	if n <= 0 || d <= 0 || n > 255 || d > 255 {
		return 0, 0, fmt.Errorf("time_signature %q out of range", s)
	}
	return uint8(n), uint8(d), nil
}
