package opslog

import "fmt"

// MalformedLogError reports an operations log that cannot be applied:
// unparseable JSON, a record without a recognized kind, or a missing
// required parameter. Always fatal for the whole batch.
type MalformedLogError struct {
	Piece  string
	Index  int // 1-based operation index within the piece, 0 if not applicable
	Reason string
}

func (e *MalformedLogError) Error() string {
	switch {
	case e.Piece != "" && e.Index > 0:
		return fmt.Sprintf("malformed operations log: piece %v, operation %d: %s", e.Piece, e.Index, e.Reason)
	case e.Piece != "":
		return fmt.Sprintf("malformed operations log: piece %v: %s", e.Piece, e.Reason)
	default:
		return fmt.Sprintf("malformed operations log: %s", e.Reason)
	}
}

// DuplicateKeyError reports a piece identifier occurring more than once.
// Non-fatal: the last entry wins, this is surfaced as a warning.
type DuplicateKeyError struct {
	Piece string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("piece %v listed more than once, keeping the last entry", e.Piece)
}
