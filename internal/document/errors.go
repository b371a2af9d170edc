package document

import "fmt"

// UnsupportedFormatError reports input that is not a standard MIDI file,
// or one using a time format the engine cannot work with.
type UnsupportedFormatError struct {
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %s", e.Reason)
}

// CorruptFileError reports a truncated or otherwise malformed MIDI file.
type CorruptFileError struct {
	Err error
}

func (e *CorruptFileError) Error() string {
	return fmt.Sprintf("corrupt MIDI file: %v", e.Err)
}

func (e *CorruptFileError) Unwrap() error {
	return e.Err
}

// RoleAssignmentError reports a file whose track count does not match the
// corpus layout (score, chords, optional algorithmic chords).
type RoleAssignmentError struct {
	Tracks int
}

func (e *RoleAssignmentError) Error() string {
	return fmt.Sprintf("unexpected track count %d: want 2 or 3 (score, chords, optional algorithmic chords)", e.Tracks)
}
