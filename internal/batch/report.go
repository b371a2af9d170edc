package batch

import (
	"fmt"
	"io"
)

// Per-file outcome of a batch run.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped-no-ops"
	StatusFailed  = "failed"
)

// FileResult is the outcome for one input file.
type FileResult struct {
	Name   string
	Status string
	Err    error // set iff Status == StatusFailed
}

// Report collects every file's outcome. Files are in input order
// (sorted by name), regardless of worker completion order.
type Report struct {
	Files []FileResult
}

// Failed returns the number of failed files.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Status == StatusFailed {
			n++
		}
	}
	return n
}

func (r *Report) count(status string) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Write prints one line per file and a summary line.
func (r *Report) Write(w io.Writer) error {
	for _, f := range r.Files {
		var err error
		if f.Status == StatusFailed {
			_, err = fmt.Fprintf(w, "%-14s %s: %v\n", f.Status, f.Name, f.Err)
		} else {
			_, err = fmt.Fprintf(w, "%-14s %s\n", f.Status, f.Name)
		}
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "processed %d files: %d ok, %d skipped-no-ops, %d failed\n",
		len(r.Files), r.count(StatusOK), r.count(StatusSkipped), r.Failed())
	return err
}
