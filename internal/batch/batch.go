// Package batch runs the full correction pass: every MIDI file in the
// input directory, paired with its logged operations, written corrected to
// the output directory.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/divVerent/midicorrect/internal/applier"
	"github.com/divVerent/midicorrect/internal/document"
	"github.com/divVerent/midicorrect/internal/opslog"
)

// Config is the explicit configuration of one batch run. No process-wide
// state: everything the driver needs is passed in here.
type Config struct {
	InputDir      string
	OutputDir     string
	OperationsLog string
	// Jobs bounds the per-file worker pool. 0 means one worker per CPU.
	Jobs int
}

// Run applies the operations log to every .mid file in the input directory.
// File-level failures are recorded in the report and never stop the batch;
// only a missing or malformed log aborts the run before any file is touched.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	log, warnings, err := opslog.Load(cfg.OperationsLog)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		slog.Warn("operations log", "warning", w.Error())
	}

	entries, err := os.ReadDir(cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("could not read input directory %v: %v", cfg.InputDir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mid") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if err := os.MkdirAll(cfg.OutputDir, 0o777); err != nil {
		return nil, fmt.Errorf("could not create output directory %v: %v", cfg.OutputDir, err)
	}

	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// One result slot per file; workers never share state beyond the
	// read-only log, so the merge is just the slice itself.
	results := make([]FileResult, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = processFile(cfg, log, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Report{Files: results}, nil
}

func processFile(cfg Config, log opslog.Log, name string) FileResult {
	src := filepath.Join(cfg.InputDir, name)
	dst := filepath.Join(cfg.OutputDir, name)

	data, err := os.ReadFile(src)
	if err != nil {
		return failed(name, fmt.Errorf("could not read: %v", err))
	}

	ops, ok := log[PieceID(name)]
	if !ok || len(ops) == 0 {
		// Pass-through is the default: no logged corrections means the
		// output is the input, byte for byte.
		if err := writeFile(dst, data); err != nil {
			return failed(name, err)
		}
		return FileResult{Name: name, Status: StatusSkipped}
	}

	doc, err := document.Load(data)
	if err != nil {
		return failed(name, err)
	}
	if err := doc.ValidateRoles(); err != nil {
		return failed(name, err)
	}
	if doc.DropAlgorithmicChordTrack() {
		slog.Debug("dropped algorithmic chord track", "file", name)
	}
	if err := applier.Apply(doc, ops); err != nil {
		return failed(name, err)
	}
	out, err := doc.Save()
	if err != nil {
		return failed(name, err)
	}
	if err := writeFile(dst, out); err != nil {
		return failed(name, err)
	}
	return FileResult{Name: name, Status: StatusOK}
}

// writeFile writes via a temporary name and renames into place, so a failed
// file is either absent from the output directory or complete, never
// half-written.
func writeFile(dst string, data []byte) error {
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o666); err != nil {
		return fmt.Errorf("could not write: %v", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("could not write: %v", err)
	}
	return nil
}

func failed(name string, err error) FileResult {
	return FileResult{Name: name, Status: StatusFailed, Err: err}
}

// PieceID resolves the log key for a filename: the stem, with leading
// zeros stripped for the corpus's zero-padded numeric names ("042.mid"
// is logged as "42").
func PieceID(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		return stem
	}
	numeric := true
	for _, r := range stem {
		if r < '0' || r > '9' {
			numeric = false
			break
		}
	}
	if !numeric {
		return stem
	}
	trimmed := strings.TrimLeft(stem, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
