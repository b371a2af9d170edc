package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/divVerent/midicorrect/internal/batch"
	"github.com/divVerent/midicorrect/internal/file"
)

const defaultConfigFile = "midicorrect.yml"

// Shipped defaults match the dataset's directory layout.
var defaultConfig = file.Config{
	InputDir:      "POP909_chord_annotated_cleaned",
	OutputDir:     "POP909_processed",
	OperationsLog: "midi_operations.json",
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigFile string
	Overrides  file.Config
}

// NewRunCommand creates the run command: the full batch correction pass.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply the operations log to every MIDI file",
		Long: `Apply the logged metadata corrections to every MIDI file in the input
directory and write the corrected files to the output directory.

Files without a log entry are copied through unchanged. A file that fails
is reported and left out of the output directory; the batch continues.
Exit code is 0 only if every file succeeded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", defaultConfigFile, "config file name (YAML)")
	cmd.Flags().StringVar(&opts.Overrides.InputDir, "in", "", "input directory (overrides config)")
	cmd.Flags().StringVar(&opts.Overrides.OutputDir, "out", "", "output directory (overrides config)")
	cmd.Flags().StringVar(&opts.Overrides.OperationsLog, "ops", "", "operations log file (overrides config)")
	cmd.Flags().IntVarP(&opts.Overrides.Jobs, "jobs", "j", 0, "parallel workers, 0 = one per CPU")

	return cmd
}

func runBatch(cmd *cobra.Command, opts *RunOptions) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %v", err)
	}
	fsys := os.DirFS(cwd)

	cfg := defaultConfig
	fileCfg, err := file.ReadConfig(fsys, opts.ConfigFile)
	switch {
	case err == nil:
		cfg = file.Merge(cfg, *fileCfg)
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		// No config file is fine unless one was asked for.
	default:
		return &ExitError{Code: ExitCommandError, Message: "failed to read config", Err: err}
	}
	cfg = file.Merge(cfg, opts.Overrides)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting batch", "in", cfg.InputDir, "out", cfg.OutputDir, "ops", cfg.OperationsLog)
	report, err := batch.Run(ctx, batch.Config{
		InputDir:      cfg.InputDir,
		OutputDir:     cfg.OutputDir,
		OperationsLog: cfg.OperationsLog,
		Jobs:          cfg.Jobs,
	})
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "batch aborted", Err: err}
	}

	if err := report.Write(cmd.OutOrStdout()); err != nil {
		return err
	}
	for _, f := range report.Files {
		if f.Status == batch.StatusFailed {
			slog.Error("file failed", "file", f.Name, "error", f.Err)
		}
	}
	if n := report.Failed(); n > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d file(s) failed", n)}
	}
	return nil
}
