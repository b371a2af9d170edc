package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/divVerent/midicorrect/internal/chords"
	"github.com/divVerent/midicorrect/internal/document"
)

// ChordsOptions holds flags for the chords command.
type ChordsOptions struct {
	*RootOptions
	Output string
}

// NewChordsCommand creates the chords command: a chord label table derived
// from a corrected file's chord track.
func NewChordsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChordsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "chords <file.mid>",
		Short: "Extract the chord label table from a corrected MIDI file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return extractChords(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write CSV to this file instead of stdout")

	return cmd
}

func extractChords(cmd *cobra.Command, opts *ChordsOptions, name string) (err error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("could not read %v: %v", name, err)
	}
	doc, err := document.Load(data)
	if err != nil {
		return fmt.Errorf("could not parse %v: %v", name, err)
	}
	rows, err := chords.Extract(doc)
	if err != nil {
		return fmt.Errorf("could not extract chords from %v: %v", name, err)
	}

	if opts.Output == "" {
		return chords.WriteCSV(cmd.OutOrStdout(), rows)
	}
	f, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("could not create %v: %v", opts.Output, err)
	}
	defer func() {
		closeErr := f.Close()
		if closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return chords.WriteCSV(f, rows)
}
