package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/divVerent/midicorrect/internal/document"
)

func validMIDI(t *testing.T) []byte {
	t.Helper()
	mid := smf.NewSMF1()
	mid.TimeFormat = smf.MetricTicks(document.TicksPerBeat)

	var score smf.Track
	score.Add(0, smf.MetaTimeSig(4, 4, 24, 8))
	score.Add(0, midi.NoteOn(0, 60, 100))
	score.Add(96, midi.NoteOff(0, 60))
	score.Close(0)
	mid.Add(score)

	var chords smf.Track
	chords.Add(0, midi.NoteOn(1, 48, 80))
	chords.Add(0, midi.NoteOn(1, 52, 80))
	chords.Add(0, midi.NoteOn(1, 55, 80))
	chords.Add(48, midi.NoteOff(1, 48))
	chords.Add(0, midi.NoteOff(1, 52))
	chords.Add(0, midi.NoteOff(1, 55))
	chords.Close(0)
	mid.Add(chords)

	var buf bytes.Buffer
	_, err := mid.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(&ExitError{Code: ExitFailure, Message: "x"}))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("plain")))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRunCommandFullSuccess(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	require.NoError(t, os.MkdirAll(in, 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(in, "001.mid"), validMIDI(t), 0o666))
	ops := filepath.Join(root, "ops.json")
	require.NoError(t, os.WriteFile(ops, []byte(`{"1": [{"operation": "shift_start_beat", "delta_ticks": 24}]}`), 0o666))

	out, err := execute(t, "run",
		"--in", in,
		"--out", filepath.Join(root, "out"),
		"--ops", ops)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "001.mid")
}

func TestRunCommandFailureExitCode(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	require.NoError(t, os.MkdirAll(in, 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(in, "001.mid"), []byte("broken"), 0o666))
	ops := filepath.Join(root, "ops.json")
	require.NoError(t, os.WriteFile(ops, []byte(`{"1": [{"operation": "shift_start_beat", "delta_ticks": 24}]}`), 0o666))

	_, err := execute(t, "run",
		"--in", in,
		"--out", filepath.Join(root, "out"),
		"--ops", ops)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRunCommandMalformedLogExitCode(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	require.NoError(t, os.MkdirAll(in, 0o777))
	ops := filepath.Join(root, "ops.json")
	require.NoError(t, os.WriteFile(ops, []byte(`{"1": [{"operation": "explode"}]}`), 0o666))

	_, err := execute(t, "run",
		"--in", in,
		"--out", filepath.Join(root, "out"),
		"--ops", ops)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandMissingExplicitConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", "does-not-exist.yml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestChordsCommand(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "001.mid")
	require.NoError(t, os.WriteFile(path, validMIDI(t), 0o666))

	out, err := execute(t, "chords", path)
	require.NoError(t, err)
	assert.Contains(t, out, "offset_qb,root,quality,bass,local_key")
	assert.Contains(t, out, "C,M,C")
}

func TestChordsCommandToFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "001.mid")
	require.NoError(t, os.WriteFile(path, validMIDI(t), 0o666))
	csvPath := filepath.Join(root, "chords.csv")

	_, err := execute(t, "chords", path, "-o", csvPath)
	require.NoError(t, err)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "offset_qb")
}

func TestChordsCommandMissingFile(t *testing.T) {
	_, err := execute(t, "chords", "does-not-exist.mid")
	require.Error(t, err)
}
