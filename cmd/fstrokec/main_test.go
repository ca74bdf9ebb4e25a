package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func exitCodeOf(t *testing.T, err error) (int, bool) {
	t.Helper()
	if err == nil {
		return 0, true
	}
	exitErr, ok := err.(cli.ExitCoder)
	require.True(t, ok, "expected a cli.ExitCoder, got %T: %v", err, err)
	return exitErr.ExitCode(), true
}

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.fst")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// TestRunValidProgramExitsZero covers SPEC_FULL.md §8 property 9's "valid
// program" case at the CLI level: run() against a well-formed source file
// succeeds and writes the compiled bytecode.
func TestRunValidProgramExitsZero(t *testing.T) {
	path := writeFixture(t, `(prog ((return 42)))`)
	outPath := filepath.Join(t.TempDir(), "out.ebc")

	err := run(discardLogger(), path, outPath, 32, false)
	require.NoError(t, err)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

// TestRunParseErrorExitsThree covers the "parse error" case: malformed
// s-expression syntax should surface as exit code 3.
func TestRunParseErrorExitsThree(t *testing.T) {
	path := writeFixture(t, `(prog ((return 1))`) // unterminated list
	outPath := filepath.Join(t.TempDir(), "out.ebc")

	err := run(discardLogger(), path, outPath, 32, false)
	require.Error(t, err)
	code, _ := exitCodeOf(t, err)
	require.Equal(t, 3, code)
}

// TestRunCompileErrorExitsFour covers the "compile error" case: a
// well-formed tree that fails lowering (here, a call to an undeclared
// function) should surface as exit code 4.
func TestRunCompileErrorExitsFour(t *testing.T) {
	path := writeFixture(t, `(prog ((return (mystery 1))))`)
	outPath := filepath.Join(t.TempDir(), "out.ebc")

	err := run(discardLogger(), path, outPath, 32, false)
	require.Error(t, err)
	code, _ := exitCodeOf(t, err)
	require.Equal(t, 4, code)
}

// TestRunReadsFromStdinWhenPathIsDashOrEmpty covers SPEC_FULL.md §6's
// documented stdin fallback.
func TestRunReadsFromStdinWhenPathIsDashOrEmpty(t *testing.T) {
	for _, sourcePath := range []string{"", "-"} {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		_, err = w.WriteString(`(prog ((return 1)))`)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		origStdin := os.Stdin
		os.Stdin = r
		outPath := filepath.Join(t.TempDir(), "out.ebc")
		err = run(discardLogger(), sourcePath, outPath, 32, false)
		os.Stdin = origStdin

		require.NoError(t, err)
		out, readErr := os.ReadFile(outPath)
		require.NoError(t, readErr)
		require.NotEmpty(t, out)
	}
}

// TestAppRejectsMoreThanOneArgument covers the CLI-level usage error: more
// than one positional argument is a usage error (exit code 2), not a
// library-level compile error.
func TestAppRejectsMoreThanOneArgument(t *testing.T) {
	app := newApp(discardLogger())
	err := app.Run([]string{"fstrokec", "a.fst", "b.fst"})
	require.Error(t, err)
	code, _ := exitCodeOf(t, err)
	require.Equal(t, 2, code)
}
