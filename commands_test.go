package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RTXI/clamp-protocol/protocol"
)

func writeTestProtocol(t *testing.T) string {
	t.Helper()
	p := protocol.New()
	p.AddSegment()
	p.AddStep(0)
	p.AddStep(0)
	require.NoError(t, p.ModifyStep(0, 0, protocol.Step{Duration: 10, HoldingLevel1: 5}))
	require.NoError(t, p.ModifyStep(0, 1, protocol.Step{Type: protocol.StepTypeRamp, Duration: 10, HoldingLevel1: 5, HoldingLevel2: -20}))

	path := filepath.Join(t.TempDir(), "ladder.csp")
	require.NoError(t, p.SaveFile(path))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := writeTestProtocol(t)
	out, err := runCLI(t, "validate", path, "--period", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 segments")
	assert.Contains(t, out, "18 samples")
}

func TestValidateCommandRejectsDegenerate(t *testing.T) {
	p := protocol.New()
	p.AddSegment()
	p.AddStep(0)
	require.NoError(t, p.ModifyStep(0, 0, protocol.Step{Duration: 0.25}))
	path := filepath.Join(t.TempDir(), "bad.csp")
	require.NoError(t, p.SaveFile(path))

	_, err := runCLI(t, "validate", path)
	assert.ErrorIs(t, err, protocol.ErrDegenerateStep)
}

func TestShowCommand(t *testing.T) {
	path := writeTestProtocol(t)
	out, err := runCLI(t, "show", path)
	require.NoError(t, err)
	assert.Contains(t, out, "segment 1")
	assert.Contains(t, out, "hold 5")
	assert.Contains(t, out, "5 -> -20")
}

func TestExportCommand(t *testing.T) {
	path := writeTestProtocol(t)
	out, err := runCLI(t, "export", path, "--period", "1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 18)
	assert.Equal(t, "0 5", lines[0])
	assert.Equal(t, "1 5", lines[1])
}

func TestExportCommandToFile(t *testing.T) {
	path := writeTestProtocol(t)
	outPath := filepath.Join(t.TempDir(), "trace.dat")
	_, err := runCLI(t, "export", path, "--out", outPath)
	require.NoError(t, err)
	assert.FileExists(t, outPath)
}

func TestPreviewCommand(t *testing.T) {
	path := writeTestProtocol(t)
	out, err := runCLI(t, "preview", path, "--width", "18")
	require.NoError(t, err)
	assert.Contains(t, out, "18 samples")
	assert.Contains(t, out, "range ")
}

func TestCommandsRejectMissingFile(t *testing.T) {
	_, err := runCLI(t, "show", filepath.Join(t.TempDir(), "nope.csp"))
	assert.Error(t, err)
}
