package protocol

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocRoundTrip(t *testing.T) {
	p := New()
	p.AddSegment()
	p.AddStep(0)
	p.AddStep(0)
	require.NoError(t, p.ModifyStep(0, 0, Step{
		AmpMode:            CurrentClamp,
		Type:               StepTypeRamp,
		Duration:           10.5,
		DeltaDuration:      0.1,
		HoldingLevel1:      -70.25,
		DeltaHoldingLevel1: 1e-3,
		HoldingLevel2:      math.Pi,
		DeltaHoldingLevel2: -2.5,
	}))
	require.NoError(t, p.ModifyStep(0, 1, Step{
		Type:       StepTypeTrain,
		Duration:   100,
		PulseWidth: 0.3,
		PulseRate:  2000,
	}))
	p.SetSweeps(0, 4)
	p.AddSegment()
	p.AddStep(1)
	require.NoError(t, p.ModifyStep(1, 0, Step{Duration: 20, HoldingLevel1: 5}))

	data, err := p.ToDoc()
	require.NoError(t, err)

	got, err := FromDoc(data)
	require.NoError(t, err)
	assert.Equal(t, p, got, "every numeric value survives the round trip exactly")
}

func TestFromDocDefaults(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<protocol>
  <segment>
    <step stepDuration="10"/>
  </segment>
</protocol>`)

	p, err := FromDoc(doc)
	require.NoError(t, err)
	require.Equal(t, 1, p.NumSegments())
	assert.Equal(t, 1, p.NumSweeps(0), "missing sweep count defaults to one")

	step, err := p.Step(0, 0)
	require.NoError(t, err)
	assert.Equal(t, VoltageClamp, step.AmpMode)
	assert.Equal(t, StepTypeStep, step.Type)
	assert.Equal(t, 10.0, step.Duration)
	assert.Zero(t, step.HoldingLevel1, "missing attributes read as zero")
	assert.Zero(t, step.PulseRate)
}

func TestFromDocMalformedAttributes(t *testing.T) {
	doc := []byte(`<protocol>
  <segment numSweeps="2">
    <step stepDuration="bogus" holdingLevel1="5"/>
  </segment>
</protocol>`)

	p, err := FromDoc(doc)
	require.ErrorIs(t, err, ErrMalformedDocument)
	assert.Contains(t, err.Error(), "stepDuration")

	// The partial load is still usable.
	require.NotNil(t, p)
	require.Equal(t, 1, p.NumSegments())
	assert.Equal(t, 2, p.NumSweeps(0))
	step, serr := p.Step(0, 0)
	require.NoError(t, serr)
	assert.Zero(t, step.Duration, "bad attribute reads as zero")
	assert.Equal(t, 5.0, step.HoldingLevel1)
}

func TestFromDocRejectsBrokenDocuments(t *testing.T) {
	_, err := FromDoc([]byte("not xml at all <"))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, err = FromDoc([]byte("<protocol></protocol>"))
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestFromDocClampsEnums(t *testing.T) {
	doc := []byte(`<protocol>
  <segment numSweeps="1">
    <step ampMode="9" stepType="42" stepDuration="10"/>
  </segment>
</protocol>`)

	p, err := FromDoc(doc)
	require.NoError(t, err)
	step, err := p.Step(0, 0)
	require.NoError(t, err)
	assert.Equal(t, VoltageClamp, step.AmpMode)
	assert.Equal(t, StepTypeStep, step.Type)
}

func TestSaveLoadFile(t *testing.T) {
	p := twoStepProtocol(t)
	p.SetSweeps(0, 3)

	path := filepath.Join(t.TempDir(), "ladder.csp")
	require.NoError(t, p.SaveFile(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csp"))
	assert.Error(t, err)
}
