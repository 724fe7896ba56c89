package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateStep(t *testing.T) {
	s := &Step{Type: StepTypeStep, HoldingLevel1: -70, Duration: 10}
	for _, tick := range []int{0, 4, 9} {
		v, err := Evaluate(s, 0, tick, 9, 1)
		require.NoError(t, err)
		assert.Equal(t, -70.0, v)
	}

	// Sweep deltas shift the level.
	s.DeltaHoldingLevel1 = 10
	v, err := Evaluate(s, 3, 0, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, -40.0, v)
}

func TestEvaluateRamp(t *testing.T) {
	s := &Step{Type: StepTypeRamp, HoldingLevel1: 0, HoldingLevel2: 10, Duration: 10}
	const endTicks = 10

	v, err := Evaluate(s, 0, 0, endTicks, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v, "ramp starts at level 1")

	v, err = Evaluate(s, 0, endTicks, endTicks, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v, "ramp reaches level 2 at the end tick")

	v, err = Evaluate(s, 0, 5, endTicks, 1)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestEvaluateTrain(t *testing.T) {
	// 2000 Hz at 1 ms per tick yields one pulse every 2 ticks, 1 tick wide.
	s := &Step{Type: StepTypeTrain, HoldingLevel1: 8, PulseWidth: 1, PulseRate: 2000, Duration: 10}
	for tick := 0; tick < 8; tick++ {
		v, err := Evaluate(s, 0, tick, 9, 1)
		require.NoError(t, err)
		if tick%2 == 0 {
			assert.Equal(t, 8.0, v, "tick %d is inside the pulse", tick)
		} else {
			assert.Equal(t, 0.0, v, "tick %d is between pulses", tick)
		}
	}

	// A rate that rounds to zero ticks between pulses cannot run.
	s.PulseRate = 500
	_, err := Evaluate(s, 0, 0, 9, 1)
	assert.ErrorIs(t, err, ErrDegenerateStep)
}

func TestEvaluateCurve(t *testing.T) {
	const endTicks = 10

	rising := &Step{Type: StepTypeCurve, HoldingLevel1: 0, HoldingLevel2: 10, Duration: 10}
	v, err := Evaluate(rising, 0, 0, endTicks, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	v, err = Evaluate(rising, 0, endTicks, endTicks, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
	v, err = Evaluate(rising, 0, 5, endTicks, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v, "rising curve stays below the chord")

	falling := &Step{Type: StepTypeCurve, HoldingLevel1: 10, HoldingLevel2: 0, Duration: 10}
	v, err = Evaluate(falling, 0, 0, endTicks, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
	v, err = Evaluate(falling, 0, endTicks, endTicks, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	v, err = Evaluate(falling, 0, 5, endTicks, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v, "falling curve mirrors the rising one")
}

func TestEvaluateDegenerate(t *testing.T) {
	s := &Step{Type: StepTypeStep, Duration: 0.5}
	_, err := Evaluate(s, 0, 0, s.endTicks(0, 1), 1)
	assert.ErrorIs(t, err, ErrDegenerateStep)

	_, err = Evaluate(s, 0, 0, 0, 1)
	assert.ErrorIs(t, err, ErrDegenerateStep)
}
