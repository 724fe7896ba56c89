package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolEdits(t *testing.T) {
	p := New()
	assert.True(t, p.Empty())
	assert.Equal(t, 0, p.NumSegments())

	p.AddSegment()
	require.Equal(t, 1, p.NumSegments())
	assert.True(t, p.Empty(), "segment without steps is not runnable")
	assert.Equal(t, 1, p.NumSweeps(0))

	p.AddStep(0)
	p.AddStep(0)
	require.Equal(t, 2, p.SegmentSize(0))
	assert.False(t, p.Empty())

	require.NoError(t, p.ModifyStep(0, 0, Step{Duration: 10, HoldingLevel1: 5}))
	require.NoError(t, p.ModifyStep(0, 1, Step{Duration: 20, HoldingLevel1: 6}))

	step, err := p.Step(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, step.Duration)

	p.InsertStep(0, 1)
	require.Equal(t, 3, p.SegmentSize(0))
	mid, err := p.Step(0, 1)
	require.NoError(t, err)
	assert.Equal(t, Step{}, *mid, "inserted step is default-initialized")
	last, err := p.Step(0, 2)
	require.NoError(t, err)
	assert.Equal(t, 20.0, last.Duration, "existing step shifted right")

	p.DeleteStep(0, 1)
	require.Equal(t, 2, p.SegmentSize(0))
	last, err = p.Step(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, last.Duration)

	p.SetSweeps(0, 3)
	assert.Equal(t, 3, p.NumSweeps(0))
	p.SetSweeps(0, 0)
	assert.Equal(t, 1, p.NumSweeps(0), "sweep count clamps to one")

	p.AddSegment()
	require.Equal(t, 2, p.NumSegments())
	p.DeleteSegment(0)
	require.Equal(t, 1, p.NumSegments())
	assert.Equal(t, 0, p.SegmentSize(0), "remaining segment is the empty one")

	p.Clear()
	assert.Equal(t, 0, p.NumSegments())
	assert.True(t, p.Empty())
}

func TestProtocolBounds(t *testing.T) {
	p := New()
	p.AddSegment()
	p.AddStep(0)

	// Out-of-range mutations are no-ops, never panics.
	p.DeleteSegment(-1)
	p.DeleteSegment(5)
	p.AddStep(3)
	p.InsertStep(3, 0)
	p.DeleteStep(0, 7)
	p.DeleteStep(-1, 0)
	p.SetSweeps(9, 4)
	assert.Equal(t, 1, p.NumSegments())
	assert.Equal(t, 1, p.SegmentSize(0))

	_, err := p.Segment(1)
	assert.ErrorIs(t, err, ErrSegmentIndex)
	_, err = p.Step(0, 1)
	assert.ErrorIs(t, err, ErrStepIndex)
	_, err = p.Step(2, 0)
	assert.ErrorIs(t, err, ErrSegmentIndex)

	assert.ErrorIs(t, p.ModifySegment(1, NewSegment()), ErrSegmentIndex)
	assert.ErrorIs(t, p.ModifyStep(0, 3, Step{}), ErrStepIndex)

	assert.Equal(t, 0, p.NumSweeps(6))
	assert.Equal(t, 0, p.SegmentSize(-1))
	assert.Equal(t, 0, p.SegmentLength(4, 1, true))
}

func TestModifySegmentClampsSweeps(t *testing.T) {
	p := New()
	p.AddSegment()
	require.NoError(t, p.ModifySegment(0, Segment{NumSweeps: 0}))
	assert.Equal(t, 1, p.NumSweeps(0))
}

func TestSegmentLength(t *testing.T) {
	p := New()
	p.AddSegment()
	p.AddStep(0)
	p.AddStep(0)
	require.NoError(t, p.ModifyStep(0, 0, Step{Duration: 10}))
	require.NoError(t, p.ModifyStep(0, 1, Step{Duration: 20}))
	p.SetSweeps(0, 3)

	assert.Equal(t, 30, p.SegmentLength(0, 1, false))
	assert.Equal(t, 90, p.SegmentLength(0, 1, true))
	assert.Equal(t, 15, p.SegmentLength(0, 2, false), "length truncates to whole ticks")
	assert.Equal(t, 0, p.SegmentLength(0, 0, true), "non-positive period yields zero")
}

func TestStepSweepScaling(t *testing.T) {
	s := Step{
		Duration: 10, DeltaDuration: 2,
		HoldingLevel1: 5, DeltaHoldingLevel1: 1,
		HoldingLevel2: -20, DeltaHoldingLevel2: -5,
	}
	assert.Equal(t, 10.0, s.DurationAt(0))
	assert.Equal(t, 16.0, s.DurationAt(3))
	assert.Equal(t, 7.0, s.Level1At(2))
	assert.Equal(t, -30.0, s.Level2At(2))

	assert.Equal(t, 9, s.endTicks(0, 1))
	assert.Equal(t, 15, s.endTicks(3, 1), "sweep delta stretches the tick count")
}
