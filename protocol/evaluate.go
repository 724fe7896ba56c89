package protocol

// stepPlan holds the per-step constants the EXECUTE hot path needs. It is
// rebuilt whenever the runner enters a step, so every value is valid only
// while the step index is unchanged. Keeping the division and level math
// here means value() is pure arithmetic and never fails.
type stepPlan struct {
	stepType StepType

	// level is holdingLevel1 with the sweep delta applied; the baseline for
	// every step type.
	level float64

	// rampIncrement is the per-tick slope for ramps and the curvature
	// coefficient for curves.
	rampIncrement float64

	pulseWidthTicks int
	pulseRateTicks  int

	// endTicks is the number of EXECUTE ticks the step runs for.
	endTicks int
}

// newStepPlan precomputes the constants for one step at one sweep index,
// deriving the tick count from the step duration and the sample period (ms).
// It returns ErrDegenerateStep when the duration rounds to less than one
// tick, so the caller decides the step is unrunnable before any division by
// the tick count can happen.
func newStepPlan(step *Step, sweep int, period float64) (stepPlan, error) {
	return newStepPlanAt(step, sweep, period, step.endTicks(sweep, period))
}

func newStepPlanAt(step *Step, sweep int, period float64, endTicks int) (stepPlan, error) {
	if endTicks <= 0 {
		return stepPlan{}, ErrDegenerateStep
	}
	pl := stepPlan{
		stepType: step.Type,
		level:    step.Level1At(sweep),
		endTicks: endTicks,
	}
	switch step.Type {
	case StepTypeRamp, StepTypeCurve:
		pl.rampIncrement = (step.Level2At(sweep) - pl.level) / float64(endTicks)
	case StepTypeTrain:
		pl.pulseWidthTicks = int(step.PulseWidth / period)
		pl.pulseRateTicks = int(step.PulseRate / (period * 1000))
		if pl.pulseRateTicks <= 0 {
			return stepPlan{}, ErrDegenerateStep
		}
	}
	return pl, nil
}

// value computes the instantaneous output at tick t within the step, in the
// step's native units. t counts EXECUTE ticks from the start of the step.
func (pl *stepPlan) value(t int) float64 {
	switch pl.stepType {
	case StepTypeStep:
		return pl.level
	case StepTypeRamp:
		return pl.level + pl.rampIncrement*float64(t)
	case StepTypeTrain:
		if t%pl.pulseRateTicks < pl.pulseWidthTicks {
			return pl.level
		}
		return 0
	case StepTypeCurve:
		tf, ef := float64(t), float64(pl.endTicks)
		if pl.rampIncrement >= 0 {
			return pl.level + pl.rampIncrement*tf*tf/ef
		}
		return pl.level + 2*pl.rampIncrement*tf - pl.rampIncrement*tf*tf/ef
	}
	return 0
}

// Evaluate computes the instantaneous output of a step at tick t of the
// given sweep, with the step's end tick count supplied by the caller. The
// runner and the dry-run trace use the same plan machinery internally, so
// this is the single source of truth for all waveform math. The period (ms)
// is needed only by trains to derive pulse ticks.
func Evaluate(step *Step, sweep, t, endTicks int, period float64) (float64, error) {
	pl, err := newStepPlanAt(step, sweep, period, endTicks)
	if err != nil {
		return 0, err
	}
	return pl.value(t), nil
}
