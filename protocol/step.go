package protocol

// AmpMode selects the amplifier clamp mode a step runs under.
type AmpMode int

const (
	VoltageClamp AmpMode = iota
	CurrentClamp
)

var ampModeNames = []string{"Voltage", "Current"}

func (m AmpMode) String() string {
	if m < 0 || int(m) >= len(ampModeNames) {
		return "Unknown"
	}
	return ampModeNames[m]
}

// StepType identifies the waveform primitive a step produces.
type StepType int

const (
	StepTypeStep StepType = iota
	StepTypeRamp
	StepTypeTrain
	StepTypeCurve
)

var stepTypeNames = []string{"Step", "Ramp", "Train", "Curve"}

func (t StepType) String() string {
	if t < 0 || int(t) >= len(stepTypeNames) {
		return "Unknown"
	}
	return stepTypeNames[t]
}

// Step is one waveform primitive within a segment. Durations and pulse width
// are in ms, levels in mV (voltage clamp) or pA (current clamp), pulse rate
// in Hz. The delta fields are added once per sweep index, so a segment with
// several sweeps walks its steps through a family of related waveforms.
type Step struct {
	AmpMode AmpMode
	Type    StepType

	Duration      float64
	DeltaDuration float64

	HoldingLevel1      float64
	DeltaHoldingLevel1 float64
	HoldingLevel2      float64
	DeltaHoldingLevel2 float64

	PulseWidth float64
	PulseRate  float64
}

// DurationAt returns the step duration in ms at the given sweep index.
func (s *Step) DurationAt(sweep int) float64 {
	return s.Duration + s.DeltaDuration*float64(sweep)
}

// Level1At returns the first holding level at the given sweep index.
func (s *Step) Level1At(sweep int) float64 {
	return s.HoldingLevel1 + s.DeltaHoldingLevel1*float64(sweep)
}

// Level2At returns the second holding level at the given sweep index.
func (s *Step) Level2At(sweep int) float64 {
	return s.HoldingLevel2 + s.DeltaHoldingLevel2*float64(sweep)
}

// endTicks returns the number of EXECUTE ticks the step occupies at the given
// sweep for a fixed sample period in ms. The -1 is a legacy tick-accounting
// convention carried over from the original acquisition code; a 10ms step at
// a 1ms period runs for 9 ticks, not 10.
func (s *Step) endTicks(sweep int, period float64) int {
	return int(s.DurationAt(sweep)/period) - 1
}
