package engine

import (
	"math"
	"sync/atomic"
)

// Device is the acquisition hardware boundary: one analog output carrying
// the command in volts and one analog input carrying the amplifier response
// in amps. Both methods run on the tick loop's locked thread and must not
// block.
type Device interface {
	Write(volts float64)
	Read() float64
}

// LoopbackDevice is a software stand-in for real hardware: Read returns the
// last written command scaled by a fixed conductance, so a recorded run
// captures a faithful copy of its own stimulus. Useful for rehearsing a
// protocol and for tests.
type LoopbackDevice struct {
	// Gain is the response in amps per volt of command; zero means 1 nS.
	Gain float64

	last atomic.Uint64
}

func (d *LoopbackDevice) Write(volts float64) {
	d.last.Store(math.Float64bits(volts))
}

func (d *LoopbackDevice) Read() float64 {
	g := d.Gain
	if g == 0 {
		g = 1e-9
	}
	return math.Float64frombits(d.last.Load()) * g
}
