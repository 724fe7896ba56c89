package protocol

import "sync/atomic"

// SampleBatch is one step's worth of recorded samples plus the cursor values
// identifying where in the protocol it was captured. It is the typed
// replacement for the raw byte token the original acquisition code pushed
// through its FIFO.
type SampleBatch struct {
	Trial   int
	Segment int
	Sweep   int
	Step    int

	// StepStart is the tick at which the step began, relative to run start.
	StepStart int

	// StepStartSweep is the step's offset in ticks when all sweeps of a
	// segment are overlaid on the same time axis.
	StepStartSweep int

	// Period is the sample period in ms the batch was captured at.
	Period float64

	// Samples holds one recorded input sample per EXECUTE tick of the step.
	// The backing array is recycled by the producer once the batch has been
	// consumed, so consumers that keep samples must copy them.
	Samples []float64

	// LastStep marks the final step of the final sweep of the final segment.
	LastStep bool
}

// SampleFIFO is a bounded single-producer/single-consumer queue of sample
// batches crossing from the real-time tick path to a non-real-time consumer.
// The producer side never blocks: a full queue drops the batch and counts
// the drop.
type SampleFIFO struct {
	ch      chan SampleBatch
	dropped atomic.Uint64
}

// NewSampleFIFO returns a FIFO holding up to capacity batches.
func NewSampleFIFO(capacity int) *SampleFIFO {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleFIFO{ch: make(chan SampleBatch, capacity)}
}

// Offer enqueues a batch without blocking, reporting whether it was accepted.
func (f *SampleFIFO) Offer(b SampleBatch) bool {
	select {
	case f.ch <- b:
		return true
	default:
		f.dropped.Add(1)
		return false
	}
}

// Poll dequeues a batch without blocking.
func (f *SampleFIFO) Poll() (SampleBatch, bool) {
	select {
	case b := <-f.ch:
		return b, true
	default:
		return SampleBatch{}, false
	}
}

// C exposes the consumer side for select loops.
func (f *SampleFIFO) C() <-chan SampleBatch {
	return f.ch
}

// Cap returns the queue capacity.
func (f *SampleFIFO) Cap() int {
	return cap(f.ch)
}

// Dropped returns the number of batches dropped on a full queue.
func (f *SampleFIFO) Dropped() uint64 {
	return f.dropped.Load()
}
