package protocol

// Mode is the per-tick state of a running protocol.
type Mode int

const (
	ModeSegment Mode = iota
	ModeStep
	ModeExecute
	ModeWait
	ModeEnd
)

var modeNames = []string{"SEGMENT", "STEP", "EXECUTE", "WAIT", "END"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "UNKNOWN"
	}
	return modeNames[m]
}

// OutputSink receives one stimulus sample per tick. Implementations are
// called from the real-time tick path and must not block or allocate; any
// host-owned scaling or junction-potential offset belongs in the sink, not
// in the runner.
type OutputSink interface {
	WriteOutput(v float64)
}

// InputSink supplies the most recent acquired input sample. Called once per
// EXECUTE tick while recording; same non-blocking contract as OutputSink.
type InputSink interface {
	ReadInput() float64
}

// Notifier receives run lifecycle notifications. StartRecording fires when a
// recording run starts and again at every inter-trial WAIT to SEGMENT
// transition, from the tick path, so implementations must not block.
type Notifier interface {
	StartRecording()
}

type discardSink struct{}

func (discardSink) WriteOutput(float64) {}
func (discardSink) ReadInput() float64  { return 0 }

// RunnerConfig carries the host-supplied parameters of one run.
type RunnerConfig struct {
	// Period is the fixed sample period in ms; one tick per period.
	Period float64

	// Trials is the number of full protocol traversals; minimum 1.
	Trials int

	// Interval is the wait between trials in ms.
	Interval float64

	// Record enables input acquisition; requires Input and Plot.
	Record bool

	Output OutputSink
	Input  InputSink
	Plot   *SampleFIFO
	Notify Notifier
}

// Runner walks a protocol one tick at a time: SEGMENT initializes the
// segment counters, STEP precomputes the step plan, EXECUTE produces one
// output sample per tick, and steps, sweeps and segments advance
// innermost-first. The runner only ever reads the protocol; all run state
// lives here. Tick performs no allocation, locking or blocking, so it is
// safe to drive from a hard real-time thread.
type Runner struct {
	proto *Protocol

	period   float64
	trials   int
	interval float64
	output   OutputSink
	input    InputSink
	plot     *SampleFIFO
	notify   Notifier

	mode       Mode
	segmentIdx int
	sweepIdx   int
	stepIdx    int
	trialIdx   int

	numSweeps int
	numSteps  int

	plan     stepPlan
	stepTime int

	// time is ms since run start; stepStart the tick the current step began.
	time      float64
	stepStart int

	// trialEnd is the host clock value captured when a trial finished,
	// compared against Interval while in WAIT.
	trialEnd float64

	recording bool
	active    bool
	err       error

	// data accumulates input samples for the current step. It always points
	// into ring; buffers are preallocated at Start and rotated after every
	// emitted batch so the tick path never allocates. The ring holds two
	// more buffers than the FIFO capacity: at most Cap batches queued, one
	// held by the consumer, one being filled.
	data    []float64
	ring    [][]float64
	ringIdx int
}

// NewRunner attaches a runner to a protocol. The protocol may still be
// edited until Start is called; it must not be edited during a run.
func NewRunner(p *Protocol, cfg RunnerConfig) (*Runner, error) {
	if p == nil {
		return nil, ErrEmptyProtocol
	}
	if cfg.Period <= 0 {
		return nil, ErrDegenerateStep
	}
	if cfg.Trials < 1 {
		cfg.Trials = 1
	}
	if cfg.Output == nil {
		cfg.Output = discardSink{}
	}
	r := &Runner{
		proto:    p,
		period:   cfg.Period,
		trials:   cfg.Trials,
		interval: cfg.Interval,
		output:   cfg.Output,
		input:    cfg.Input,
		plot:     cfg.Plot,
		notify:   cfg.Notify,
	}
	r.recording = cfg.Record && cfg.Input != nil && cfg.Plot != nil
	return r, nil
}

// Start validates the protocol and resets the run state. It must be called
// off the tick path; all allocation happens here.
func (r *Runner) Start() error {
	if r.proto.Empty() {
		return ErrEmptyProtocol
	}
	r.mode = ModeSegment
	r.segmentIdx, r.sweepIdx, r.stepIdx, r.trialIdx = 0, 0, 0, 0
	r.stepTime = 0
	r.time = 0
	r.err = nil
	r.active = true

	if r.recording {
		n := r.plot.Cap() + 2
		maxTicks := r.maxStepTicks()
		r.ring = make([][]float64, n)
		for i := range r.ring {
			r.ring[i] = make([]float64, 0, maxTicks)
		}
		r.ringIdx = 0
		r.data = r.ring[0]
		if r.notify != nil {
			r.notify.StartRecording()
		}
	}
	return nil
}

// maxStepTicks returns the largest EXECUTE tick count any step reaches at
// any sweep. Duration is linear in the sweep index, so only the first and
// last sweep need checking.
func (r *Runner) maxStepTicks() int {
	maxTicks := 1
	for s := range r.proto.Segments {
		seg := &r.proto.Segments[s]
		last := seg.NumSweeps - 1
		if last < 0 {
			last = 0
		}
		for i := range seg.Steps {
			for _, sweep := range [2]int{0, last} {
				if n := seg.Steps[i].endTicks(sweep, r.period); n > maxTicks {
					maxTicks = n
				}
			}
		}
	}
	return maxTicks
}

// Tick advances the run by one sample period. now is the host clock in ms,
// used only for inter-trial wait timing; it must be monotonic across the
// run. Calling Tick on a finished or failed runner is a no-op.
func (r *Runner) Tick(now float64) {
	if !r.active {
		return
	}

	if r.mode == ModeEnd {
		if r.trialIdx < r.trials-1 {
			r.trialIdx++
			r.segmentIdx, r.sweepIdx, r.stepIdx = 0, 0, 0
			r.trialEnd = now
			r.mode = ModeWait
		} else {
			r.active = false
			r.output.WriteOutput(0)
			return
		}
	}

	if r.mode == ModeSegment {
		seg := &r.proto.Segments[r.segmentIdx]
		r.numSweeps = seg.NumSweeps
		if r.numSweeps < 1 {
			r.numSweeps = 1
		}
		r.numSteps = len(seg.Steps)
		if r.numSteps == 0 {
			r.fail(ErrEmptyProtocol)
			return
		}
		r.mode = ModeStep
	}

	if r.mode == ModeStep {
		step := &r.proto.Segments[r.segmentIdx].Steps[r.stepIdx]
		plan, err := newStepPlan(step, r.sweepIdx, r.period)
		if err != nil {
			r.fail(err)
			return
		}
		r.plan = plan
		r.stepTime = 0
		r.stepStart = int(r.time / r.period)
		r.mode = ModeExecute
	}

	if r.mode == ModeExecute {
		r.output.WriteOutput(r.plan.value(r.stepTime))
		if r.recording && len(r.data) < cap(r.data) {
			r.data = append(r.data, r.input.ReadInput())
		}
		r.stepTime++
		if r.stepTime >= r.plan.endTicks {
			r.advanceStep()
		}
	}

	if r.mode == ModeWait {
		if now-r.trialEnd > r.interval {
			r.time = 0
			r.segmentIdx = 0
			if r.recording && r.notify != nil {
				r.notify.StartRecording()
			}
			r.mode = ModeSegment
		}
		return
	}

	r.time += r.period
}

// advanceStep moves the cursors after a completed step: step exhausts before
// sweep, sweep before segment. The order is load-bearing; exported traces
// must match real-time execution sample for sample.
func (r *Runner) advanceStep() {
	trial, seg, sweep, step := r.trialIdx, r.segmentIdx, r.sweepIdx, r.stepIdx

	r.stepIdx++
	r.mode = ModeStep
	if r.stepIdx == r.numSteps {
		r.sweepIdx++
		r.stepIdx = 0
		if r.sweepIdx == r.numSweeps {
			r.segmentIdx++
			r.sweepIdx = 0
			r.mode = ModeSegment
			if r.segmentIdx >= len(r.proto.Segments) {
				r.mode = ModeEnd
			}
		}
	}

	if r.recording {
		r.emitBatch(trial, seg, sweep, step)
	}
}

// emitBatch offers the accumulated samples of the just-finished step to the
// plot FIFO and rotates to the next preallocated buffer. A full FIFO drops
// the batch; the samples are lost but the run is never stalled.
func (r *Runner) emitBatch(trial, seg, sweep, step int) {
	off := 0
	for i := 0; i < seg; i++ {
		off += r.proto.SegmentLength(i, r.period, false)
	}
	steps := r.proto.Segments[seg].Steps
	for i := 0; i < step; i++ {
		off += int(steps[i].Duration / r.period)
	}

	r.plot.Offer(SampleBatch{
		Trial:          trial,
		Segment:        seg,
		Sweep:          sweep,
		Step:           step,
		StepStart:      r.stepStart,
		StepStartSweep: off,
		Period:         r.period,
		Samples:        r.data,
		LastStep:       r.mode == ModeEnd && trial == r.trials-1,
	})

	r.ringIdx = (r.ringIdx + 1) % len(r.ring)
	r.data = r.ring[r.ringIdx][:0]
}

// fail aborts the run cleanly: terminal state, zeroed output, error held for
// the host to read. Nothing is signaled across threads from here.
func (r *Runner) fail(err error) {
	r.err = err
	r.active = false
	r.mode = ModeEnd
	r.output.WriteOutput(0)
}

// Active reports whether the run still accepts ticks.
func (r *Runner) Active() bool { return r.active }

// Err returns the error that aborted the run, if any.
func (r *Runner) Err() error { return r.err }

// Mode returns the current state-machine mode.
func (r *Runner) Mode() Mode { return r.mode }

// Trial returns the zero-based trial cursor.
func (r *Runner) Trial() int { return r.trialIdx }

// SegmentIndex returns the zero-based segment cursor.
func (r *Runner) SegmentIndex() int { return r.segmentIdx }

// SweepIndex returns the zero-based sweep cursor.
func (r *Runner) SweepIndex() int { return r.sweepIdx }

// StepIndex returns the zero-based step cursor.
func (r *Runner) StepIndex() int { return r.stepIdx }

// Elapsed returns ms of protocol time since the current trial started.
func (r *Runner) Elapsed() float64 { return r.time }
