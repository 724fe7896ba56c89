package protocol

// Trace is the dry-run output of a protocol: parallel time (ms) and output
// samples, one pair per EXECUTE tick, in exactly the order a real-time run
// would produce them.
type Trace struct {
	Time   []float64
	Output []float64
}

// Len returns the number of samples in the trace.
func (t Trace) Len() int { return len(t.Output) }

type traceCollector struct {
	out []float64
}

func (c *traceCollector) WriteOutput(v float64) {
	c.out = append(c.out, v)
}

// Run replays the protocol outside real time for the given sample period in
// ms and returns the full stimulus trace. It drives the same runner state
// machine and step plans as real-time execution, so the two can never
// diverge. The run covers a single trial and terminates at END; degenerate
// steps and empty protocols surface as errors.
func (p *Protocol) Run(period float64) (Trace, error) {
	c := &traceCollector{}
	r, err := NewRunner(p, RunnerConfig{Period: period, Trials: 1, Output: c})
	if err != nil {
		return Trace{}, err
	}
	if err := r.Start(); err != nil {
		return Trace{}, err
	}

	now := 0.0
	for r.Active() {
		r.Tick(now)
		now += period
	}
	if err := r.Err(); err != nil {
		return Trace{}, err
	}

	// The final END tick forces the output to zero; that sample is a safety
	// write, not part of the stimulus.
	if n := len(c.out); n > 0 {
		c.out = c.out[:n-1]
	}

	tr := Trace{
		Time:   make([]float64, len(c.out)),
		Output: c.out,
	}
	for i := range tr.Time {
		tr.Time[i] = float64(i) * period
	}
	return tr, nil
}
