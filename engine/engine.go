// Package engine drives a protocol runner against acquisition hardware in
// soft real time: a locked OS thread ticks the runner at the sample period
// while a consumer goroutine drains recorded batches to whatever sinks the
// host attached, the way a plot window or disk writer hangs off the
// acquisition FIFO.
package engine

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RTXI/clamp-protocol/debug"
	"github.com/RTXI/clamp-protocol/protocol"
)

// The runner works in protocol units (mV command levels, nA acquired
// current); the device boundary works in volts and amps.
const (
	outputFactor = 1e-3 // mV -> V on the command output
	inputFactor  = 1e9  // A -> nA on the acquired input
)

// drainInterval matches the refresh rate batch consumers historically
// polled the acquisition FIFO at.
const drainInterval = 100 * time.Millisecond

// Config carries the host-side parameters of one hardware run.
type Config struct {
	// Period is the sample period in ms.
	Period float64

	// Trials is the number of full protocol traversals.
	Trials int

	// Interval is the wait between trials in ms.
	Interval float64

	// JunctionPotential in mV is added to every commanded level before the
	// mV to V conversion on the way out.
	JunctionPotential float64

	// Record acquires input samples and fans them out to the batch sinks.
	Record bool

	// FIFOCapacity bounds the batch queue between the tick loop and the
	// consumer; zero means 64.
	FIFOCapacity int
}

// BatchSink consumes recorded batches off the tick path. The engine hands
// each sink its own copy of the samples, so sinks may retain them. A sink
// error is logged and the run continues; acquisition never stalls on a
// consumer.
type BatchSink interface {
	HandleBatch(b protocol.SampleBatch) error
}

// Engine owns one run of a protocol against a device.
type Engine struct {
	cfg    Config
	dev    Device
	runner *protocol.Runner
	fifo   *protocol.SampleFIFO
	sinks  []BatchSink
	cmd    *commandSink
}

// commandSink applies the junction potential and unit scaling between the
// runner and the device output.
type commandSink struct {
	dev      Device
	junction float64
}

func (s *commandSink) WriteOutput(v float64) {
	s.dev.Write((v + s.junction) * outputFactor)
}

type acquireSink struct {
	dev Device
}

func (s *acquireSink) ReadInput() float64 {
	return s.dev.Read() * inputFactor
}

type logNotifier struct{}

func (logNotifier) StartRecording() {
	debug.Log("engine", "recording started")
}

// New wires a protocol, a device and zero or more batch sinks into a
// runnable engine. Config validation mirrors the runner's.
func New(p *protocol.Protocol, dev Device, cfg Config, sinks ...BatchSink) (*Engine, error) {
	if cfg.FIFOCapacity < 1 {
		cfg.FIFOCapacity = 64
	}
	e := &Engine{
		cfg:   cfg,
		dev:   dev,
		sinks: sinks,
		cmd:   &commandSink{dev: dev, junction: cfg.JunctionPotential},
	}

	rc := protocol.RunnerConfig{
		Period:   cfg.Period,
		Trials:   cfg.Trials,
		Interval: cfg.Interval,
		Output:   e.cmd,
		Notify:   logNotifier{},
	}
	if cfg.Record {
		e.fifo = protocol.NewSampleFIFO(cfg.FIFOCapacity)
		rc.Record = true
		rc.Input = &acquireSink{dev: dev}
		rc.Plot = e.fifo
	}

	r, err := protocol.NewRunner(p, rc)
	if err != nil {
		return nil, err
	}
	e.runner = r
	return e, nil
}

// Run executes the protocol to completion, blocking until the run ends, the
// runner fails or the context is canceled. On cancellation the command
// output is forced back to the holding zero before returning.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.runner.Start(); err != nil {
		return err
	}
	debug.Log("engine", "run started: period=%gms trials=%d interval=%gms record=%v",
		e.cfg.Period, e.cfg.Trials, e.cfg.Interval, e.cfg.Record)

	g, ctx := errgroup.WithContext(ctx)
	tickDone := make(chan struct{})

	g.Go(func() error {
		defer close(tickDone)
		return e.tickLoop(ctx)
	})
	g.Go(func() error {
		return e.drainLoop(ctx, tickDone)
	})

	err := g.Wait()
	debug.Log("engine", "run finished: err=%v dropped=%d", err, e.Dropped())
	return err
}

// tickLoop is the soft real-time side: one Tick per period on a locked OS
// thread. The host clock passed to Tick is wall time since loop start in ms.
func (e *Engine) tickLoop(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	period := time.Duration(e.cfg.Period * float64(time.Millisecond))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	start := time.Now()
	for e.runner.Active() {
		select {
		case <-ctx.Done():
			e.cmd.WriteOutput(0)
			return ctx.Err()
		case <-ticker.C:
			now := float64(time.Since(start)) / float64(time.Millisecond)
			e.runner.Tick(now)
		}
	}
	return e.runner.Err()
}

// drainLoop moves batches from the FIFO to the sinks until the tick loop is
// done, then drains whatever is left.
func (e *Engine) drainLoop(ctx context.Context, tickDone <-chan struct{}) error {
	if e.fifo == nil {
		<-tickDone
		return nil
	}

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tickDone:
			e.drain()
			return nil
		case <-ticker.C:
			e.drain()
		}
	}
}

func (e *Engine) drain() {
	for {
		b, ok := e.fifo.Poll()
		if !ok {
			return
		}
		// The runner recycles the batch buffer; sinks get an owned copy.
		samples := make([]float64, len(b.Samples))
		copy(samples, b.Samples)
		b.Samples = samples

		for _, s := range e.sinks {
			if err := s.HandleBatch(b); err != nil {
				debug.Log("engine", "batch sink error: %v", err)
			}
		}
	}
}

// Dropped returns the number of batches lost to a full FIFO so far.
func (e *Engine) Dropped() uint64 {
	if e.fifo == nil {
		return 0
	}
	return e.fifo.Dropped()
}
