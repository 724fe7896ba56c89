package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/RTXI/clamp-protocol/config"
	"github.com/RTXI/clamp-protocol/debug"
	"github.com/RTXI/clamp-protocol/engine"
	"github.com/RTXI/clamp-protocol/protocol"
	"github.com/RTXI/clamp-protocol/record"
	"github.com/RTXI/clamp-protocol/tui"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
)

func newRootCmd() *cobra.Command {
	var debugLog string

	root := &cobra.Command{
		Use:   "clamp-protocol",
		Short: "Design, preview and run voltage/current clamp stimulation protocols",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("debug-log") {
				return debug.Enable(debugLog)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			debug.Disable()
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&debugLog, "debug-log", "", "write a debug log to this file (empty means the default location)")
	root.PersistentFlags().Lookup("debug-log").NoOptDefVal = debug.DefaultPath()

	root.AddCommand(
		newValidateCmd(),
		newShowCmd(),
		newExportCmd(),
		newPreviewCmd(),
		newRunCmd(),
	)
	return root
}

func newValidateCmd() *cobra.Command {
	var period float64

	cmd := &cobra.Command{
		Use:   "validate <protocol.csp>",
		Short: "Check that a protocol file loads and can run at the given period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := protocol.LoadFile(args[0])
			if err != nil {
				return err
			}
			tr, err := p.Run(period)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf(
				"%s: %d segments, %d samples at %gms (%.1fms total)",
				filepath.Base(args[0]), p.NumSegments(), tr.Len(), period,
				float64(tr.Len())*period)))
			return nil
		},
	}
	cmd.Flags().Float64Var(&period, "period", 1, "sample period in ms")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <protocol.csp>",
		Short: "Print the segments and steps of a protocol file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := protocol.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderProtocol(args[0], p))
			return nil
		},
	}
}

func renderProtocol(path string, p *protocol.Protocol) string {
	var out strings.Builder
	out.WriteString(titleStyle.Render(filepath.Base(path)))
	out.WriteString("\n")
	for s := 0; s < p.NumSegments(); s++ {
		out.WriteString(fmt.Sprintf("segment %d  (%d sweeps)\n", s+1, p.NumSweeps(s)))
		for i := 0; i < p.SegmentSize(s); i++ {
			step, err := p.Step(s, i)
			if err != nil {
				continue
			}
			line := fmt.Sprintf("  %2d  %-7s %-7s %gms", i+1, step.AmpMode, step.Type, step.Duration)
			switch step.Type {
			case protocol.StepTypeStep:
				line += fmt.Sprintf("  hold %g", step.HoldingLevel1)
			case protocol.StepTypeRamp, protocol.StepTypeCurve:
				line += fmt.Sprintf("  %g -> %g", step.HoldingLevel1, step.HoldingLevel2)
			case protocol.StepTypeTrain:
				line += fmt.Sprintf("  %g, %gms pulses @ %gHz", step.HoldingLevel1, step.PulseWidth, step.PulseRate)
			}
			if step.DeltaDuration != 0 || step.DeltaHoldingLevel1 != 0 || step.DeltaHoldingLevel2 != 0 {
				line += dimStyle.Render(fmt.Sprintf("  (Δdur %g, Δ1 %g, Δ2 %g)",
					step.DeltaDuration, step.DeltaHoldingLevel1, step.DeltaHoldingLevel2))
			}
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	return out.String()
}

func newExportCmd() *cobra.Command {
	var period float64
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <protocol.csp>",
		Short: "Write the full stimulus trace as time/value pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := protocol.LoadFile(args[0])
			if err != nil {
				return err
			}
			tr, err := p.Run(period)
			if err != nil {
				return err
			}

			var out strings.Builder
			for i := range tr.Output {
				out.WriteString(strconv.FormatFloat(tr.Time[i], 'g', -1, 64))
				out.WriteByte(' ')
				out.WriteString(strconv.FormatFloat(tr.Output[i], 'g', -1, 64))
				out.WriteByte('\n')
			}
			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), out.String())
				return nil
			}
			return os.WriteFile(outPath, []byte(out.String()), 0644)
		},
	}
	cmd.Flags().Float64Var(&period, "period", 1, "sample period in ms")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var period float64
	var width int

	cmd := &cobra.Command{
		Use:   "preview <protocol.csp>",
		Short: "Render the stimulus trace as a sparkline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := protocol.LoadFile(args[0])
			if err != nil {
				return err
			}
			tr, err := p.Run(period)
			if err != nil {
				return err
			}
			if tr.Len() == 0 {
				return protocol.ErrEmptyProtocol
			}

			lo, hi := tr.Output[0], tr.Output[0]
			for _, v := range tr.Output {
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, titleStyle.Render(filepath.Base(args[0])))
			fmt.Fprintln(w, tui.Sparkline(tr.Output, width))
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf(
				"%d samples, %.1fms, range %g to %g", tr.Len(),
				float64(tr.Len())*period, lo, hi)))
			return nil
		},
	}
	cmd.Flags().Float64Var(&period, "period", 1, "sample period in ms")
	cmd.Flags().IntVar(&width, "width", 72, "sparkline width in cells")
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		period   float64
		trials   int
		interval float64
		junction float64
		rec      bool
		dbPath   string
		monitor  bool
		gainNS   float64
	)

	cmd := &cobra.Command{
		Use:   "run <protocol.csp>",
		Short: "Execute a protocol in real time against the loopback device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("period") {
				cfg.Run.PeriodMS = period
			}
			if cmd.Flags().Changed("trials") {
				cfg.Run.Trials = trials
			}
			if cmd.Flags().Changed("interval") {
				cfg.Run.IntervalMS = interval
			}
			if cmd.Flags().Changed("junction") {
				cfg.Run.JunctionPotentialMV = junction
			}
			if cmd.Flags().Changed("record") {
				cfg.Run.Record = rec
			}

			p, err := protocol.LoadFile(args[0])
			if err != nil {
				return err
			}

			var sinks []engine.BatchSink

			var store *record.Store
			var runID string
			if cfg.Run.Record && dbPath != "" {
				if store, err = record.Open(dbPath); err != nil {
					return err
				}
				defer store.Close()
				runID, err = store.BeginRun(cmd.Context(), record.RunMeta{
					Protocol:            filepath.Base(args[0]),
					PeriodMS:            cfg.Run.PeriodMS,
					Trials:              cfg.Run.Trials,
					JunctionPotentialMV: cfg.Run.JunctionPotentialMV,
				})
				if err != nil {
					return err
				}
				sinks = append(sinks, store.NewWriter(runID))
			}

			var mon *tui.Monitor
			if monitor {
				mon = tui.NewMonitor()
				sinks = append(sinks, mon)
			}

			e, err := engine.New(p, &engine.LoopbackDevice{Gain: gainNS * 1e-9},
				engine.Config{
					Period:            cfg.Run.PeriodMS,
					Trials:            cfg.Run.Trials,
					Interval:          cfg.Run.IntervalMS,
					JunctionPotential: cfg.Run.JunctionPotentialMV,
					Record:            cfg.Run.Record,
					FIFOCapacity:      cfg.Run.FIFOCapacity,
				}, sinks...)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var runErr error
			if mon != nil {
				errCh := make(chan error, 1)
				go func() {
					err := e.Run(ctx)
					mon.Finish(err)
					errCh <- err
				}()
				prog := tea.NewProgram(tui.NewModel(mon, filepath.Base(args[0])))
				if _, err := prog.Run(); err != nil {
					cancel()
					<-errCh
					return err
				}
				cancel()
				runErr = <-errCh
			} else {
				runErr = e.Run(ctx)
			}

			if store != nil {
				if err := store.FinishRun(context.Background(), runID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("recorded run "+runID))
			}
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}

			cfg.UI.LastProtocol = args[0]
			cfg.UI.Monitor = monitor
			if err := cfg.Save(); err != nil {
				debug.Log("cli", "config save: %v", err)
			}
			if dropped := e.Dropped(); dropped > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(
					fmt.Sprintf("warning: %d batches dropped", dropped)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("run complete"))
			return nil
		},
	}
	cmd.Flags().Float64Var(&period, "period", 1, "sample period in ms")
	cmd.Flags().IntVar(&trials, "trials", 1, "number of trials")
	cmd.Flags().Float64Var(&interval, "interval", 1000, "inter-trial interval in ms")
	cmd.Flags().Float64Var(&junction, "junction", 0, "junction potential in mV")
	cmd.Flags().BoolVar(&rec, "record", false, "record acquired input")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database to record into")
	cmd.Flags().BoolVar(&monitor, "monitor", false, "show the live terminal monitor")
	cmd.Flags().Float64Var(&gainNS, "gain", 1, "loopback device conductance in nS")
	return cmd
}
