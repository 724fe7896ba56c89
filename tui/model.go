// Package tui is a terminal monitor for a running protocol: a live readout
// of the trial, segment, sweep and step cursors plus a sparkline of the most
// recent recorded batch.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/RTXI/clamp-protocol/protocol"
)

// Monitor bridges the engine and the terminal model. It is an engine batch
// sink; a full channel drops the batch rather than slowing the drain loop,
// the monitor only ever shows the latest state anyway.
type Monitor struct {
	batches chan protocol.SampleBatch
	done    chan error
}

func NewMonitor() *Monitor {
	return &Monitor{
		batches: make(chan protocol.SampleBatch, 16),
		done:    make(chan error, 1),
	}
}

// HandleBatch feeds one recorded batch to the display.
func (m *Monitor) HandleBatch(b protocol.SampleBatch) error {
	select {
	case m.batches <- b:
	default:
	}
	return nil
}

// Finish tells the display the run is over. Call once, after the engine
// returns.
func (m *Monitor) Finish(err error) {
	m.done <- err
}

type batchMsg protocol.SampleBatch

type doneMsg struct{ err error }

func listenBatches(m *Monitor) tea.Cmd {
	return func() tea.Msg {
		return batchMsg(<-m.batches)
	}
}

func listenDone(m *Monitor) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{err: <-m.done}
	}
}

type Model struct {
	mon      *Monitor
	title    string
	last     protocol.SampleBatch
	seen     int
	haveLast bool
	finished bool
	err      error
	quitting bool
}

func NewModel(mon *Monitor, title string) Model {
	return Model{mon: mon, title: title}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(listenBatches(m.mon), listenDone(m.mon))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case batchMsg:
		m.last = protocol.SampleBatch(msg)
		m.haveLast = true
		m.seen++
		return m, listenBatches(m.mon)

	case doneMsg:
		m.finished = true
		m.err = msg.err
	}

	return m, nil
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders samples as a fixed-width run of block characters scaled
// to the batch's own min/max.
func Sparkline(samples []float64, width int) string {
	if len(samples) == 0 || width < 1 {
		return ""
	}
	lo, hi := samples[0], samples[0]
	for _, v := range samples {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	var out strings.Builder
	for i := 0; i < width; i++ {
		v := samples[i*len(samples)/width]
		idx := 0
		if span > 0 {
			idx = int((v - lo) / span * float64(len(sparkRunes)-1))
		}
		out.WriteRune(sparkRunes[idx])
	}
	return out.String()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	state := "RUN"
	if m.finished {
		state = "DONE"
		if m.err != nil {
			state = "FAIL"
		}
	}
	header := headerStyle.Render(fmt.Sprintf("%s  %s  batches:%d", m.title, state, m.seen))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	if m.haveLast {
		b := m.last
		out.WriteString(fmt.Sprintf("  trial:%d  segment:%d  sweep:%d  step:%d  t=%.1fms\n",
			b.Trial, b.Segment, b.Sweep, b.Step, float64(b.StepStart)*b.Period))
		out.WriteString("  " + Sparkline(b.Samples, 48) + "\n")
		out.WriteString(dimStyle.Render(fmt.Sprintf("  %d samples @ %gms", len(b.Samples), b.Period)))
		out.WriteString("\n")
	} else {
		out.WriteString(dimStyle.Render("  waiting for first batch..."))
		out.WriteString("\n")
	}

	if m.finished && m.err != nil {
		out.WriteString("\n")
		out.WriteString(errStyle.Render("  " + m.err.Error()))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("q:quit"))
	return out.String()
}
