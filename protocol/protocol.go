// Package protocol implements the clamp stimulation protocol data model and
// the per-tick sequencing state machine that turns a protocol into a stream
// of stimulus samples. A protocol is an ordered list of segments; a segment
// is an ordered list of steps repeated NumSweeps times, with per-sweep deltas
// applied to step durations and levels on every repeat.
package protocol

// Segment is an ordered group of steps repeated NumSweeps times.
type Segment struct {
	Steps     []Step
	NumSweeps int
}

// NewSegment returns an empty segment with a single sweep.
func NewSegment() Segment {
	return Segment{NumSweeps: 1}
}

// Protocol owns the segments of a clamp protocol. The zero value is an empty
// protocol; all edit operations validate their indices, and out-of-range
// deletes and appends are no-ops rather than panics. The runner never mutates
// a Protocol, so edits must not race an active run: either stop the run first
// or swap in a freshly built Protocol between runs.
type Protocol struct {
	Segments []Segment
}

// New returns an empty protocol.
func New() *Protocol {
	return &Protocol{}
}

// AddSegment appends an empty segment with one sweep and no steps.
func (p *Protocol) AddSegment() {
	p.Segments = append(p.Segments, NewSegment())
}

// DeleteSegment removes the segment at segID. Out-of-range indices are a
// no-op.
func (p *Protocol) DeleteSegment(segID int) {
	if segID < 0 || segID >= len(p.Segments) {
		return
	}
	p.Segments = append(p.Segments[:segID], p.Segments[segID+1:]...)
}

// ModifySegment replaces the segment at segID wholesale.
func (p *Protocol) ModifySegment(segID int, seg Segment) error {
	if segID < 0 || segID >= len(p.Segments) {
		return ErrSegmentIndex
	}
	if seg.NumSweeps < 1 {
		seg.NumSweeps = 1
	}
	p.Segments[segID] = seg
	return nil
}

// AddStep appends a default-initialized step to the segment at segID.
// Out-of-range segment indices are a no-op.
func (p *Protocol) AddStep(segID int) {
	if segID < 0 || segID >= len(p.Segments) {
		return
	}
	p.Segments[segID].Steps = append(p.Segments[segID].Steps, Step{})
}

// InsertStep inserts a default-initialized step before position stepID in the
// segment at segID. A stepID at or past the end appends. Out-of-range segment
// indices are a no-op.
func (p *Protocol) InsertStep(segID, stepID int) {
	if segID < 0 || segID >= len(p.Segments) {
		return
	}
	steps := p.Segments[segID].Steps
	if stepID < 0 {
		stepID = 0
	}
	if stepID >= len(steps) {
		p.Segments[segID].Steps = append(steps, Step{})
		return
	}
	steps = append(steps, Step{})
	copy(steps[stepID+1:], steps[stepID:])
	steps[stepID] = Step{}
	p.Segments[segID].Steps = steps
}

// DeleteStep removes the step at stepID from the segment at segID.
// Out-of-range indices are a no-op.
func (p *Protocol) DeleteStep(segID, stepID int) {
	if segID < 0 || segID >= len(p.Segments) {
		return
	}
	steps := p.Segments[segID].Steps
	if stepID < 0 || stepID >= len(steps) {
		return
	}
	p.Segments[segID].Steps = append(steps[:stepID], steps[stepID+1:]...)
}

// ModifyStep replaces the step at segID/stepID wholesale.
func (p *Protocol) ModifyStep(segID, stepID int, step Step) error {
	if segID < 0 || segID >= len(p.Segments) {
		return ErrSegmentIndex
	}
	if stepID < 0 || stepID >= len(p.Segments[segID].Steps) {
		return ErrStepIndex
	}
	p.Segments[segID].Steps[stepID] = step
	return nil
}

// SetSweeps sets the sweep count of the segment at segID. Counts below one
// are clamped to one; out-of-range segment indices are a no-op.
func (p *Protocol) SetSweeps(segID, n int) {
	if segID < 0 || segID >= len(p.Segments) {
		return
	}
	if n < 1 {
		n = 1
	}
	p.Segments[segID].NumSweeps = n
}

// Segment returns the segment at segID. The pointer stays valid only until
// the next structural edit.
func (p *Protocol) Segment(segID int) (*Segment, error) {
	if segID < 0 || segID >= len(p.Segments) {
		return nil, ErrSegmentIndex
	}
	return &p.Segments[segID], nil
}

// Step returns the step at segID/stepID. The pointer stays valid only until
// the next structural edit.
func (p *Protocol) Step(segID, stepID int) (*Step, error) {
	if segID < 0 || segID >= len(p.Segments) {
		return nil, ErrSegmentIndex
	}
	if stepID < 0 || stepID >= len(p.Segments[segID].Steps) {
		return nil, ErrStepIndex
	}
	return &p.Segments[segID].Steps[stepID], nil
}

// NumSegments returns the number of segments.
func (p *Protocol) NumSegments() int {
	return len(p.Segments)
}

// NumSweeps returns the sweep count of the segment at segID, or 0 when the
// index is out of range.
func (p *Protocol) NumSweeps(segID int) int {
	if segID < 0 || segID >= len(p.Segments) {
		return 0
	}
	return p.Segments[segID].NumSweeps
}

// SegmentSize returns the number of steps in the segment at segID, or 0 when
// the index is out of range.
func (p *Protocol) SegmentSize(segID int) int {
	if segID < 0 || segID >= len(p.Segments) {
		return 0
	}
	return len(p.Segments[segID].Steps)
}

// SegmentLength returns the total tick count of the segment at segID for a
// fixed sample period in ms: the sum of base step durations, multiplied by
// the sweep count when withSweeps is true, divided by the period and
// truncated. Per-sweep duration deltas are not included.
func (p *Protocol) SegmentLength(segID int, period float64, withSweeps bool) int {
	if segID < 0 || segID >= len(p.Segments) || period <= 0 {
		return 0
	}
	seg := &p.Segments[segID]
	var total float64
	for i := range seg.Steps {
		total += seg.Steps[i].Duration
	}
	if withSweeps {
		total *= float64(seg.NumSweeps)
	}
	return int(total / period)
}

// Clear removes all segments.
func (p *Protocol) Clear() {
	p.Segments = nil
}

// Empty reports whether the protocol cannot be run: no segments, or a first
// segment with no steps.
func (p *Protocol) Empty() bool {
	return len(p.Segments) == 0 || len(p.Segments[0].Steps) == 0
}
