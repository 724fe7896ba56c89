package protocol

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// The .csp document is a hierarchy of segment elements, each carrying its
// sweep count and ordered step elements with decimal-string attributes.
// Missing attributes default to zero; unparseable ones also default to zero
// but are reported so the caller can decide whether to keep the partial load.

type xmlStep struct {
	AmpMode            string `xml:"ampMode,attr"`
	StepType           string `xml:"stepType,attr"`
	StepDuration       string `xml:"stepDuration,attr"`
	DeltaStepDuration  string `xml:"deltaStepDuration,attr"`
	HoldingLevel1      string `xml:"holdingLevel1,attr"`
	DeltaHoldingLevel1 string `xml:"deltaHoldingLevel1,attr"`
	HoldingLevel2      string `xml:"holdingLevel2,attr"`
	DeltaHoldingLevel2 string `xml:"deltaHoldingLevel2,attr"`
	PulseWidth         string `xml:"pulseWidth,attr"`
	PulseRate          string `xml:"pulseRate,attr"`
}

type xmlSegment struct {
	NumSweeps string    `xml:"numSweeps,attr"`
	Steps     []xmlStep `xml:"step"`
}

type xmlProtocol struct {
	XMLName  xml.Name     `xml:"protocol"`
	Segments []xmlSegment `xml:"segment"`
}

// FromDoc parses a protocol document. On malformed numeric attributes the
// returned protocol is still populated (bad attributes read as zero) and the
// error wraps ErrMalformedDocument naming the offenders, so the caller
// chooses between discarding and keeping the partial load.
func FromDoc(data []byte) (*Protocol, error) {
	var doc xmlProtocol
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	p := New()
	var bad []string
	for si, xs := range doc.Segments {
		seg := NewSegment()
		if n := parseInt(xs.NumSweeps, fmt.Sprintf("segment[%d].numSweeps", si), &bad); n > 1 {
			seg.NumSweeps = n
		}
		for ti, xt := range xs.Steps {
			at := func(name string) string { return fmt.Sprintf("segment[%d].step[%d].%s", si, ti, name) }
			step := Step{
				AmpMode:            AmpMode(parseInt(xt.AmpMode, at("ampMode"), &bad)),
				Type:               StepType(parseInt(xt.StepType, at("stepType"), &bad)),
				Duration:           parseFloat(xt.StepDuration, at("stepDuration"), &bad),
				DeltaDuration:      parseFloat(xt.DeltaStepDuration, at("deltaStepDuration"), &bad),
				HoldingLevel1:      parseFloat(xt.HoldingLevel1, at("holdingLevel1"), &bad),
				DeltaHoldingLevel1: parseFloat(xt.DeltaHoldingLevel1, at("deltaHoldingLevel1"), &bad),
				HoldingLevel2:      parseFloat(xt.HoldingLevel2, at("holdingLevel2"), &bad),
				DeltaHoldingLevel2: parseFloat(xt.DeltaHoldingLevel2, at("deltaHoldingLevel2"), &bad),
				PulseWidth:         parseFloat(xt.PulseWidth, at("pulseWidth"), &bad),
				PulseRate:          parseFloat(xt.PulseRate, at("pulseRate"), &bad),
			}
			if step.AmpMode != VoltageClamp && step.AmpMode != CurrentClamp {
				step.AmpMode = VoltageClamp
			}
			if step.Type < StepTypeStep || step.Type > StepTypeCurve {
				step.Type = StepTypeStep
			}
			seg.Steps = append(seg.Steps, step)
		}
		p.Segments = append(p.Segments, seg)
	}

	if len(p.Segments) == 0 {
		return p, fmt.Errorf("%w: document contains no segments", ErrMalformedDocument)
	}
	if len(bad) > 0 {
		return p, fmt.Errorf("%w: unparseable attributes: %s", ErrMalformedDocument, strings.Join(bad, ", "))
	}
	return p, nil
}

// ToDoc serializes the protocol. Floats are formatted with the shortest
// representation that round-trips exactly, so FromDoc(ToDoc(p)) reproduces
// every numeric value bit for bit.
func (p *Protocol) ToDoc() ([]byte, error) {
	doc := xmlProtocol{}
	for i := range p.Segments {
		seg := &p.Segments[i]
		xs := xmlSegment{NumSweeps: strconv.Itoa(seg.NumSweeps)}
		for j := range seg.Steps {
			st := &seg.Steps[j]
			xs.Steps = append(xs.Steps, xmlStep{
				AmpMode:            strconv.Itoa(int(st.AmpMode)),
				StepType:           strconv.Itoa(int(st.Type)),
				StepDuration:       formatFloat(st.Duration),
				DeltaStepDuration:  formatFloat(st.DeltaDuration),
				HoldingLevel1:      formatFloat(st.HoldingLevel1),
				DeltaHoldingLevel1: formatFloat(st.DeltaHoldingLevel1),
				HoldingLevel2:      formatFloat(st.HoldingLevel2),
				DeltaHoldingLevel2: formatFloat(st.DeltaHoldingLevel2),
				PulseWidth:         formatFloat(st.PulseWidth),
				PulseRate:          formatFloat(st.PulseRate),
			})
		}
		doc.Segments = append(doc.Segments, xs)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// LoadFile reads a protocol document from disk.
func LoadFile(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromDoc(data)
}

// SaveFile writes the protocol document to disk.
func (p *Protocol) SaveFile(path string) error {
	data, err := p.ToDoc()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func parseFloat(s, name string, bad *[]string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*bad = append(*bad, name)
		return 0
	}
	return v
}

func parseInt(s, name string, bad *[]string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		*bad = append(*bad, name)
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
