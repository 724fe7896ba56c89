package protocol

import "errors"

var (
	// ErrSegmentIndex reports a segment accessor called with an index that is
	// out of range for the current protocol.
	ErrSegmentIndex = errors.New("protocol: segment index out of range")

	// ErrStepIndex reports a step accessor called with an index that is out of
	// range for its segment.
	ErrStepIndex = errors.New("protocol: step index out of range")

	// ErrEmptyProtocol reports an attempt to run a protocol with no segments,
	// or whose first reachable segment contains no steps.
	ErrEmptyProtocol = errors.New("protocol: protocol has no runnable steps")

	// ErrDegenerateStep reports a step whose duration at the current sweep
	// rounds to less than one tick, or a train whose pulse spacing rounds to
	// zero ticks. The runner refuses to execute such a step.
	ErrDegenerateStep = errors.New("protocol: step duration shorter than one tick")

	// ErrMalformedDocument reports a protocol document that is structurally
	// broken or carries attributes that cannot be parsed as numbers.
	ErrMalformedDocument = errors.New("protocol: malformed protocol document")
)
