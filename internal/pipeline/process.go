package pipeline

import (
	"encoding/binary"
	"fmt"
	"time"

	"firestige.xyz/pcapfix/internal/checksum"
	"firestige.xyz/pcapfix/internal/core"
	"firestige.xyz/pcapfix/internal/rewrite"
)

// Outcome says what happened to a frame.
type Outcome string

const (
	OutcomeRewritten   Outcome = "rewritten"   // at least one checksum field changed
	OutcomeUnchanged   Outcome = "unchanged"   // every recomputed checksum already matched
	OutcomeSkipped     Outcome = "skipped"     // rejected by the selector
	OutcomePassthrough Outcome = "passthrough" // not decodable for this link type or too short
)

// FrameSpan is the Span of a diagnostic about the whole frame.
const FrameSpan = -1

// Diagnostic is a non-fatal problem found while normalizing one frame.
type Diagnostic struct {
	Frame  int
	Span   int // index into the frame's header chain, or FrameSpan
	Tag    core.Tag
	Kind   core.ErrorKind
	Detail string
}

func (d Diagnostic) String() string {
	if d.Span == FrameSpan {
		return fmt.Sprintf("frame %d: %s: %s", d.Frame, d.Kind, d.Detail)
	}
	return fmt.Sprintf("frame %d span %d (%s): %s: %s", d.Frame, d.Span, d.Tag, d.Kind, d.Detail)
}

type check struct {
	tag   core.Tag
	fixed bool
}

// result is the outcome of processing one frame, ready to be emitted.
type result struct {
	frame   core.Frame
	outcome Outcome
	checks  []check
	diags   []Diagnostic
	elapsed time.Duration
}

// process decodes f, recomputes its checksums and patches a copy. It only
// reads shared state and may run on any goroutine.
func (p *Pipeline) process(f core.Frame) (r result) {
	r = result{frame: f, outcome: OutcomePassthrough}
	if p.passthrough {
		return r
	}
	if p.cfg.Selector != nil && !p.cfg.Selector.Match(f.Data) {
		r.outcome = OutcomeSkipped
		return r
	}

	start := time.Now()
	defer func() { r.elapsed = time.Since(start) }()

	chain, err := p.decoder.Decode(f.Data)
	if err != nil {
		r.diags = append(r.diags, Diagnostic{
			Frame:  f.Index,
			Span:   FrameSpan,
			Tag:    core.TagOther,
			Kind:   core.KindOf(err),
			Detail: err.Error(),
		})
		return r
	}

	m, errs := checksum.Recompute(f.Data, chain, p.cfg.Checksum)
	for _, e := range errs {
		r.diags = append(r.diags, Diagnostic{
			Frame:  f.Index,
			Span:   e.Span,
			Tag:    e.Tag,
			Kind:   core.KindOf(e.Err),
			Detail: e.Err.Error(),
		})
	}
	for _, e := range m {
		stored := binary.BigEndian.Uint16(f.Data[e.Field.Offset:])
		r.checks = append(r.checks, check{tag: e.Field.Tag, fixed: stored != e.Value})
	}

	if rewrite.Changed(f.Data, m) == 0 {
		r.outcome = OutcomeUnchanged
		return r
	}
	r.frame = f.WithData(rewrite.Apply(f.Data, m))
	r.outcome = OutcomeRewritten
	return r
}
