package pipeline

import (
	"sync/atomic"
)

// Metrics contains the live counters of a run. They may be read while the run
// is in progress.
type Metrics struct {
	Frames      atomic.Uint64
	Bytes       atomic.Uint64
	Rewritten   atomic.Uint64
	Unchanged   atomic.Uint64
	Skipped     atomic.Uint64
	Passthrough atomic.Uint64

	ChecksumsFixed atomic.Uint64
	ChecksumsValid atomic.Uint64
	Diagnostics    atomic.Uint64
}

// Stats is a point-in-time copy of Metrics.
type Stats struct {
	Frames         uint64 `yaml:"frames"`
	Bytes          uint64 `yaml:"bytes"`
	Rewritten      uint64 `yaml:"rewritten"`
	Unchanged      uint64 `yaml:"unchanged"`
	Skipped        uint64 `yaml:"skipped"`
	Passthrough    uint64 `yaml:"passthrough"`
	ChecksumsFixed uint64 `yaml:"checksums_fixed"`
	ChecksumsValid uint64 `yaml:"checksums_valid"`
	Diagnostics    uint64 `yaml:"diagnostics"`
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.Frames.Store(0)
	m.Bytes.Store(0)
	m.Rewritten.Store(0)
	m.Unchanged.Store(0)
	m.Skipped.Store(0)
	m.Passthrough.Store(0)
	m.ChecksumsFixed.Store(0)
	m.ChecksumsValid.Store(0)
	m.Diagnostics.Store(0)
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		Frames:         m.Frames.Load(),
		Bytes:          m.Bytes.Load(),
		Rewritten:      m.Rewritten.Load(),
		Unchanged:      m.Unchanged.Load(),
		Skipped:        m.Skipped.Load(),
		Passthrough:    m.Passthrough.Load(),
		ChecksumsFixed: m.ChecksumsFixed.Load(),
		ChecksumsValid: m.ChecksumsValid.Load(),
		Diagnostics:    m.Diagnostics.Load(),
	}
}

func (m *Metrics) record(r result) {
	m.Frames.Add(1)
	m.Bytes.Add(uint64(len(r.frame.Data)))
	switch r.outcome {
	case OutcomeRewritten:
		m.Rewritten.Add(1)
	case OutcomeUnchanged:
		m.Unchanged.Add(1)
	case OutcomeSkipped:
		m.Skipped.Add(1)
	case OutcomePassthrough:
		m.Passthrough.Add(1)
	}
	for _, c := range r.checks {
		if c.fixed {
			m.ChecksumsFixed.Add(1)
		} else {
			m.ChecksumsValid.Add(1)
		}
	}
	m.Diagnostics.Add(uint64(len(r.diags)))
}
