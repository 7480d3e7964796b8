// Package checksum computes and verifies IPv4, TCP, UDP, ICMP and ICMPv6 checksums
// directly from frame bytes.
package checksum

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"firestige.xyz/pcapfix/internal/core"
)

// Layers that carry a checksum, in chain order.
var checksumLayers = []core.Tag{core.TagIPv4, core.TagTCP, core.TagUDP, core.TagICMP, core.TagICMPv6}

// Options selects which layers are recomputed.
type Options struct {
	// Layers lists the tags to recompute. Nil means every checksum-bearing layer.
	Layers []core.Tag
}

// Enabled reports whether tag is checksum-bearing and selected.
func (o Options) Enabled(tag core.Tag) bool {
	if !slices.Contains(checksumLayers, tag) {
		return false
	}
	return o.Layers == nil || slices.Contains(o.Layers, tag)
}

// ParseLayers builds Options from layer names such as "ipv4" or "udp".
func ParseLayers(names []string) (Options, error) {
	if len(names) == 0 {
		return Options{}, nil
	}
	layers := make([]core.Tag, 0, len(names))
	for _, name := range names {
		tag, err := core.ParseTag(name)
		if err != nil || !slices.Contains(checksumLayers, tag) {
			return Options{}, fmt.Errorf("%q is not a checksum layer (want one of %s)", name, layerNames())
		}
		layers = append(layers, tag)
	}
	return Options{Layers: layers}, nil
}

func layerNames() string {
	names := make([]string, len(checksumLayers))
	for i, t := range checksumLayers {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

// Entry is a recomputed checksum value for one field.
type Entry struct {
	Field core.ChecksumField
	Value uint16
}

// Map holds recomputed checksums in span order.
type Map []Entry

// Lookup returns the value recomputed for span i.
func (m Map) Lookup(span int) (uint16, bool) {
	for _, e := range m {
		if e.Field.Span == span {
			return e.Value, true
		}
	}
	return 0, false
}

// Recompute computes a fresh checksum for every checksum-bearing span of chain.
// frame is not modified. Embedded ICMP chains are never recomputed.
func Recompute(frame []byte, chain core.HeaderChain, opts Options) (Map, []SpanError) {
	fields, errs := Fields(frame, chain, opts)
	m := make(Map, 0, len(fields))
	for _, f := range fields {
		m = append(m, Entry{Field: f, Value: Compute(frame, f)})
	}
	return m, errs
}

// Compute returns the checksum for field, treating the stored field as zero.
// A UDP result of zero is emitted as 0xFFFF since zero means "no checksum".
func Compute(frame []byte, field core.ChecksumField) uint16 {
	var s Sum
	if p := field.Pseudo; p != nil {
		s.AddAddr(p.Src)
		s.AddAddr(p.Dst)
		s.AddUint32(p.Length)
		s.AddUint16(uint16(p.Protocol))
	}
	s.Write(frame[field.Start:field.Offset])
	s.Write([]byte{0, 0})
	s.Write(frame[field.Offset+2 : field.End])

	sum := s.Checksum()
	if field.Tag == core.TagUDP && sum == 0 {
		return 0xFFFF
	}
	return sum
}

// Status compares the stored and computed value of a checksum field.
type Status struct {
	Field    core.ChecksumField
	Stored   uint16
	Computed uint16
	Embedded bool // field belongs to the packet quoted in an ICMP error
}

// Valid reports whether the stored value is correct. An IPv4 UDP datagram
// with a zero checksum has none and is reported valid.
func (s Status) Valid() bool {
	if s.Field.Tag == core.TagUDP && s.Stored == 0 && s.Field.Pseudo != nil && s.Field.Pseudo.Src.Is4() {
		return true
	}
	return s.Stored == s.Computed
}

// Verify reports stored against computed checksums for chain, plus the IPv4
// header of an embedded chain. Quoted transport headers are clipped and skipped.
func Verify(frame []byte, chain core.HeaderChain) []Status {
	fields, _ := Fields(frame, chain, Options{})
	out := make([]Status, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, status(frame, f, false))
	}

	if chain.Embedded != nil {
		for i, span := range chain.Embedded.Spans {
			if span.Tag != core.TagIPv4 || span.Err != nil {
				continue
			}
			f, err := fieldOf(frame, *chain.Embedded, i)
			if err != nil {
				continue
			}
			out = append(out, status(frame, f, true))
		}
	}
	return out
}

func status(frame []byte, f core.ChecksumField, embedded bool) Status {
	return Status{
		Field:    f,
		Stored:   binary.BigEndian.Uint16(frame[f.Offset:]),
		Computed: Compute(frame, f),
		Embedded: embedded,
	}
}
