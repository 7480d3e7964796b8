// Package decoder implements L2-L4 header chain decoding.
package decoder

import (
	"fmt"

	"firestige.xyz/pcapfix/internal/core"
)

// Decoder decodes raw frames into header chains.
type Decoder interface {
	Decode(frame []byte) (core.HeaderChain, error)
}

// Config controls optional decoding work.
type Config struct {
	// Embedded enables decoding of the packet quoted inside ICMP error messages.
	Embedded bool
}

// StandardDecoder decodes Ethernet frames carrying ARP, IPv4 or IPv6.
type StandardDecoder struct {
	config Config
}

// NewStandardDecoder creates a decoder.
func NewStandardDecoder(cfg Config) *StandardDecoder {
	return &StandardDecoder{config: cfg}
}

// Decode parses frame into a header chain. The only error returned is
// core.ErrFrameTooShort; per-header problems are recorded on the spans.
func (d *StandardDecoder) Decode(frame []byte) (core.HeaderChain, error) {
	if len(frame) < ethernetHeaderLen {
		return core.HeaderChain{}, fmt.Errorf("%d bytes, need %d: %w", len(frame), ethernetHeaderLen, core.ErrFrameTooShort)
	}

	b := builder{frame: frame, embedded: d.config.Embedded}
	b.ethernet()
	b.finish(len(frame))
	return b.chain, nil
}

// Decode parses frame with embedded ICMP decoding enabled.
func Decode(frame []byte) (core.HeaderChain, error) {
	return NewStandardDecoder(Config{Embedded: true}).Decode(frame)
}

// builder accumulates spans over a single frame.
type builder struct {
	frame    []byte
	embedded bool
	chain    core.HeaderChain
}

func (b *builder) push(span core.HeaderSpan) {
	if span.Limit < span.End {
		span.Limit = span.End
	}
	b.chain.Spans = append(b.chain.Spans, span)
}

// truncated records a header that cannot be decoded from the bytes in [start, end)
// and stops the chain there.
func (b *builder) truncated(tag core.Tag, start, end int, format string, args ...any) {
	b.push(core.HeaderSpan{
		Tag:   tag,
		Start: start,
		End:   end,
		Limit: end,
		Err:   fmt.Errorf("%s: %s: %w", tag, fmt.Sprintf(format, args...), core.ErrTruncated),
	})
}

// finish covers any bytes after the last header with an Other span.
func (b *builder) finish(end int) {
	if last := b.chain.End(); last < end {
		b.chain.Spans = append(b.chain.Spans, core.HeaderSpan{
			Tag:   core.TagOther,
			Start: last,
			End:   end,
			Limit: end,
		})
	}
}
