package checksum

import (
	"fmt"
	"net/netip"

	"firestige.xyz/pcapfix/internal/core"
)

// Offsets of the checksum field from the start of each header.
const (
	ipv4ChecksumOffset = 10
	tcpChecksumOffset  = 16
	udpChecksumOffset  = 6
	icmpChecksumOffset = 2

	protocolTCP    = 6
	protocolUDP    = 17
	protocolICMPv6 = 58
)

// SpanError is a per-span failure. It never blocks other spans of the same frame.
type SpanError struct {
	Span int
	Tag  core.Tag
	Err  error
}

func (e SpanError) Error() string {
	return fmt.Sprintf("span %d (%s): %v", e.Span, e.Tag, e.Err)
}

func (e SpanError) Unwrap() error {
	return e.Err
}

// Fields locates the checksum field of every checksum-bearing span in chain.
// Spans that carry a decode error, or that cannot be checksummed, are returned as errors.
func Fields(frame []byte, chain core.HeaderChain, opts Options) ([]core.ChecksumField, []SpanError) {
	var (
		fields []core.ChecksumField
		errs   []SpanError
	)
	for i, span := range chain.Spans {
		if span.Err != nil {
			errs = append(errs, SpanError{Span: i, Tag: span.Tag, Err: span.Err})
			continue
		}
		if !opts.Enabled(span.Tag) {
			continue
		}
		field, err := fieldOf(frame, chain, i)
		if err != nil {
			errs = append(errs, SpanError{Span: i, Tag: span.Tag, Err: err})
			continue
		}
		fields = append(fields, field)
	}
	return fields, errs
}

// fieldOf builds the checksum field of chain.Spans[i].
func fieldOf(frame []byte, chain core.HeaderChain, i int) (core.ChecksumField, error) {
	span := chain.Spans[i]
	field := core.ChecksumField{Span: i, Tag: span.Tag, Start: span.Start}

	switch span.Tag {
	case core.TagIPv4:
		field.Offset = span.Start + ipv4ChecksumOffset
		field.End = span.End
	case core.TagTCP, core.TagUDP, core.TagICMP, core.TagICMPv6:
		field.Offset = span.Start + transportChecksumOffset(span.Tag)
		field.End = span.Limit
	default:
		return field, fmt.Errorf("%s carries no checksum", span.Tag)
	}

	if field.Start < 0 || field.End > len(frame) || field.Offset+2 > field.End {
		return field, fmt.Errorf("checksum range [%d:%d] outside %d-byte frame: %w", field.Start, field.End, len(frame), core.ErrTruncated)
	}

	if span.Tag == core.TagIPv4 || span.Tag == core.TagICMP {
		return field, nil
	}

	pseudo, err := pseudoHeader(frame, chain, i, uint32(field.End-field.Start))
	if err != nil {
		return field, err
	}
	field.Pseudo = pseudo
	return field, nil
}

func transportChecksumOffset(tag core.Tag) int {
	switch tag {
	case core.TagTCP:
		return tcpChecksumOffset
	case core.TagUDP:
		return udpChecksumOffset
	default:
		return icmpChecksumOffset
	}
}

// pseudoHeader reads addresses from the IP span enclosing chain.Spans[i].
func pseudoHeader(frame []byte, chain core.HeaderChain, i int, length uint32) (*core.PseudoHeader, error) {
	tag := chain.Spans[i].Tag
	ipIndex := chain.EnclosingIP(i)
	if ipIndex < 0 {
		return nil, fmt.Errorf("%s without enclosing ip header: %w", tag, core.ErrMissingContext)
	}
	ip := chain.Spans[ipIndex]
	if ip.Err != nil {
		return nil, fmt.Errorf("%s enclosing %s is not parseable: %w", tag, ip.Tag, core.ErrMissingContext)
	}

	var protocol uint8
	switch tag {
	case core.TagTCP:
		protocol = protocolTCP
	case core.TagUDP:
		protocol = protocolUDP
	case core.TagICMPv6:
		if ip.Tag != core.TagIPv6 {
			return nil, fmt.Errorf("icmpv6 inside %s: %w", ip.Tag, core.ErrMissingContext)
		}
		protocol = protocolICMPv6
	}

	var srcOff, dstOff, addrLen int
	if ip.Tag == core.TagIPv4 {
		srcOff, dstOff, addrLen = 12, 16, 4
	} else {
		srcOff, dstOff, addrLen = 8, 24, 16
	}
	if ip.Start+dstOff+addrLen > min(ip.End, len(frame)) {
		return nil, fmt.Errorf("%s header too short for addresses: %w", ip.Tag, core.ErrMissingContext)
	}

	src, _ := netip.AddrFromSlice(frame[ip.Start+srcOff : ip.Start+srcOff+addrLen])
	dst, _ := netip.AddrFromSlice(frame[ip.Start+dstOff : ip.Start+dstOff+addrLen])
	return &core.PseudoHeader{Src: src, Dst: dst, Protocol: protocol, Length: length}, nil
}
