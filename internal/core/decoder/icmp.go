// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/pcapfix/internal/core"
)

const (
	icmpHeaderLen = 8

	// Bytes of the original transport header quoted by an ICMP error (RFC 792)
	quotedTransportLen = 8
)

// icmp decodes an ICMP or ICMPv6 header. The message body runs to the end of the
// IP payload and is opaque for checksum purposes.
func (b *builder) icmp(tag core.Tag, offset, end int) {
	avail := end - offset
	if avail < icmpHeaderLen {
		b.truncated(tag, offset, end, "header needs %d bytes, IP payload has %d", icmpHeaderLen, avail)
		return
	}

	b.push(core.HeaderSpan{Tag: tag, Start: offset, End: offset + icmpHeaderLen, Limit: end})

	if !b.embedded || !isICMPError(tag, b.frame[offset]) {
		return
	}
	b.chain.Embedded = decodeQuoted(b.frame, tag, offset+icmpHeaderLen, end)
}

// isICMPError reports whether an ICMP type carries a copy of the offending packet.
func isICMPError(tag core.Tag, typ uint8) bool {
	if tag == core.TagICMPv6 {
		// Destination Unreachable, Packet Too Big, Time Exceeded, Parameter Problem
		return typ >= 1 && typ <= 4
	}
	switch typ {
	case 3, 11, 12: // Destination Unreachable, Time Exceeded, Parameter Problem
		return true
	}
	return false
}

// decodeQuoted decodes the packet quoted in an ICMP error body, one level deep.
// Quoted packets are clipped by design, so headers are cut to the available bytes
// instead of being reported as truncated. Returns nil when no IP header fits.
func decodeQuoted(frame []byte, tag core.Tag, offset, end int) *core.HeaderChain {
	var chain core.HeaderChain
	avail := end - offset

	var (
		protocol  uint8
		headerEnd int
	)
	switch tag {
	case core.TagICMP:
		if avail < ipv4HeaderMinLen || frame[offset]>>4 != 4 {
			return nil
		}
		headerLen := int(frame[offset]&0x0F) * 4
		if headerLen < ipv4HeaderMinLen || headerLen > avail {
			return nil
		}
		totalLen := int(binary.BigEndian.Uint16(frame[offset+2 : offset+4]))
		headerEnd = offset + headerLen
		chain.Spans = append(chain.Spans, core.HeaderSpan{
			Tag:   core.TagIPv4,
			Start: offset,
			End:   headerEnd,
			Limit: min(offset+max(totalLen, headerLen), end),
		})
		protocol = frame[offset+9]
	default:
		if avail < ipv6HeaderLen || frame[offset]>>4 != 6 {
			return nil
		}
		payloadLen := int(binary.BigEndian.Uint16(frame[offset+4 : offset+6]))
		headerEnd = offset + ipv6HeaderLen
		chain.Spans = append(chain.Spans, core.HeaderSpan{
			Tag:   core.TagIPv6,
			Start: offset,
			End:   headerEnd,
			Limit: min(headerEnd+payloadLen, end),
		})
		protocol = frame[offset+6]
	}

	var quotedTag core.Tag
	switch protocol {
	case protocolTCP:
		quotedTag = core.TagTCP
	case protocolUDP:
		quotedTag = core.TagUDP
	case protocolICMP:
		quotedTag = core.TagICMP
	case protocolICMPv6:
		quotedTag = core.TagICMPv6
	}
	if quotedTag != core.TagOther && headerEnd < end {
		spanEnd := min(headerEnd+quotedTransportLen, end)
		chain.Spans = append(chain.Spans, core.HeaderSpan{
			Tag:   quotedTag,
			Start: headerEnd,
			End:   spanEnd,
			Limit: spanEnd,
		})
	}

	if last := chain.End(); last < end {
		chain.Spans = append(chain.Spans, core.HeaderSpan{Tag: core.TagOther, Start: last, End: end, Limit: end})
	}
	return &chain
}
