// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/pcapfix/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
)

// transport dispatches on the IP protocol / next header value.
// Unknown protocols end the chain without error.
func (b *builder) transport(protocol uint8, offset, end int) {
	switch protocol {
	case protocolTCP:
		b.tcp(offset, end)
	case protocolUDP:
		b.udp(offset, end)
	case protocolICMP:
		b.icmp(core.TagICMP, offset, end)
	case protocolICMPv6:
		b.icmp(core.TagICMPv6, offset, end)
	}
}

// tcp decodes a TCP header. The segment extends to the end of the IP payload.
func (b *builder) tcp(offset, end int) {
	avail := end - offset
	if avail < tcpHeaderMinLen {
		b.truncated(core.TagTCP, offset, end, "header needs %d bytes, IP payload has %d", tcpHeaderMinLen, avail)
		return
	}

	// Data Offset (upper 4 bits of byte 12), in 32-bit words
	headerLen := int(b.frame[offset+12]>>4) * 4
	if headerLen < tcpHeaderMinLen {
		b.truncated(core.TagTCP, offset, offset+tcpHeaderMinLen, "data offset %d below minimum %d", headerLen, tcpHeaderMinLen)
		return
	}
	if headerLen > avail {
		b.truncated(core.TagTCP, offset, end, "header length %d exceeds %d available bytes", headerLen, avail)
		return
	}

	b.push(core.HeaderSpan{Tag: core.TagTCP, Start: offset, End: offset + headerLen, Limit: end})
}

// udp decodes a UDP header. The datagram extends as far as its length field says.
func (b *builder) udp(offset, end int) {
	avail := end - offset
	if avail < udpHeaderLen {
		b.truncated(core.TagUDP, offset, end, "header needs %d bytes, IP payload has %d", udpHeaderLen, avail)
		return
	}

	// Length (2 bytes at offset 4) - includes header and data
	length := int(binary.BigEndian.Uint16(b.frame[offset+4 : offset+6]))
	if length < udpHeaderLen || length > avail {
		b.truncated(core.TagUDP, offset, offset+udpHeaderLen, "length field %d, IP payload has %d", length, avail)
		return
	}

	b.push(core.HeaderSpan{Tag: core.TagUDP, Start: offset, End: offset + udpHeaderLen, Limit: offset + length})
}
