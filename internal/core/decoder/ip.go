// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/pcapfix/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = 40

	// Protocol numbers
	protocolICMP   = 1
	protocolTCP    = 6
	protocolUDP    = 17
	protocolICMPv6 = 58
)

// ipv4 decodes an IPv4 header found at offset; end bounds the available bytes.
func (b *builder) ipv4(offset, end int) {
	data := b.frame
	avail := end - offset
	if avail < ipv4HeaderMinLen {
		b.truncated(core.TagIPv4, offset, end, "header needs %d bytes, have %d", ipv4HeaderMinLen, avail)
		return
	}
	if data[offset]>>4 != 4 {
		// Not IPv4 despite the EtherType; leave it undecoded
		return
	}

	// IHL (Internet Header Length) - lower 4 bits of first byte, in 32-bit words
	headerLen := int(data[offset]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen {
		b.truncated(core.TagIPv4, offset, offset+ipv4HeaderMinLen, "header length %d below minimum %d", headerLen, ipv4HeaderMinLen)
		return
	}
	if headerLen > avail {
		b.truncated(core.TagIPv4, offset, end, "header length %d exceeds %d available bytes", headerLen, avail)
		return
	}

	// Total Length (2 bytes at offset 2) must cover the header and fit the buffer
	totalLen := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
	if totalLen < headerLen || totalLen > avail {
		b.truncated(core.TagIPv4, offset, offset+headerLen, "total length %d, header %d, available %d", totalLen, headerLen, avail)
		return
	}

	limit := offset + totalLen
	b.push(core.HeaderSpan{Tag: core.TagIPv4, Start: offset, End: offset + headerLen, Limit: limit})

	if isIPv4Fragment(data[offset:]) {
		// A lone fragment does not carry a verifiable transport checksum
		return
	}

	// Protocol (1 byte at offset 9)
	b.transport(data[offset+9], offset+headerLen, limit)
}

// ipv6 decodes the fixed IPv6 header. Extension headers end the chain.
func (b *builder) ipv6(offset, end int) {
	data := b.frame
	avail := end - offset
	if avail < ipv6HeaderLen {
		b.truncated(core.TagIPv6, offset, end, "header needs %d bytes, have %d", ipv6HeaderLen, avail)
		return
	}
	if data[offset]>>4 != 6 {
		return
	}

	// Payload Length (2 bytes at offset 4)
	payloadLen := int(binary.BigEndian.Uint16(data[offset+4 : offset+6]))
	if ipv6HeaderLen+payloadLen > avail {
		b.truncated(core.TagIPv6, offset, offset+ipv6HeaderLen, "payload length %d exceeds %d available bytes", payloadLen, avail-ipv6HeaderLen)
		return
	}

	limit := offset + ipv6HeaderLen + payloadLen
	b.push(core.HeaderSpan{Tag: core.TagIPv6, Start: offset, End: offset + ipv6HeaderLen, Limit: limit})

	// Next Header (1 byte at offset 6)
	b.transport(data[offset+6], offset+ipv6HeaderLen, limit)
}

// isIPv4Fragment checks the MF flag and fragment offset of an IPv4 header.
func isIPv4Fragment(ipData []byte) bool {
	if len(ipData) < ipv4HeaderMinLen {
		return false
	}
	// Flags and Fragment Offset (2 bytes at offset 6)
	flagsOffset := binary.BigEndian.Uint16(ipData[6:8])
	moreFragments := (flagsOffset & 0x2000) != 0
	fragmentOffset := flagsOffset & 0x1FFF
	return moreFragments || fragmentOffset != 0
}
