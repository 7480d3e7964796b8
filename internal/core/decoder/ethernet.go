// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/pcapfix/internal/core"
)

const (
	// Ethernet constants
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4

	// EtherType values
	etherTypeIPv4 = 0x0800
	etherTypeARP  = 0x0806
	etherTypeIPv6 = 0x86DD
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8

	arpFixedLen = 8
)

// ethernet decodes the Ethernet header, including VLAN tags, and dispatches on EtherType.
func (b *builder) ethernet() {
	data := b.frame
	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	// VLAN tags are part of the link header (QinQ can nest them)
	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			b.truncated(core.TagEthernet, 0, len(data), "vlan tag at offset %d", offset)
			return
		}
		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	b.push(core.HeaderSpan{Tag: core.TagEthernet, Start: 0, End: offset, Limit: len(data)})

	switch etherType {
	case etherTypeARP:
		b.arp(offset, len(data))
	case etherTypeIPv4:
		b.ipv4(offset, len(data))
	case etherTypeIPv6:
		b.ipv6(offset, len(data))
	}
}

// arp decodes an ARP header. ARP has no checksum, so the chain ends here.
func (b *builder) arp(offset, end int) {
	avail := end - offset
	if avail < arpFixedLen {
		b.truncated(core.TagARP, offset, end, "fixed part needs %d bytes, have %d", arpFixedLen, avail)
		return
	}

	// Hardware and protocol address lengths (offset 4 and 5)
	hlen := int(b.frame[offset+4])
	plen := int(b.frame[offset+5])
	need := arpFixedLen + 2*hlen + 2*plen
	if need > avail {
		b.truncated(core.TagARP, offset, end, "addresses need %d bytes, have %d", need, avail)
		return
	}

	b.push(core.HeaderSpan{Tag: core.TagARP, Start: offset, End: offset + need, Limit: offset + need})
}
