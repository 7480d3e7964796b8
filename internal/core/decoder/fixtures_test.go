package decoder

import (
	"encoding/binary"
	"testing"

	"firestige.xyz/pcapfix/internal/core"
)

// ethernetHeader returns a 14-byte Ethernet header with the given EtherType.
func ethernetHeader(etherType uint16) []byte {
	h := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // Dst MAC
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // Src MAC
		0x00, 0x00, // EtherType
	}
	binary.BigEndian.PutUint16(h[12:], etherType)
	return h
}

// ipv4Header returns a 20-byte IPv4 header. Checksum is left zero.
func ipv4Header(protocol uint8, totalLen int, src, dst [4]byte) []byte {
	h := []byte{
		0x45,       // Version 4, IHL 5
		0x00,       // DSCP, ECN
		0x00, 0x00, // Total Length
		0x12, 0x34, // Identification
		0x00, 0x00, // Flags, Fragment Offset
		0x40,       // TTL: 64
		protocol,   // Protocol
		0x00, 0x00, // Checksum
		0, 0, 0, 0, // Src IP
		0, 0, 0, 0, // Dst IP
	}
	binary.BigEndian.PutUint16(h[2:], uint16(totalLen))
	copy(h[12:16], src[:])
	copy(h[16:20], dst[:])
	return h
}

// ipv6Header returns a 40-byte IPv6 header.
func ipv6Header(nextHeader uint8, payloadLen int) []byte {
	h := make([]byte, 40)
	h[0] = 0x60
	binary.BigEndian.PutUint16(h[4:], uint16(payloadLen))
	h[6] = nextHeader
	h[7] = 64
	h[8], h[23] = 0x20, 0x01  // Src 2000::1
	h[24], h[39] = 0x20, 0x02 // Dst 2000::2
	return h
}

// udpHeader returns an 8-byte UDP header.
func udpHeader(src, dst uint16, length int) []byte {
	h := make([]byte, 8)
	binary.BigEndian.PutUint16(h[0:], src)
	binary.BigEndian.PutUint16(h[2:], dst)
	binary.BigEndian.PutUint16(h[4:], uint16(length))
	return h
}

// tcpHeader returns a TCP header with the given data offset (in 32-bit words).
// The returned slice is dataOffset*4 bytes long, or 20 if dataOffset is smaller.
func tcpHeader(src, dst uint16, dataOffset uint8) []byte {
	n := max(int(dataOffset)*4, 20)
	h := make([]byte, n)
	binary.BigEndian.PutUint16(h[0:], src)
	binary.BigEndian.PutUint16(h[2:], dst)
	binary.BigEndian.PutUint32(h[4:], 1) // Seq
	h[12] = dataOffset << 4
	h[13] = 0x18 // PSH, ACK
	binary.BigEndian.PutUint16(h[14:], 0xFFFF)
	return h
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var (
	hostA = [4]byte{192, 168, 1, 75}
	hostB = [4]byte{192, 168, 1, 74}
)

// makeSimpleUDPPacket builds Ethernet/IPv4/UDP with a 4-byte payload.
func makeSimpleUDPPacket() []byte {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	return concat(
		ethernetHeader(etherTypeIPv4),
		ipv4Header(protocolUDP, 20+8+len(payload), hostA, hostB),
		udpHeader(5000, 5001, 8+len(payload)),
		payload,
	)
}

// makeICMPErrorPacket mirrors the icmp_logger fixture: a Destination Unreachable
// quoting an IPv4 echo request with a 10-byte payload.
func makeICMPErrorPacket(icmpType uint8) []byte {
	quotedPayload := []byte("1234567890")
	quotedICMP := []byte{8, 0, 0xAB, 0xCD, 0x00, 0x00, 0x00, 0x02}
	quotedIP := ipv4Header(protocolICMP, 20+8+len(quotedPayload), hostA, hostB)
	quotedIP[10], quotedIP[11] = 0xDE, 0xAD // stale checksum

	icmp := []byte{icmpType, 6, 0, 0, 0, 0, 0, 0}
	body := concat(quotedIP, quotedICMP, quotedPayload)
	return concat(
		ethernetHeader(etherTypeIPv4),
		ipv4Header(protocolICMP, 20+8+len(body), hostA, hostA),
		icmp,
		body,
	)
}

// assertChainInvariants checks that spans tile [0, frameLen) without gaps.
func assertChainInvariants(t *testing.T, chain core.HeaderChain, frameLen int) {
	t.Helper()
	if len(chain.Spans) == 0 {
		t.Fatal("empty chain")
	}
	if chain.Spans[0].Start != 0 {
		t.Errorf("first span starts at %d", chain.Spans[0].Start)
	}
	for i := 1; i < len(chain.Spans); i++ {
		if chain.Spans[i].Start != chain.Spans[i-1].End {
			t.Errorf("span %d starts at %d, previous ends at %d", i, chain.Spans[i].Start, chain.Spans[i-1].End)
		}
	}
	for i, s := range chain.Spans {
		if s.End < s.Start {
			t.Errorf("span %d has negative length: %v", i, s)
		}
		if s.Limit < s.End || s.Limit > frameLen {
			t.Errorf("span %d limit %d out of [%d, %d]", i, s.Limit, s.End, frameLen)
		}
	}
	if end := chain.End(); end != frameLen {
		t.Errorf("chain ends at %d, frame length %d", end, frameLen)
	}
}

// tags returns the tag sequence of a chain.
func tags(chain core.HeaderChain) []core.Tag {
	out := make([]core.Tag, len(chain.Spans))
	for i, s := range chain.Spans {
		out[i] = s.Tag
	}
	return out
}
