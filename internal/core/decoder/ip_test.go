package decoder

import (
	"errors"
	"reflect"
	"testing"

	"firestige.xyz/pcapfix/internal/core"
)

func TestDecodeIPv4WithOptions(t *testing.T) {
	ip := ipv4Header(protocolUDP, 24+8, hostA, hostB)
	ip[0] = 0x46 // IHL 6
	data := concat(
		ethernetHeader(etherTypeIPv4),
		ip,
		[]byte{0x01, 0x01, 0x01, 0x00}, // NOP NOP NOP EOL
		udpHeader(53, 53, 8),
	)

	chain, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertChainInvariants(t, chain, len(data))

	ipSpan := chain.Spans[1]
	if ipSpan.Len() != 24 {
		t.Errorf("Expected 24-byte IPv4 header, got %d", ipSpan.Len())
	}
	if udp := chain.Spans[2]; udp.Tag != core.TagUDP || udp.Start != 38 {
		t.Errorf("Expected udp at 38, got %v", udp)
	}
}

func TestDecodeIPv4TotalLengthExceedsBuffer(t *testing.T) {
	data := concat(
		ethernetHeader(etherTypeIPv4),
		ipv4Header(protocolUDP, 200, hostA, hostB),
		udpHeader(1, 2, 180),
	)

	chain, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertChainInvariants(t, chain, len(data))

	ip := chain.Spans[1]
	if !errors.Is(ip.Err, core.ErrTruncated) {
		t.Fatalf("Expected truncated ipv4 span, got %v", ip.Err)
	}
	if ip.End != 34 {
		t.Errorf("Expected ipv4 header [14:34], got %v", ip)
	}
	if chain.Find(core.TagUDP) != -1 {
		t.Error("Expected decoding to stop after truncated ipv4")
	}
}

func TestDecodeIPv4HeaderLengthBelowMinimum(t *testing.T) {
	ip := ipv4Header(protocolUDP, 28, hostA, hostB)
	ip[0] = 0x44 // IHL 4
	data := concat(ethernetHeader(etherTypeIPv4), ip, udpHeader(1, 2, 8))

	chain, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertChainInvariants(t, chain, len(data))
	if !errors.Is(chain.Spans[1].Err, core.ErrTruncated) {
		t.Errorf("Expected truncated ipv4 span, got %v", chain.Spans[1].Err)
	}
}

func TestDecodeIPv4ShortHeader(t *testing.T) {
	data := concat(ethernetHeader(etherTypeIPv4), []byte{0x45, 0x00, 0x00, 0x14})

	chain, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertChainInvariants(t, chain, len(data))
	if !errors.Is(chain.Spans[1].Err, core.ErrTruncated) {
		t.Errorf("Expected truncated ipv4 span, got %v", chain.Spans[1].Err)
	}
}

func TestDecodeIPv4Fragment(t *testing.T) {
	ip := ipv4Header(protocolUDP, 20+16, hostA, hostB)
	ip[6] = 0x20 // MF
	data := concat(ethernetHeader(etherTypeIPv4), ip, udpHeader(1, 2, 1400), make([]byte, 8))

	chain, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertChainInvariants(t, chain, len(data))

	want := []core.Tag{core.TagEthernet, core.TagIPv4, core.TagOther}
	if got := tags(chain); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected tags %v, got %v", want, got)
	}
	if chain.Spans[1].Err != nil {
		t.Errorf("Fragment header must decode cleanly, got %v", chain.Spans[1].Err)
	}
}

func TestDecodeIPv4VersionMismatch(t *testing.T) {
	ip := ipv4Header(protocolUDP, 28, hostA, hostB)
	ip[0] = 0x65
	data := concat(ethernetHeader(etherTypeIPv4), ip, udpHeader(1, 2, 8))

	chain, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []core.Tag{core.TagEthernet, core.TagOther}
	if got := tags(chain); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected tags %v, got %v", want, got)
	}
}

func TestDecodeIPv4UnknownProtocol(t *testing.T) {
	// GRE
	data := concat(ethernetHeader(etherTypeIPv4), ipv4Header(47, 28, hostA, hostB), make([]byte, 8))

	chain, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertChainInvariants(t, chain, len(data))
	want := []core.Tag{core.TagEthernet, core.TagIPv4, core.TagOther}
	if got := tags(chain); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected tags %v, got %v", want, got)
	}
}

func TestDecodeIPv6UDP(t *testing.T) {
	payload := []byte("hello")
	data := concat(
		ethernetHeader(etherTypeIPv6),
		ipv6Header(protocolUDP, 8+len(payload)),
		udpHeader(4000, 4001, 8+len(payload)),
		payload,
	)

	chain, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertChainInvariants(t, chain, len(data))

	want := []core.Tag{core.TagEthernet, core.TagIPv6, core.TagUDP, core.TagOther}
	if got := tags(chain); !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected tags %v, got %v", want, got)
	}
	if ip := chain.Spans[1]; ip.Start != 14 || ip.End != 54 || ip.Limit != len(data) {
		t.Errorf("Expected ipv6 [14:54] limit %d, got %v limit %d", len(data), ip, ip.Limit)
	}
}

func TestDecodeIPv6PayloadLengthExceedsBuffer(t *testing.T) {
	data := concat(ethernetHeader(etherTypeIPv6), ipv6Header(protocolUDP, 64), udpHeader(1, 2, 64))

	chain, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertChainInvariants(t, chain, len(data))
	if !errors.Is(chain.Spans[1].Err, core.ErrTruncated) {
		t.Errorf("Expected truncated ipv6 span, got %v", chain.Spans[1].Err)
	}
}

func TestDecodeIPv6ExtensionHeader(t *testing.T) {
	// Hop-by-Hop options are not followed
	data := concat(ethernetHeader(etherTypeIPv6), ipv6Header(0, 16), make([]byte, 16))

	chain, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []core.Tag{core.TagEthernet, core.TagIPv6, core.TagOther}
	if got := tags(chain); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected tags %v, got %v", want, got)
	}
}

func TestIsIPv4Fragment(t *testing.T) {
	tests := []struct {
		name  string
		flags [2]byte
		want  bool
	}{
		{"unfragmented", [2]byte{0x00, 0x00}, false},
		{"dont fragment", [2]byte{0x40, 0x00}, false},
		{"more fragments", [2]byte{0x20, 0x00}, true},
		{"last fragment", [2]byte{0x00, 0xB9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := ipv4Header(protocolUDP, 28, hostA, hostB)
			ip[6], ip[7] = tt.flags[0], tt.flags[1]
			if got := isIPv4Fragment(ip); got != tt.want {
				t.Errorf("isIPv4Fragment() = %v, want %v", got, tt.want)
			}
		})
	}

	if isIPv4Fragment([]byte{0x45}) {
		t.Error("short header must not be a fragment")
	}
}
