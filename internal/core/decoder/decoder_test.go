package decoder

import (
	"errors"
	"reflect"
	"testing"

	"firestige.xyz/pcapfix/internal/core"
)

func TestStandardDecoderDecode(t *testing.T) {
	decoder := NewStandardDecoder(Config{})
	packet := makeSimpleUDPPacket()

	chain, err := decoder.Decode(packet)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertChainInvariants(t, chain, len(packet))

	want := []core.Tag{core.TagEthernet, core.TagIPv4, core.TagUDP, core.TagOther}
	if got := tags(chain); !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected tags %v, got %v", want, got)
	}

	eth, ip, udp := chain.Spans[0], chain.Spans[1], chain.Spans[2]
	if eth.Start != 0 || eth.End != 14 {
		t.Errorf("Expected ethernet [0:14], got %v", eth)
	}
	if ip.Start != 14 || ip.End != 34 || ip.Limit != 46 {
		t.Errorf("Expected ipv4 [14:34] limit 46, got %v limit %d", ip, ip.Limit)
	}
	if udp.Start != 34 || udp.End != 42 || udp.Limit != 46 {
		t.Errorf("Expected udp [34:42] limit 46, got %v limit %d", udp, udp.Limit)
	}
	for i, s := range chain.Spans {
		if s.Err != nil {
			t.Errorf("span %d: unexpected error %v", i, s.Err)
		}
	}
}

func TestStandardDecoderEmptyPacket(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	_, err := decoder.Decode([]byte{})
	if !errors.Is(err, core.ErrFrameTooShort) {
		t.Errorf("Expected ErrFrameTooShort for empty packet, got %v", err)
	}
}

func TestStandardDecoderTooShort(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	_, err := decoder.Decode(make([]byte, 13))
	if !errors.Is(err, core.ErrFrameTooShort) {
		t.Errorf("Expected ErrFrameTooShort, got %v", err)
	}
}

func TestDecodeTrailingPadding(t *testing.T) {
	// Ethernet pads short frames to 60 bytes; padding is not part of the IP packet
	packet := makeSimpleUDPPacket()
	padded := append(packet, make([]byte, 60-len(packet))...)

	chain, err := Decode(padded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertChainInvariants(t, chain, len(padded))

	udp := chain.Spans[chain.Find(core.TagUDP)]
	if udp.Limit != len(packet) {
		t.Errorf("Expected udp limit %d, got %d", len(packet), udp.Limit)
	}
	last := chain.Spans[len(chain.Spans)-1]
	if last.Tag != core.TagOther || last.Start != 42 || last.End != 60 {
		t.Errorf("Expected trailing other[42:60], got %v", last)
	}
}

func TestDecodeDoesNotModifyFrame(t *testing.T) {
	packet := makeICMPErrorPacket(3)
	before := append([]byte(nil), packet...)

	if _, err := Decode(packet); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(before, packet) {
		t.Error("Decode modified the frame")
	}
}

func BenchmarkStandardDecoderDecode(b *testing.B) {
	decoder := NewStandardDecoder(Config{})
	packet := makeSimpleUDPPacket()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := decoder.Decode(packet)
		if err != nil {
			b.Fatal(err)
		}
	}
}
