// Package testutil builds reference frames for tests. Checksums in the frames it
// returns are computed by gopacket and golang.org/x/net/icmp, independently of
// the checksum package.
package testutil

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

var (
	SrcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	DstMAC = net.HardwareAddr{0x00, 0x11, 0x11, 0x11, 0x11, 0x11}
)

// Offsets of checksum fields in an untagged Ethernet/IPv4 (IHL 5) frame.
const (
	IPv4ChecksumOffset = 14 + 10
	UDPChecksumOffset  = 14 + 20 + 6
	TCPChecksumOffset  = 14 + 20 + 16
	ICMPChecksumOffset = 14 + 20 + 2

	// IPv6 frames
	UDPv6ChecksumOffset  = 14 + 40 + 6
	TCPv6ChecksumOffset  = 14 + 40 + 16
	ICMPv6ChecksumOffset = 14 + 40 + 2
)

// Serialize serializes layers with lengths fixed and checksums computed.
func Serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

func ethernet(t layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: SrcMAC, DstMAC: DstMAC, EthernetType: t}
}

func ipv4Layer(src, dst string, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		Id:       1,
		Protocol: proto,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
}

func ipv6Layer(src, dst string, next layers.IPProtocol) *layers.IPv6 {
	return &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: next,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
}

// UDPv4 builds Ethernet/IPv4/UDP with valid checksums.
func UDPv4(t testing.TB, src string, sport uint16, dst string, dport uint16, payload []byte) []byte {
	t.Helper()
	ip := ipv4Layer(src, dst, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("udp pseudo header: %v", err)
	}
	return Serialize(t, ethernet(layers.EthernetTypeIPv4), ip, udp, gopacket.Payload(payload))
}

// TCPv4 builds Ethernet/IPv4/TCP with valid checksums.
func TCPv4(t testing.TB, src string, sport uint16, dst string, dport uint16, payload []byte) []byte {
	t.Helper()
	ip := ipv4Layer(src, dst, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(sport),
		DstPort: layers.TCPPort(dport),
		Seq:     1000,
		Ack:     2000,
		ACK:     true,
		PSH:     true,
		Window:  65535,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("tcp pseudo header: %v", err)
	}
	return Serialize(t, ethernet(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(payload))
}

// UDPv6 builds Ethernet/IPv6/UDP with valid checksums.
func UDPv6(t testing.TB, src string, sport uint16, dst string, dport uint16, payload []byte) []byte {
	t.Helper()
	ip := ipv6Layer(src, dst, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("udp pseudo header: %v", err)
	}
	return Serialize(t, ethernet(layers.EthernetTypeIPv6), ip, udp, gopacket.Payload(payload))
}

// TCPv6 builds Ethernet/IPv6/TCP with valid checksums.
func TCPv6(t testing.TB, src string, sport uint16, dst string, dport uint16, payload []byte) []byte {
	t.Helper()
	ip := ipv6Layer(src, dst, layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: layers.TCPPort(sport), DstPort: layers.TCPPort(dport), Seq: 7, SYN: true, Window: 1024}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("tcp pseudo header: %v", err)
	}
	return Serialize(t, ethernet(layers.EthernetTypeIPv6), ip, tcp, gopacket.Payload(payload))
}

// ICMPv6Echo builds Ethernet/IPv6/ICMPv6 echo request with a valid checksum.
func ICMPv6Echo(t testing.TB, src, dst string, payload []byte) []byte {
	t.Helper()
	ip := ipv6Layer(src, dst, layers.IPProtocolICMPv6)
	icmp6 := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoRequest, 0)}
	if err := icmp6.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("icmpv6 pseudo header: %v", err)
	}
	echo := &layers.ICMPv6Echo{Identifier: 1, SeqNumber: 1}
	return Serialize(t, ethernet(layers.EthernetTypeIPv6), ip, icmp6, echo, gopacket.Payload(payload))
}

// QuotedEcho returns an IPv4 echo request packet (no link header) as quoted by an
// ICMP error. Its IPv4 checksum is replaced by a stale value.
func QuotedEcho(t testing.TB, src, dst string, payload []byte) []byte {
	t.Helper()
	ip := ipv4Layer(src, dst, layers.IPProtocolICMPv4)
	echo := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Seq: 2}
	b := Serialize(t, ip, echo, gopacket.Payload(payload))
	binary.BigEndian.PutUint16(b[10:], 0xDEAD)
	return b
}

// ICMPv4 builds Ethernet/IPv4/ICMP with the message marshalled by x/net/icmp.
func ICMPv4(t testing.TB, src, dst string, msg icmp.Message) []byte {
	t.Helper()
	body, err := msg.Marshal(nil)
	if err != nil {
		t.Fatalf("marshal icmp: %v", err)
	}
	ip := ipv4Layer(src, dst, layers.IPProtocolICMPv4)
	return Serialize(t, ethernet(layers.EthernetTypeIPv4), ip, gopacket.Payload(body))
}

// DestinationUnreachable mirrors the icmp_logger fixture: host unreachable quoting
// an echo request carrying "1234567890".
func DestinationUnreachable(t testing.TB) []byte {
	t.Helper()
	quoted := QuotedEcho(t, "192.168.1.75", "192.168.1.74", []byte("1234567890"))
	return ICMPv4(t, "192.168.1.75", "192.168.1.75", icmp.Message{
		Type: ipv4.ICMPTypeDestinationUnreachable,
		Code: 1,
		Body: &icmp.DstUnreach{Data: quoted},
	})
}

// EchoRequest builds an IPv4 ICMP echo request.
func EchoRequest(t testing.TB, payload []byte) []byte {
	t.Helper()
	return ICMPv4(t, "10.0.0.1", "10.0.0.2", icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: 0x1234, Seq: 1, Data: payload},
	})
}

// ARPReply builds an Ethernet ARP reply.
func ARPReply(t testing.TB) []byte {
	t.Helper()
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   SrcMAC,
		SourceProtAddress: net.IPv4(192, 168, 1, 0).To4(),
		DstHwAddress:      DstMAC,
		DstProtAddress:    net.IPv4(1, 1, 1, 1).To4(),
	}
	return Serialize(t, ethernet(layers.EthernetTypeARP), arp)
}

// Garble overwrites the 16-bit field at each offset with a wrong value and returns a copy.
func Garble(frame []byte, offsets ...int) []byte {
	out := append([]byte(nil), frame...)
	for _, off := range offsets {
		v := binary.BigEndian.Uint16(out[off:])
		binary.BigEndian.PutUint16(out[off:], v^0x5A5A)
	}
	return out
}

// Zero clears the 16-bit field at each offset and returns a copy.
func Zero(frame []byte, offsets ...int) []byte {
	out := append([]byte(nil), frame...)
	for _, off := range offsets {
		binary.BigEndian.PutUint16(out[off:], 0)
	}
	return out
}
