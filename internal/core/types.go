// Package core defines core types with zero external dependencies.
package core

import (
	"fmt"
	"net/netip"
	"strings"
)

// Tag identifies the protocol of a HeaderSpan.
type Tag uint8

const (
	TagOther Tag = iota
	TagEthernet
	TagARP
	TagIPv4
	TagIPv6
	TagTCP
	TagUDP
	TagICMP
	TagICMPv6
)

var tagNames = [...]string{
	TagOther:    "other",
	TagEthernet: "ethernet",
	TagARP:      "arp",
	TagIPv4:     "ipv4",
	TagIPv6:     "ipv6",
	TagTCP:      "tcp",
	TagUDP:      "udp",
	TagICMP:     "icmp",
	TagICMPv6:   "icmpv6",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// ParseTag is the inverse of Tag.String.
func ParseTag(s string) (Tag, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range tagNames {
		if name == s {
			return Tag(i), nil
		}
	}
	return TagOther, fmt.Errorf("unknown protocol tag %q", s)
}

// IsIP reports whether t is a network layer tag.
func (t Tag) IsIP() bool {
	return t == TagIPv4 || t == TagIPv6
}

// HeaderSpan locates one protocol header inside a frame.
// Offsets are absolute within the owning frame.
type HeaderSpan struct {
	Tag   Tag
	Start int // First header byte
	End   int // One past the last header byte
	Limit int // One past the last byte of the data unit this header governs
	Err   error
}

// Len returns the header length in bytes.
func (s HeaderSpan) Len() int {
	return s.End - s.Start
}

func (s HeaderSpan) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s[%d:%d] (%v)", s.Tag, s.Start, s.End, s.Err)
	}
	return fmt.Sprintf("%s[%d:%d]", s.Tag, s.Start, s.End)
}

// HeaderChain is the decoded header sequence of a frame. It borrows the frame
// it was decoded from and must not outlive it.
type HeaderChain struct {
	Spans []HeaderSpan
	// Embedded is the packet quoted in an ICMP error body. Informational only.
	Embedded *HeaderChain
}

// Find returns the index of the first span tagged t, or -1.
func (c HeaderChain) Find(t Tag) int {
	for i := range c.Spans {
		if c.Spans[i].Tag == t {
			return i
		}
	}
	return -1
}

// EnclosingIP returns the index of the nearest IP span before span i, or -1.
func (c HeaderChain) EnclosingIP(i int) int {
	for j := i - 1; j >= 0; j-- {
		if c.Spans[j].Tag.IsIP() {
			return j
		}
	}
	return -1
}

// End returns the end offset of the last span.
func (c HeaderChain) End() int {
	if len(c.Spans) == 0 {
		return 0
	}
	return c.Spans[len(c.Spans)-1].End
}

func (c HeaderChain) String() string {
	parts := make([]string, len(c.Spans))
	for i, s := range c.Spans {
		parts[i] = s.String()
	}
	return strings.Join(parts, " / ")
}

// PseudoHeader carries the network layer fields mixed into a transport checksum.
type PseudoHeader struct {
	Src      netip.Addr
	Dst      netip.Addr
	Protocol uint8
	Length   uint32 // Upper-layer packet length
}

// ChecksumField describes where a checksum lives and what it covers.
// The covered range [Start, End) includes the field itself, which is summed as zero.
type ChecksumField struct {
	Span   int // Index into HeaderChain.Spans
	Tag    Tag
	Offset int // Absolute offset of the 16-bit field
	Start  int
	End    int
	Pseudo *PseudoHeader
}
