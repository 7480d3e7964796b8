package checksum

import (
	"encoding/binary"
	"net/netip"
)

// Sum is a running RFC 1071 one's-complement sum. The zero value is ready to use.
type Sum struct {
	acc uint64
	odd bool // a single byte is pending in the high half of the next word
}

// Write adds b to the sum. Writes may have any length; an odd trailing byte is
// carried into the next write and padded with zero only when the sum is read.
func (s *Sum) Write(b []byte) {
	if len(b) == 0 {
		return
	}
	if s.odd {
		s.acc += uint64(b[0])
		b = b[1:]
		s.odd = false
	}
	n := len(b) &^ 1
	for i := 0; i < n; i += 2 {
		s.acc += uint64(binary.BigEndian.Uint16(b[i:]))
	}
	if n < len(b) {
		s.acc += uint64(b[n]) << 8
		s.odd = true
	}
}

// AddUint16 adds a 16-bit value in network order. Must be called on a word boundary.
func (s *Sum) AddUint16(v uint16) {
	s.acc += uint64(v)
}

// AddUint32 adds a 32-bit value as two 16-bit words.
func (s *Sum) AddUint32(v uint32) {
	s.acc += uint64(v>>16) + uint64(v&0xFFFF)
}

// AddAddr adds the bytes of an IPv4 or IPv6 address.
func (s *Sum) AddAddr(a netip.Addr) {
	if a.Is4() {
		b := a.As4()
		s.Write(b[:])
		return
	}
	b := a.As16()
	s.Write(b[:])
}

// Fold returns the 16-bit one's-complement sum without the final complement.
func (s *Sum) Fold() uint16 {
	acc := s.acc
	for acc>>16 != 0 {
		acc = (acc & 0xFFFF) + acc>>16
	}
	return uint16(acc)
}

// Checksum returns the complemented sum, the value stored in a header.
func (s *Sum) Checksum() uint16 {
	return ^s.Fold()
}

// Reset clears the sum.
func (s *Sum) Reset() { *s = Sum{} }
