// Package rewrite patches recomputed checksum values into frames.
package rewrite

import (
	"encoding/binary"

	"firestige.xyz/pcapfix/internal/checksum"
)

// Apply returns a copy of frame with every value of m written big-endian at
// its field offset. Entries that do not fit in the frame are ignored.
func Apply(frame []byte, m checksum.Map) []byte {
	out := make([]byte, len(frame))
	copy(out, frame)
	for _, e := range m {
		off := e.Field.Offset
		if off < 0 || off+2 > len(out) {
			continue
		}
		binary.BigEndian.PutUint16(out[off:], e.Value)
	}
	return out
}

// Changed counts the entries of m whose value differs from the bytes stored in frame.
func Changed(frame []byte, m checksum.Map) int {
	n := 0
	for _, e := range m {
		off := e.Field.Offset
		if off < 0 || off+2 > len(frame) {
			continue
		}
		if binary.BigEndian.Uint16(frame[off:]) != e.Value {
			n++
		}
	}
	return n
}
