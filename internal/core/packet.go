// Package core defines core data structures with zero external dependencies.
package core

import "time"

// Frame is one link-layer record of a capture.
type Frame struct {
	Index     int       // Position in the capture, zero based
	Data      []byte    // Captured bytes
	Timestamp time.Time // Capture timestamp
	OrigLen   int       // Length on the wire, may exceed len(Data) for snaplen-truncated records
}

// CaptureLen returns the number of captured bytes.
func (f Frame) CaptureLen() int {
	return len(f.Data)
}

// WithData returns a copy of f carrying data instead of f.Data.
// Timestamp, index and original length are kept.
func (f Frame) WithData(data []byte) Frame {
	f.Data = data
	return f
}
