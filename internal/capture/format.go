// Package capture reads and writes pcap and pcapng capture files.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Format identifies a capture file format.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatPcap   Format = "pcap"
	FormatPcapNG Format = "pcapng"
)

// ErrUnknownFormat is returned when the input does not start with a known magic number.
var ErrUnknownFormat = errors.New("capture: unrecognized file format")

// File magic numbers, as they appear in a little-endian read of the first four bytes.
const (
	magicMicroseconds = 0xa1b2c3d4
	magicNanoseconds  = 0xa1b23c4d
	magicPcapNG       = 0x0a0d0d0a
)

// ParseFormat accepts "auto", "pcap" or "pcapng". An empty string is auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatPcap, FormatPcapNG:
		return f, nil
	default:
		return "", fmt.Errorf("unknown capture format %q (want auto, pcap or pcapng)", s)
	}
}

// Resolve returns f, or input when f is auto.
func (f Format) Resolve(input Format) Format {
	if f == FormatAuto || f == "" {
		return input
	}
	return f
}

// detect classifies the first four bytes of a capture file.
func detect(magic []byte) (format Format, nanos bool, err error) {
	if len(magic) < 4 {
		return "", false, fmt.Errorf("%w: file shorter than a magic number", ErrUnknownFormat)
	}
	le := binary.LittleEndian.Uint32(magic)
	be := binary.BigEndian.Uint32(magic)
	switch {
	case le == magicPcapNG:
		return FormatPcapNG, false, nil
	case le == magicMicroseconds || be == magicMicroseconds:
		return FormatPcap, false, nil
	case le == magicNanoseconds || be == magicNanoseconds:
		return FormatPcap, true, nil
	}
	return "", false, fmt.Errorf("%w: magic %#08x", ErrUnknownFormat, be)
}
