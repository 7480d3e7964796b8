package capture

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/pcapfix/internal/core"
)

// packetReader is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader yields the frames of a capture file in order.
type Reader struct {
	r       packetReader
	closer  io.Closer
	format  Format
	nanos   bool
	snaplen uint32
	index   int
}

// NewReader detects the format of r from its magic number and prepares to read frames.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	magic, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	format, nanos, err := detect(magic)
	if err != nil {
		return nil, err
	}

	rd := &Reader{format: format, nanos: nanos}
	switch format {
	case FormatPcapNG:
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("open pcapng: %w", err)
		}
		rd.r = ng
	default:
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open pcap: %w", err)
		}
		rd.r = pr
		rd.snaplen = pr.Snaplen()
	}
	return rd, nil
}

// Open opens the capture file at path. Close releases it.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// Next returns the next frame, or io.EOF at the end of the capture.
func (r *Reader) Next() (core.Frame, error) {
	data, ci, err := r.r.ReadPacketData()
	if err != nil {
		return core.Frame{}, err
	}
	f := core.Frame{
		Index:     r.index,
		Data:      data,
		Timestamp: ci.Timestamp,
		OrigLen:   ci.Length,
	}
	r.index++
	return f, nil
}

// LinkType returns the link type of the capture (of the first interface for pcapng).
func (r *Reader) LinkType() layers.LinkType { return r.r.LinkType() }

// Format returns the detected file format.
func (r *Reader) Format() Format { return r.format }

// Nanosecond reports whether a pcap file stores nanosecond timestamps.
func (r *Reader) Nanosecond() bool { return r.nanos }

// Snaplen returns the snapshot length from the pcap file header, or 0 for pcapng.
func (r *Reader) Snaplen() uint32 { return r.snaplen }

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
