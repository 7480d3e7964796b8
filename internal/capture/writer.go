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

const defaultSnaplen = 262144

// WriterOptions describes the capture file to produce.
type WriterOptions struct {
	Format     Format // pcap or pcapng; auto is treated as pcap
	LinkType   layers.LinkType
	Snaplen    uint32 // pcap header only, 0 selects the default
	Nanosecond bool   // pcap only
}

// OptionsFor returns writer options that reproduce the header of r, with the
// format overridden unless it is auto.
func OptionsFor(r *Reader, format Format) WriterOptions {
	return WriterOptions{
		Format:     format.Resolve(r.Format()),
		LinkType:   r.LinkType(),
		Snaplen:    r.Snaplen(),
		Nanosecond: r.Nanosecond(),
	}
}

// Writer appends frames to a capture file.
type Writer struct {
	buf    *bufio.Writer
	closer io.Closer
	pcap   *pcapgo.Writer
	ng     *pcapgo.NgWriter
}

// NewWriter writes the file header to w and returns a Writer for frames.
func NewWriter(w io.Writer, opts WriterOptions) (*Writer, error) {
	wr := &Writer{buf: bufio.NewWriterSize(w, 64*1024)}

	if opts.Format == FormatPcapNG {
		ng, err := pcapgo.NewNgWriter(wr.buf, opts.LinkType)
		if err != nil {
			return nil, fmt.Errorf("write pcapng header: %w", err)
		}
		wr.ng = ng
		return wr, nil
	}

	if opts.Nanosecond {
		wr.pcap = pcapgo.NewWriterNanos(wr.buf)
	} else {
		wr.pcap = pcapgo.NewWriter(wr.buf)
	}
	snaplen := opts.Snaplen
	if snaplen == 0 {
		snaplen = defaultSnaplen
	}
	if err := wr.pcap.WriteFileHeader(snaplen, opts.LinkType); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return wr, nil
}

// Create creates (or truncates) the file at path.
func Create(path string, opts WriterOptions) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture %s: %w", path, err)
	}
	w, err := NewWriter(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Write appends f with its timestamp and original length.
func (w *Writer) Write(f core.Frame) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     f.Timestamp,
		CaptureLength: len(f.Data),
		Length:        max(f.OrigLen, len(f.Data)),
	}
	if w.ng != nil {
		return w.ng.WritePacket(ci, f.Data)
	}
	return w.pcap.WritePacket(ci, f.Data)
}

// Close flushes buffered frames and closes the underlying file, if any.
func (w *Writer) Close() error {
	var err error
	if w.ng != nil {
		err = w.ng.Flush()
	}
	if ferr := w.buf.Flush(); err == nil {
		err = ferr
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
