//go:build libpcap

package filter

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// Compile compiles a tcpdump filter expression with libpcap.
func Compile(expr string, linkType layers.LinkType, snaplen int) (*Selector, error) {
	insns, err := pcap.CompileBPFFilter(linkType, snaplen, expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter %q: %w", expr, err)
	}
	raw := make([]bpf.RawInstruction, len(insns))
	for i, ins := range insns {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	s, err := New(raw)
	if err != nil {
		return nil, err
	}
	s.source = expr
	return s, nil
}
