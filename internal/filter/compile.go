//go:build !libpcap

package filter

import "github.com/google/gopacket/layers"

// Compile compiles a tcpdump filter expression. This build has no libpcap and
// always returns ErrNoCompiler.
func Compile(expr string, linkType layers.LinkType, snaplen int) (*Selector, error) {
	return nil, ErrNoCompiler
}
