// Package filter selects frames with a classic BPF program run in a userspace VM.
package filter

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/net/bpf"
)

// ErrNoCompiler is returned by Compile in builds without libpcap.
var ErrNoCompiler = errors.New("filter expressions need a build with -tags libpcap; use a compiled program file instead")

// Selector matches frames against a BPF program. It is safe for concurrent use.
type Selector struct {
	source string
	prog   []bpf.Instruction
	vm     *bpf.VM
}

// New builds a Selector from raw instructions.
func New(raw []bpf.RawInstruction) (*Selector, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty bpf program")
	}
	prog, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("bpf program contains instructions the VM cannot run")
	}
	vm, err := bpf.NewVM(prog)
	if err != nil {
		return nil, fmt.Errorf("invalid bpf program: %w", err)
	}
	return &Selector{prog: prog, vm: vm}, nil
}

// Load reads a program in tcpdump -d style text (see ParseProgram) from path.
func Load(path string) (*Selector, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bpf file: %w", err)
	}
	raw, err := ParseProgram(string(text))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s, err := New(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.source = path
	return s, nil
}

// Match reports whether the program accepts frame. Frames the program reads
// past the end of are rejected.
func (s *Selector) Match(frame []byte) bool {
	n, err := s.vm.Run(frame)
	return err == nil && n > 0
}

// Instructions returns the decoded program.
func (s *Selector) Instructions() []bpf.Instruction { return s.prog }

func (s *Selector) String() string {
	if s.source != "" {
		return fmt.Sprintf("bpf(%s, %d instructions)", s.source, len(s.prog))
	}
	return fmt.Sprintf("bpf(%d instructions)", len(s.prog))
}
