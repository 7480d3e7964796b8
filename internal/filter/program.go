package filter

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/bpf"
)

// ParseProgram parses the text emitted by tcpdump for a compiled filter:
//
//	-ddd   a count line followed by "code jt jf k" lines, in decimal
//	-dd    C initializers such as "{ 0x28, 0, 0, 0x0000000c },"
//
// The comma separated one-line form of -ddd ("4,40 0 0 12,...") is also accepted.
// Lines starting with '#' are comments.
func ParseProgram(text string) ([]bpf.RawInstruction, error) {
	if strings.Contains(text, "{") {
		return parseInitializers(text)
	}
	return parseDecimal(text)
}

func parseDecimal(text string) ([]bpf.RawInstruction, error) {
	var lines []string
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ',' }) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty bpf program")
	}

	count, err := strconv.Atoi(lines[0])
	if err != nil {
		return nil, fmt.Errorf("bad instruction count %q", lines[0])
	}
	if count != len(lines)-1 {
		return nil, fmt.Errorf("instruction count %d does not match %d instructions", count, len(lines)-1)
	}

	raw := make([]bpf.RawInstruction, 0, count)
	for i, line := range lines[1:] {
		ins, err := parseInstruction(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		raw = append(raw, ins)
	}
	return raw, nil
}

func parseInitializers(text string) ([]bpf.RawInstruction, error) {
	var raw []bpf.RawInstruction
	for _, chunk := range strings.Split(text, "{")[1:] {
		end := strings.Index(chunk, "}")
		if end < 0 {
			return nil, fmt.Errorf("instruction %d: missing closing brace", len(raw))
		}
		fields := strings.Split(chunk[:end], ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		ins, err := parseInstruction(fields)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", len(raw), err)
		}
		raw = append(raw, ins)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty bpf program")
	}
	return raw, nil
}

func parseInstruction(fields []string) (bpf.RawInstruction, error) {
	if len(fields) != 4 {
		return bpf.RawInstruction{}, fmt.Errorf("want 4 fields, got %d", len(fields))
	}
	var v [4]uint64
	bits := [4]int{16, 8, 8, 32}
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 0, bits[i])
		if err != nil {
			return bpf.RawInstruction{}, fmt.Errorf("field %d: %w", i, err)
		}
		v[i] = n
	}
	return bpf.RawInstruction{Op: uint16(v[0]), Jt: uint8(v[1]), Jf: uint8(v[2]), K: uint32(v[3])}, nil
}
