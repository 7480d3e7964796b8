package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"truncated", ErrTruncated, KindTruncated},
		{"wrapped truncated", fmt.Errorf("tcp header 20 > 10 bytes: %w", ErrTruncated), KindTruncated},
		{"missing context", ErrMissingContext, KindMissingContext},
		{"frame too short", ErrFrameTooShort, KindFrameTooShort},
		{"io", fmt.Errorf("%w: write: disk full", ErrIOFailure), KindIOFailure},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorKindFatal(t *testing.T) {
	if !KindIOFailure.Fatal() {
		t.Error("io_failure must be fatal")
	}
	for _, k := range []ErrorKind{KindTruncated, KindMissingContext, KindFrameTooShort} {
		if k.Fatal() {
			t.Errorf("%s must not be fatal", k)
		}
	}
}

func TestTagStringRoundTrip(t *testing.T) {
	for tag := TagOther; tag <= TagICMPv6; tag++ {
		parsed, err := ParseTag(tag.String())
		if err != nil {
			t.Fatalf("ParseTag(%q): %v", tag.String(), err)
		}
		if parsed != tag {
			t.Errorf("ParseTag(%q) = %v, want %v", tag.String(), parsed, tag)
		}
	}

	if _, err := ParseTag("sctp"); err == nil {
		t.Error("expected error for unknown tag")
	}
	if got := Tag(42).String(); got != "tag(42)" {
		t.Errorf("unexpected name for unknown tag: %s", got)
	}
}

func TestHeaderChainLookups(t *testing.T) {
	chain := HeaderChain{Spans: []HeaderSpan{
		{Tag: TagEthernet, Start: 0, End: 14},
		{Tag: TagIPv4, Start: 14, End: 34},
		{Tag: TagUDP, Start: 34, End: 42},
		{Tag: TagOther, Start: 42, End: 60},
	}}

	if i := chain.Find(TagUDP); i != 2 {
		t.Errorf("Find(udp) = %d, want 2", i)
	}
	if i := chain.Find(TagTCP); i != -1 {
		t.Errorf("Find(tcp) = %d, want -1", i)
	}
	if i := chain.EnclosingIP(2); i != 1 {
		t.Errorf("EnclosingIP(2) = %d, want 1", i)
	}
	if i := chain.EnclosingIP(1); i != -1 {
		t.Errorf("EnclosingIP(1) = %d, want -1", i)
	}
	if chain.End() != 60 {
		t.Errorf("End() = %d, want 60", chain.End())
	}
	if s := chain.String(); s != "ethernet[0:14] / ipv4[14:34] / udp[34:42] / other[42:60]" {
		t.Errorf("unexpected String(): %s", s)
	}

	var empty HeaderChain
	if empty.End() != 0 {
		t.Errorf("empty chain End() = %d", empty.End())
	}
}

func TestHeaderChainMethodsOnReturnedValue(t *testing.T) {
	udpChain := func() HeaderChain {
		return HeaderChain{Spans: []HeaderSpan{
			{Tag: TagEthernet, Start: 0, End: 14},
			{Tag: TagIPv6, Start: 14, End: 54},
			{Tag: TagUDP, Start: 54, End: 62},
		}}
	}

	if i := udpChain().Find(TagUDP); i != 2 {
		t.Errorf("Find(udp) = %d, want 2", i)
	}
	if i := udpChain().EnclosingIP(2); i != 1 {
		t.Errorf("EnclosingIP(2) = %d, want 1", i)
	}
	if end := udpChain().End(); end != 62 {
		t.Errorf("End() = %d, want 62", end)
	}
	if s := fmt.Sprint(udpChain()); s != "ethernet[0:14] / ipv6[14:54] / udp[54:62]" {
		t.Errorf("unexpected formatting: %s", s)
	}
}

func TestFrameWithData(t *testing.T) {
	ts := time.Unix(1700000000, 123456000)
	f := Frame{Index: 3, Data: []byte{1, 2, 3}, Timestamp: ts, OrigLen: 1500}

	g := f.WithData([]byte{4, 5, 6})
	if g.Index != 3 || !g.Timestamp.Equal(ts) || g.OrigLen != 1500 {
		t.Errorf("metadata not preserved: %+v", g)
	}
	if g.CaptureLen() != 3 || g.Data[0] != 4 {
		t.Errorf("data not replaced: %v", g.Data)
	}
	if f.Data[0] != 1 {
		t.Error("original frame modified")
	}
}
