package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"firestige.xyz/pcapfix/internal/capture"
	"firestige.xyz/pcapfix/internal/checksum"
	"firestige.xyz/pcapfix/internal/core"
	"firestige.xyz/pcapfix/internal/core/decoder"
)

func newInspectCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Show the header chain and checksum status of every frame",
		Long: `Decode the frames of a capture and print, for each one, its header chain, the
stored and computed value of every checksum and the packet quoted by ICMP errors.
The capture is not modified.

Examples:
  pcapfix inspect in.pcap
  pcapfix inspect --limit 5 out.pcapng`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), args[0], limit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many frames (0 = all)")
	return cmd
}

func runInspect(ctx context.Context, input string, limit int, out io.Writer) error {
	r, err := capture.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer r.Close()

	fmt.Fprintf(out, "%s: %s, link type %s, snaplen %d\n", input, r.Format(), r.LinkType(), r.Snaplen())
	ethernet := r.LinkType() == layers.LinkTypeEthernet

	for n := 0; limit <= 0 || n < limit; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		printFrame(out, f, ethernet)
	}
	return nil
}

func printFrame(out io.Writer, f core.Frame, ethernet bool) {
	fmt.Fprintf(out, "\nframe %d  %s  %d/%d bytes\n",
		f.Index, f.Timestamp.UTC().Format(time.RFC3339Nano), f.CaptureLen(), f.OrigLen)
	if !ethernet {
		fmt.Fprintln(out, "  not decoded")
		return
	}

	chain, err := decoder.Decode(f.Data)
	if err != nil {
		fmt.Fprintf(out, "  error     %v\n", err)
		return
	}
	fmt.Fprintf(out, "  chain     %s\n", chain.String())

	for _, s := range chain.Spans {
		if (s.Tag == core.TagICMP || s.Tag == core.TagICMPv6) && s.Err == nil {
			typ, code := f.Data[s.Start], f.Data[s.Start+1]
			fmt.Fprintf(out, "  %-9s %s, code %d\n", s.Tag, icmpTypeName(s.Tag, typ), code)
		}
	}
	if chain.Embedded != nil {
		fmt.Fprintf(out, "  quoted    %s\n", chain.Embedded.String())
	}

	for _, st := range checksum.Verify(f.Data, chain) {
		name := st.Field.Tag.String()
		if st.Embedded {
			name = "quoted " + name
		}
		verdict := "ok"
		if !st.Valid() {
			verdict = "BAD"
		}
		fmt.Fprintf(out, "  %-13s stored 0x%04x  computed 0x%04x  %s\n", name, st.Stored, st.Computed, verdict)
	}
}

func icmpTypeName(tag core.Tag, typ uint8) string {
	var name string
	if tag == core.TagICMPv6 {
		name = ipv6.ICMPType(typ).String()
	} else {
		name = ipv4.ICMPType(typ).String()
	}
	if name == "" || name == "<nil>" {
		return fmt.Sprintf("type %d", typ)
	}
	return name
}
