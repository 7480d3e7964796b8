package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"firestige.xyz/pcapfix/internal/capture"
	"firestige.xyz/pcapfix/internal/config"
	"firestige.xyz/pcapfix/internal/core"
	"firestige.xyz/pcapfix/internal/filter"
	"firestige.xyz/pcapfix/internal/metrics"
	"firestige.xyz/pcapfix/internal/pipeline"
	"firestige.xyz/pcapfix/internal/report"
)

// filterSnaplen is handed to the filter compiler when the input header has none.
const filterSnaplen = 262144

func newNormalizeCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <input> <output>",
		Short: "Rewrite every checksum of a capture file to its correct value",
		Long: `Read a pcap or pcapng capture, recompute the IPv4 header, TCP, UDP, ICMP and
ICMPv6 checksums of every frame and write the result to a new capture.

Frames keep their order, timestamps and lengths. Checksums inside the packet quoted
by an ICMP error are left as captured. Frames that cannot be decoded completely are
written with the checksums that could be computed; the rest is reported as
diagnostics, which never change the exit status.

Examples:
  pcapfix normalize in.pcap out.pcap
  pcapfix normalize --layers ipv4,udp in.pcap out.pcap
  pcapfix normalize --format pcapng --report diag.yaml --progress in.pcap out.pcapng`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(cmd.Context(), g.cfg, args[0], args[1], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	addNormalizeFlags(cmd)
	return cmd
}

// addNormalizeFlags declares the flags read through config.Load. Their values
// are taken from the bound configuration, never from the flag variables.
func addNormalizeFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntP("workers", "w", 1, "frames processed concurrently (0 = one per CPU)")
	fs.StringSlice("layers", nil, "checksum layers to rewrite: ipv4, tcp, udp, icmp, icmpv6 (default all)")
	fs.String("filter-file", "", "only normalize frames accepted by a compiled BPF program (tcpdump -ddd or -dd output)")
	fs.String("filter", "", "only normalize frames matching a BPF expression (libpcap builds only)")
	fs.StringP("format", "f", "auto", "output format: auto, pcap or pcapng")
	fs.String("report", "", "write a YAML diagnostics report to this path")
	fs.String("metrics-textfile", "", "write Prometheus metrics in textfile format when done")
	fs.String("metrics-listen", "", "serve Prometheus metrics on this address while running")
	fs.Bool("progress", false, "show a progress bar on stderr")
}

// runNormalize normalizes input into output according to cfg. A summary line goes
// to out and the progress bar, if enabled, to errOut. output is replaced only
// when the run succeeds and may be the same file as input.
func runNormalize(ctx context.Context, cfg *config.Config, input, output string, out, errOut io.Writer) error {
	if cfg == nil {
		cfg = config.Default()
	}

	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w: %w", err, core.ErrIOFailure)
	}
	defer in.Close()

	var (
		src io.Reader = in
		bar *progressbar.ProgressBar
	)
	if cfg.Progress {
		bar = newProgressBar(in, errOut)
		defer bar.Close()
		src = io.TeeReader(in, bar)
	}

	r, err := capture.NewReader(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}

	sel, err := loadSelector(cfg.Filter, r)
	if err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	if cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, rec)
		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
	}

	opts := capture.OptionsFor(r, cfg.OutputFormat())
	w, err := createOutput(output, opts)
	if err != nil {
		return err
	}

	b := pipeline.NewBuilder().
		WithWorkers(cfg.Pipeline.Workers).
		WithChecksum(cfg.ChecksumOptions()).
		WithLinkType(r.LinkType()).
		WithRecorder(rec)
	if sel != nil {
		b = b.WithSelector(sel)
	}

	res, runErr := b.Build().Run(ctx, r, w)
	in.Close()
	if runErr != nil {
		w.Abort()
	} else {
		runErr = w.Commit()
	}
	if bar != nil {
		_ = bar.Finish()
	}
	rec.ObserveRun(res.Elapsed)

	errs := []error{runErr}
	if cfg.Report.Path != "" {
		rep := report.New(report.Run{
			Input:   input,
			Output:  output,
			Format:  string(opts.Format),
			Workers: cfg.Pipeline.Workers,
			Err:     runErr,
		}, res)
		errs = append(errs, rep.WriteFile(cfg.Report.Path))
	}
	if cfg.Metrics.Textfile != "" {
		errs = append(errs, rec.WriteTextfile(cfg.Metrics.Textfile))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s -> %s: %d frames, %d rewritten, %d checksums fixed, %d diagnostics in %s\n",
		input, output,
		res.Stats.Frames,
		res.Stats.Rewritten,
		res.Stats.ChecksumsFixed,
		res.Stats.Diagnostics,
		res.Elapsed.Round(time.Millisecond),
	)
	return nil
}

// loadSelector returns the configured frame selector, or nil when every frame
// is normalized.
func loadSelector(cfg config.FilterConfig, r *capture.Reader) (*filter.Selector, error) {
	switch {
	case cfg.BPFFile != "":
		return filter.Load(cfg.BPFFile)
	case cfg.Expression != "":
		snaplen := int(r.Snaplen())
		if snaplen == 0 {
			snaplen = filterSnaplen
		}
		return filter.Compile(cfg.Expression, r.LinkType(), snaplen)
	}
	return nil, nil
}

func newProgressBar(f *os.File, w io.Writer) *progressbar.ProgressBar {
	size := int64(-1)
	if st, err := f.Stat(); err == nil && st.Mode().IsRegular() {
		size = st.Size()
	}
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("normalizing"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
	)
}
