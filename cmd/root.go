// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/pcapfix/internal/config"
	"firestige.xyz/pcapfix/internal/log"
)

// version is overridden at build time with -ldflags "-X firestige.xyz/pcapfix/cmd.version=...".
var version = "0.1.0"

// globalOptions holds state shared by every command of one invocation.
type globalOptions struct {
	configFile string
	cfg        *config.Config
}

// newRootCmd builds the command tree. Invoked with an input and an output path,
// the root command behaves like normalize.
func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "pcapfix [input output]",
		Short: "pcapfix - recompute IP, TCP, UDP and ICMP checksums in packet captures",
		Long: `pcapfix rewrites every IPv4 header, TCP, UDP, ICMP and ICMPv6 checksum in a
pcap or pcapng file to its correct value. Frames are written in their original order
with their original timestamps and lengths; only checksum bytes change.

Captures taken on hosts with checksum offload, or edited after capture, carry bogus
checksums that make analyzers flag every packet. pcapfix repairs them.

Frames that cannot be fully decoded are copied with every checksum that could be
computed fixed and a diagnostic logged for the rest.

Examples:
  pcapfix in.pcap out.pcap
  pcapfix normalize --workers 0 --report report.yaml in.pcapng out.pcapng
  pcapfix inspect --limit 10 in.pcap`,
		Version:           version,
		Args:              cobra.MaximumNArgs(2),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: g.initialize,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch len(args) {
			case 0:
				return cmd.Help()
			case 2:
				return runNormalize(cmd.Context(), g.cfg, args[0], args[1], cmd.OutOrStdout(), cmd.ErrOrStderr())
			}
			return fmt.Errorf("expected an input and an output capture, got %d argument(s)", len(args))
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", "",
		"config file path (YAML, root key pcapfix)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text, json or pattern")

	addNormalizeFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(newNormalizeCmd(g))
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newValidateCmd(g))

	return rootCmd
}

// initialize loads the configuration and sets up logging before any command runs.
func (g *globalOptions) initialize(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(g.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	g.cfg = cfg
	return nil
}

// Execute builds the command tree and runs it against os.Args. An interrupt
// stops a run after the frame in progress.
// This is called by main.main().
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer log.Close()
	return newRootCmd().ExecuteContext(ctx)
}
