package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/pcapfix/internal/config"
)

func newValidateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and print the effective settings",
		Long: `Load the configuration the same way normalize does (defaults, the --config file,
PCAPFIX_* environment variables and flags), validate it and print the result as
YAML under the pcapfix root key.

Examples:
  pcapfix validate -c pcapfix.yaml
  PCAPFIX_PIPELINE_WORKERS=4 pcapfix validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(g.cfg, cmd.OutOrStdout())
		},
	}
}

// runValidate prints cfg. Loading already failed for an invalid configuration,
// so reaching this point means it is valid.
func runValidate(cfg *config.Config, out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]*config.Config{"pcapfix": cfg}); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
