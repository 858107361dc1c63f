package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vertti/probe/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the recognized options and their effective values (secrets masked)",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := loadEnvFiles(cmd); err != nil {
		return err
	}
	cfg, err := config.Load(&config.RealEnvGetter{})
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, e := range cfg.Entries() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", e.Key, e.Value)
	}
	return tw.Flush()
}
