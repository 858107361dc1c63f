package main

import (
	"github.com/spf13/cobra"

	"github.com/vertti/probe/pkg/checklist"
	"github.com/vertti/probe/pkg/config"
)

var (
	runFormat   string
	runEnvFiles []string
	runVerbose  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&runFormat, "format", "text", "report format (text or json)")
	rootCmd.PersistentFlags().StringSliceVar(&runEnvFiles, "env-file", nil, "dotenv file to load, can be repeated (default: nearest .env)")
	rootCmd.PersistentFlags().BoolVarP(&runVerbose, "verbose", "v", false, "debug logging on stderr")

	for _, s := range []struct{ name, short string }{
		{checklist.SuiteChain, "Check the RPC endpoint, wallet and token contract"},
		{checklist.SuiteCDSE, "Check the Copernicus Data Space token endpoint and STAC catalogue"},
		{checklist.SuiteEarthdata, "Check NASA CMR collection metadata with the Earthdata token"},
	} {
		rootCmd.AddCommand(&cobra.Command{
			Use:   s.name,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE:  runSuites(s.name),
		})
	}
}

// runSuites runs the named suites, or all of them when none are named.
// Failed checks do not make the command fail; only a run that cannot start does.
func runSuites(suites ...string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := requireOneOf(flagValue{name: "--format", value: runFormat}, "text", "json"); err != nil {
			return err
		}
		if err := loadEnvFiles(cmd); err != nil {
			return err
		}

		_, err := checklist.Run(cmd.Context(), checklist.Options{
			Suites:  suites,
			Format:  runFormat,
			Verbose: runVerbose,
			Env:     &config.RealEnvGetter{},
			Stdout:  cmd.OutOrStdout(),
			Stderr:  cmd.ErrOrStderr(),
		})
		return err
	}
}

// loadEnvFiles applies --env-file (or the nearest .env) before configuration
// is read. The logger here only sees the process LOG_LEVEL.
func loadEnvFiles(cmd *cobra.Command) error {
	level, _ := (&config.RealEnvGetter{}).LookupEnv(config.KeyLogLevel)
	logger := checklist.NewLogger(cmd.ErrOrStderr(), level, runVerbose)
	return config.LoadEnvFiles(logger, runEnvFiles...)
}
