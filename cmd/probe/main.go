package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "probe",
	Short: "Health checks for the blockchain, Copernicus and Earthdata services",
	Long: "Probe runs a fixed checklist against every external service the platform depends on\n" +
		"and reports each check as OK, FAIL or SKIP. Configuration comes from the environment\n" +
		"and optional .env files. The exit code is 0 whenever the checklist completes.",
	Version:      Version,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runSuites(),
}
