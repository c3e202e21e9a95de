package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "process-eta",
		Short: "Process ETA - business process duration forecaster",
		Long: `Process ETA learns how long business processes take from their history.
It fits a linear model over retries, completed steps, priority and automation
to past completed runs, and predicts duration and completion time for
processes still in flight.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
