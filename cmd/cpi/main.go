package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cpi",
		Short:         "City Prosperity Index standardization and aggregation",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(indicatorsCmd())
	rootCmd.AddCommand(standardizeCmd())
	rootCmd.AddCommand(aggregateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(usersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
