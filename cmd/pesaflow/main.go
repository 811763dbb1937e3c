package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pesaflow/pesaflow/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pesaflow",
		Short: "Pesaflow - mobile money payment orchestration service",
		Long:  `Pesaflow orchestrates push payment prompts, webhook ingestion and status reconciliation against the mobile money gateway.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
