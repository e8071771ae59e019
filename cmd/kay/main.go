package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "kay",
	Short: "kay quotation and invoicing backend",
	Long: `kay serves the quotation, invoicing and catalog API.

Configuration is read from the environment (and a .env file when present).
Business settings such as tax rate and payment terms come from business.yml.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kay: %v\n", err)
		os.Exit(1)
	}
}
