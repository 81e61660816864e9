package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kabu",
	Short: "Multi-horizon equity ranking engine",
	Long: `kabu-predictor

Daily ranking pipeline for Japanese equities: quote collection, feature
engineering, multi-horizon model training and composite scoring.

Usage:
  go run ./cmd/kabu [command]

Examples:
  go run ./cmd/kabu fetch
  go run ./cmd/kabu train
  go run ./cmd/kabu rank
  go run ./cmd/kabu schedule start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
