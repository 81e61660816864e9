package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Refresh the universe and download quote history",
	Long: `Scrapes the exchange listing, filters by market cap, and downloads
daily OHLCV history for every universe member plus the market index.

Example:
  go run ./cmd/kabu fetch`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pipeline.FetchData(cmd.Context()); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	fmt.Println("quote cache refreshed")
	return nil
}
