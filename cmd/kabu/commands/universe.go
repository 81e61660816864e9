package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Manage the tradable universe",
	Long: `Refresh or inspect the universe of instruments the pipeline covers.

Subcommands:
  refresh - scrape the listing page and rebuild the universe file
  list    - print the saved universe

Example:
  go run ./cmd/kabu universe refresh`,
}

var universeRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Scrape the listing page and rebuild the universe file",
	RunE:  runUniverseRefresh,
}

var universeListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the saved universe",
	RunE:  runUniverseList,
}

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.AddCommand(universeRefreshCmd)
	universeCmd.AddCommand(universeListCmd)
}

func runUniverseRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stocks, err := a.pipeline.Universe().Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh universe: %w", err)
	}
	fmt.Printf("universe refreshed: %d instruments\n", len(stocks))
	return nil
}

func runUniverseList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stocks, err := a.pipeline.Universe().Load()
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	fmt.Printf("%-8s %-24s %-12s %s\n", "Code", "Name", "Market", "MarketCap")
	for _, s := range stocks {
		fmt.Printf("%-8s %-24s %-12s %d\n", s.Code, s.Name, s.Market, s.MarketCap)
	}
	return nil
}
