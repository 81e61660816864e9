package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rankCmd = &cobra.Command{
	Use:     "rank",
	Aliases: []string{"predict"},
	Short:   "Score the universe and write the daily report",
	Long: `Runs inference over every cached instrument, fuses prediction,
fundamental and risk scores, applies the overheat penalty and writes the
ranked report to the output directory.

Example:
  go run ./cmd/kabu rank`,
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.pipeline.Rank(cmd.Context())
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}

	n := a.cfg.TopN
	if n > len(records) {
		n = len(records)
	}
	fmt.Printf("%-4s %-10s %10s %8s %8s %8s\n", "Rank", "Ticker", "Composite", "Pred", "Fund", "Risk")
	for _, rec := range records[:n] {
		fmt.Printf("%-4d %-10s %10.4f %8.3f %8.3f %8.3f\n",
			rec.Rank, rec.Ticker, rec.CompositeScore,
			rec.WeightedScore, rec.FundamentalScore, rec.RiskAdjustedScore)
	}
	return nil
}
