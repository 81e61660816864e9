package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the models over cached history",
	Long: `Simulates a daily-rebalanced equal-weight portfolio of the top-N
scored instruments over the cached history and reports risk-adjusted
performance.

Example:
  go run ./cmd/kabu backtest`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.pipeline.Backtest(cmd.Context())
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	fmt.Printf("Period:            %s .. %s (%d sessions)\n",
		result.Start.Format("2006-01-02"), result.End.Format("2006-01-02"), result.Days)
	fmt.Printf("Cumulative return: %+.2f%%\n", result.CumulativeReturn*100)
	fmt.Printf("Annualized Sharpe: %.3f\n", result.AnnualizedSharpe)
	fmt.Printf("Max drawdown:      %.2f%%\n", result.MaxDrawdown*100)
	fmt.Printf("Win rate:          %.1f%%\n", result.WinRate*100)
	fmt.Printf("Risk score:        %.3f\n", result.RiskScore)
	return nil
}
