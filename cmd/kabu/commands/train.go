package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train one model per prediction horizon",
	Long: `Builds the pooled training set from cached quotes, runs the
hyperparameter search, and persists one model artifact per horizon.

Example:
  go run ./cmd/kabu train`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	metrics, err := a.pipeline.Train(cmd.Context())
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	fmt.Printf("%-8s %8s %8s %8s %8s %10s\n", "Horizon", "AUC", "Acc", "F1", "Trees", "Samples")
	for _, m := range metrics {
		fmt.Printf("%-8s %8.4f %8.4f %8.4f %8d %10d\n",
			fmt.Sprintf("%dd", m.Horizon), m.AUC, m.Accuracy, m.F1, m.BestIteration, m.TrainSamples)
	}
	return nil
}
