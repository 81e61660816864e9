package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tenchu0314/kabu-predictor/internal/api"
	"github.com/tenchu0314/kabu-predictor/internal/modelstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve rankings and model metadata over HTTP",
	Long: `Starts the HTTP API.

Endpoints:
  GET /health                  - liveness and database status
  GET /api/v1/rankings/latest  - most recent ranking snapshot
  GET /api/v1/models           - per-horizon training metrics

Example:
  go run ./cmd/kabu serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	horizons := make([]int, len(a.cfg.Horizons))
	for i, h := range a.cfg.Horizons {
		horizons[i] = h.Days
	}

	handler := api.NewHandler(a.repo, modelstore.New(a.cfg.ModelDir, a.log), a.db, horizons, a.log)
	server := api.NewServer(a.cfg.APIPort, api.NewRouter(handler, a.log), a.log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
