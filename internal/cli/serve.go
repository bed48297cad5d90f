package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crossroads-network/crossroads/internal/api"
	"github.com/crossroads-network/crossroads/internal/daemon"
	"github.com/crossroads-network/crossroads/internal/infra/ballot"
	"github.com/crossroads-network/crossroads/internal/infra/outcome"
	"github.com/crossroads-network/crossroads/internal/infra/resolve"
	"github.com/crossroads-network/crossroads/internal/infra/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the crossroads voting API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	defer db.Close()

	ledger := ballot.NewLedger(db)
	scenarios := ballot.NewScenarios(db)
	tracker := outcome.NewTracker(db)
	closer := resolve.NewCloser(db, ledger, scenarios, tracker)

	server := api.NewServer(scenarios, ledger, closer, tracker)
	if cfg.API.Metrics {
		server.EnableMetrics()
	}

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] listening on %s (store %s)", addr, cfg.Store.Path)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Printf("[serve] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
