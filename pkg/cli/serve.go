package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/cli/config"
	controller "github.com/secmon-lab/riskmap/pkg/controller/http"
	"github.com/secmon-lab/riskmap/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg  config.Server
		repoCfg    config.Repository
		rollupCfg  config.Rollup
		datasetCfg config.Dataset
	)

	flags := joinFlags(
		serverCfg.Flags(),
		repoCfg.Flags(),
		rollupCfg.Flags(),
		datasetCfg.Flags(),
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Start HTTP server",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting riskmap server",
				slog.Any("server", serverCfg),
				slog.Any("repository", repoCfg),
				slog.Any("rollup", rollupCfg),
				slog.Any("dataset", datasetCfg),
			)

			riskOpts, err := rollupCfg.Configure()
			if err != nil {
				return err
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			riskUC := usecase.NewRisk(repo, usecase.NewRiskConfig(riskOpts...))

			// Seed the store when a dataset file is given
			if datasetCfg.IsConfigured() {
				dataset, err := datasetCfg.Load()
				if err != nil {
					return err
				}
				if err := riskUC.ImportDataset(ctx, dataset); err != nil {
					return goerr.Wrap(err, "failed to import dataset", goerr.V("path", datasetCfg.Path))
				}
			}

			server, err := controller.NewServer(ctx, serverCfg.Addr, riskUC)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
