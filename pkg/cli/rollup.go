package cli

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/cli/config"
	"github.com/secmon-lab/riskmap/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
	"github.com/secmon-lab/riskmap/pkg/repository"
	"github.com/secmon-lab/riskmap/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdRollup() *cli.Command {
	var (
		repoCfg    config.Repository
		rollupCfg  config.Rollup
		datasetCfg config.Dataset
		locationID string
		output     string
	)

	flags := joinFlags(
		repoCfg.Flags(),
		rollupCfg.Flags(),
		datasetCfg.Flags(),
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "location",
				Aliases:     []string{"l"},
				Usage:       "Print only the snapshot of this location",
				Destination: &locationID,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "Output file (- for stdout)",
				Value:       "-",
				Destination: &output,
			},
		},
	)

	return &cli.Command{
		Name:  "rollup",
		Usage: "Compute the risk rollup and print it as JSON",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)
			logger.Debug("Running rollup",
				slog.Any("repository", repoCfg),
				slog.Any("rollup", rollupCfg),
				slog.Any("dataset", datasetCfg),
			)

			riskOpts, err := rollupCfg.Configure()
			if err != nil {
				return err
			}

			// A dataset file is computed in memory without touching the store
			var repo interfaces.Repository
			if datasetCfg.IsConfigured() {
				repo = repository.NewMemory()
			} else {
				repo, err = repoCfg.Configure(ctx)
				if err != nil {
					return err
				}
			}
			defer repo.Close()

			riskUC := usecase.NewRisk(repo, usecase.NewRiskConfig(riskOpts...))
			if datasetCfg.IsConfigured() {
				dataset, err := datasetCfg.Load()
				if err != nil {
					return err
				}
				locations, incidents := flattenDataset(dataset)
				if err := repo.ReplaceDataset(ctx, locations, incidents); err != nil {
					return err
				}
			}

			var out any
			if locationID != "" {
				out, err = riskUC.LocationRisk(ctx, types.LocationID(locationID))
			} else {
				out, err = riskUC.Rollup(ctx)
			}
			if err != nil {
				return err
			}

			w, closer, err := openOutput(output, c.Root().Writer)
			if err != nil {
				return err
			}
			defer closer()

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return goerr.Wrap(err, "failed to write rollup", goerr.V("output", output))
			}

			return nil
		},
	}
}

func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		if stdout == nil {
			stdout = os.Stdout
		}
		return stdout, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create output file", goerr.V("path", path))
	}
	return f, func() { _ = f.Close() }, nil
}
