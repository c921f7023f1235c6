package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/cli/config"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func cmdImport() *cli.Command {
	var (
		repoCfg    config.Repository
		datasetCfg config.Dataset
	)

	return &cli.Command{
		Name:  "import",
		Usage: "Store a dataset file in the configured backend, replacing stored data",
		Flags: joinFlags(repoCfg.Flags(), datasetCfg.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			if !datasetCfg.IsConfigured() {
				return goerr.New("--dataset is required")
			}
			if repoCfg.Backend() == "memory" {
				return goerr.New("import needs a persistent backend (--sqlite-path or --firestore-project)")
			}

			dataset, err := datasetCfg.Load()
			if err != nil {
				return err
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			locations, incidents := flattenDataset(dataset)
			if err := repo.ReplaceDataset(ctx, locations, incidents); err != nil {
				return goerr.Wrap(err, "failed to store dataset")
			}

			logger.Info("Dataset imported",
				slog.Any("repository", repoCfg),
				slog.Any("dataset", datasetCfg),
				slog.Int("incidents", len(dataset.Incidents)),
			)
			return nil
		},
	}
}

// flattenDataset returns the stored form of a loaded dataset
func flattenDataset(dataset *model.Dataset) ([]*model.LocationRecord, []*model.Incident) {
	return model.FlattenForest(dataset.Locations), dataset.Incidents
}
