package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Dataset holds the path of a dataset file
type Dataset struct {
	Path string
}

// Flags returns CLI flags for Dataset configuration
func (d *Dataset) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "dataset",
			Aliases:     []string{"d"},
			Usage:       "Dataset file (YAML or JSON) with locations and incidents",
			Category:    "Dataset",
			Sources:     cli.EnvVars("RISKMAP_DATASET"),
			Destination: &d.Path,
		},
	}
}

// IsConfigured checks if a dataset file is given
func (d *Dataset) IsConfigured() bool {
	return d.Path != ""
}

// Load loads the configured dataset file
func (d *Dataset) Load() (*model.Dataset, error) {
	return LoadDataset(d.Path)
}

// LogValue returns structured log value
func (d Dataset) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", d.Path),
	)
}

// LoadDataset loads a dataset from a YAML or JSON file. Files with a .json
// extension are read as JSON, anything else as YAML.
func LoadDataset(path string) (*model.Dataset, error) {
	if path == "" {
		return nil, goerr.New("dataset file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(err, "dataset file not found",
				goerr.V("path", path))
		}
		return nil, goerr.Wrap(err, "failed to read dataset file",
			goerr.V("path", path))
	}

	var dataset model.Dataset
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &dataset); err != nil {
			return nil, goerr.Wrap(err, "failed to parse JSON dataset",
				goerr.V("path", path))
		}
	} else {
		if err := yaml.Unmarshal(data, &dataset); err != nil {
			return nil, goerr.Wrap(err, "failed to parse YAML dataset",
				goerr.V("path", path))
		}
	}

	dataset.Normalize()
	if err := dataset.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid dataset",
			goerr.V("path", path))
	}

	return &dataset, nil
}
