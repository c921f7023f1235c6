package interfaces

import (
	"context"

	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
	"github.com/secmon-lab/riskmap/pkg/rollup"
)

// Risk defines the interface for risk rollup queries
type Risk interface {
	// Locations returns the stored location hierarchy
	Locations(ctx context.Context) ([]*model.Location, error)

	// Rollup computes the rolled-up risk map
	Rollup(ctx context.Context, opts ...rollup.Option) (*rollup.Result, error)

	// LocationRisk returns the rolled-up snapshot of a single location
	LocationRisk(ctx context.Context, id types.LocationID, opts ...rollup.Option) (*model.LocationRiskData, error)

	// Subtree returns the IDs of a location's subtree in pre-order
	Subtree(ctx context.Context, id types.LocationID) ([]types.LocationID, error)

	// ImportDataset replaces the stored dataset
	ImportDataset(ctx context.Context, dataset *model.Dataset) error
}
