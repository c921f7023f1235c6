package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
	"github.com/secmon-lab/riskmap/pkg/rollup"
	"github.com/secmon-lab/riskmap/pkg/utils/async"
	"golang.org/x/sync/errgroup"
)

// RiskConfig holds configuration for Risk use case
type RiskConfig struct {
	rollupOpts []rollup.Option
	baseOpts   []rollup.BaseOption
	clock      func() time.Time
}

// RiskOption is a functional option for configuring Risk
type RiskOption func(*RiskConfig)

// WithRollupOptions sets the default options of every rollup pass
func WithRollupOptions(opts ...rollup.Option) RiskOption {
	return func(c *RiskConfig) {
		c.rollupOpts = append(c.rollupOpts, opts...)
	}
}

// WithBaseOptions sets the options used to derive base snapshots from incidents
func WithBaseOptions(opts ...rollup.BaseOption) RiskOption {
	return func(c *RiskConfig) {
		c.baseOpts = append(c.baseOpts, opts...)
	}
}

// WithClock sets the source of the reference time
func WithClock(clock func() time.Time) RiskOption {
	return func(c *RiskConfig) {
		c.clock = clock
	}
}

// NewRiskConfig creates a new RiskConfig with default values and optional settings
func NewRiskConfig(opts ...RiskOption) *RiskConfig {
	config := &RiskConfig{
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// Risk serves rolled-up risk data of the stored location hierarchy
type Risk struct {
	repo   interfaces.Repository
	query  *RiskQuery
	config *RiskConfig
}

// NewRisk creates a new Risk use case
func NewRisk(repo interfaces.Repository, config *RiskConfig) *Risk {
	if config == nil {
		config = NewRiskConfig()
	}
	return &Risk{
		repo:   repo,
		query:  NewRiskQuery(),
		config: config,
	}
}

type snapshot struct {
	roots     []*model.Location
	incidents []*model.Incident
}

func (u *Risk) load(ctx context.Context) (*snapshot, error) {
	var (
		records   []*model.LocationRecord
		incidents []*model.Incident
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		records, err = u.repo.ListLocations(egCtx)
		if err != nil {
			return goerr.Wrap(err, "failed to list locations")
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		incidents, err = u.repo.ListIncidents(egCtx)
		if err != nil {
			return goerr.Wrap(err, "failed to list incidents")
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	roots, unattached := model.BuildForest(records)
	if len(unattached) > 0 {
		ctxlog.From(ctx).Warn("locations not reachable from any root are ignored",
			"count", len(unattached),
			"ids", unattached,
		)
	}

	return &snapshot{roots: roots, incidents: incidents}, nil
}

// Locations returns the stored location hierarchy
func (u *Risk) Locations(ctx context.Context) ([]*model.Location, error) {
	snap, err := u.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.roots, nil
}

// Rollup computes the rolled-up risk map of the stored hierarchy. opts are
// applied after the configured defaults.
func (u *Risk) Rollup(ctx context.Context, opts ...rollup.Option) (*rollup.Result, error) {
	snap, err := u.load(ctx)
	if err != nil {
		return nil, err
	}

	baseOpts := append([]rollup.BaseOption{rollup.WithReferenceTime(u.config.clock())}, u.config.baseOpts...)
	base := rollup.BuildBaseMap(snap.incidents, baseOpts...)

	rollupOpts := append(append([]rollup.Option{}, u.config.rollupOpts...), opts...)
	return u.query.Update(ctx, snap.roots, base, rollupOpts...)
}

// LocationRisk returns the rolled-up snapshot of a single location
func (u *Risk) LocationRisk(ctx context.Context, id types.LocationID, opts ...rollup.Option) (*model.LocationRiskData, error) {
	result, err := u.Rollup(ctx, opts...)
	if err != nil {
		return nil, err
	}

	data, ok := result.Get(id)
	if !ok {
		return nil, goerr.Wrap(model.ErrLocationNotFound, "no risk data for location", goerr.V("location_id", id))
	}
	return data, nil
}

// Subtree returns the IDs of a location's subtree in pre-order
func (u *Risk) Subtree(ctx context.Context, id types.LocationID) ([]types.LocationID, error) {
	roots, err := u.Locations(ctx)
	if err != nil {
		return nil, err
	}

	index := rollup.BuildChildrenIndex(roots)
	if _, err := u.repo.GetLocation(ctx, id); err != nil {
		return nil, goerr.Wrap(err, "failed to get location", goerr.V("location_id", id))
	}
	return index.Subtree(id), nil
}

// ImportDataset validates and stores a dataset, replacing the stored one.
// The rollup of the new dataset is computed in the background.
func (u *Risk) ImportDataset(ctx context.Context, dataset *model.Dataset) error {
	if dataset == nil {
		return goerr.Wrap(model.ErrInvalidDataset, "dataset is nil")
	}

	dataset.Normalize()
	if err := dataset.Validate(); err != nil {
		return err
	}

	records := model.FlattenForest(dataset.Locations)
	if err := u.repo.ReplaceDataset(ctx, records, dataset.Incidents); err != nil {
		return goerr.Wrap(err, "failed to store dataset")
	}

	ctxlog.From(ctx).Info("dataset imported",
		"locations", len(records),
		"incidents", len(dataset.Incidents),
	)

	async.Dispatch(ctx, "rollup-warm-up", func(ctx context.Context) error {
		_, err := u.Rollup(ctx)
		return err
	})

	return nil
}

// Latest returns the result of the most recent rollup, or nil
func (u *Risk) Latest() *rollup.Result {
	return u.query.Result()
}
