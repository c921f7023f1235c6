package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
	"github.com/secmon-lab/riskmap/pkg/repository"
	"github.com/secmon-lab/riskmap/pkg/rollup"
	"github.com/secmon-lab/riskmap/pkg/usecase"
)

var asOf = time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

func sampleDataset() *model.Dataset {
	return &model.Dataset{
		Locations: []*model.Location{
			{ID: "campus", Name: "Campus", Children: []*model.Location{
				{ID: "bldg-a", Name: "Building A", Children: []*model.Location{
					{ID: "floor-1", Name: "Floor 1"},
				}},
				{ID: "bldg-b", Name: "Building B"},
			}},
		},
		Incidents: []*model.Incident{
			{ID: "i1", LocationID: "floor-1", Type: "fire", Severity: types.SeverityCritical, Status: types.IncidentStatusTriage, ReportedAt: asOf.Add(-48 * time.Hour)},
			{ID: "i2", LocationID: "floor-1", Type: "slip", Severity: types.SeverityLow, Status: types.IncidentStatusClosed, ReportedAt: asOf.Add(-10 * 24 * time.Hour)},
			{ID: "i3", LocationID: "bldg-b", Severity: types.SeverityMedium, ReportedAt: asOf.Add(-5 * 24 * time.Hour)},
			{ID: "i4", LocationID: "parking", Severity: types.SeverityHigh, Status: types.IncidentStatusHandling, ReportedAt: asOf.Add(-time.Hour)},
		},
	}
}

func newRisk(t *testing.T, opts ...usecase.RiskOption) *usecase.Risk {
	t.Helper()
	repo := repository.NewMemory()
	opts = append([]usecase.RiskOption{usecase.WithClock(func() time.Time { return asOf })}, opts...)
	uc := usecase.NewRisk(repo, usecase.NewRiskConfig(opts...))
	gt.NoError(t, uc.ImportDataset(context.Background(), sampleDataset())).Required()
	return uc
}

func TestRiskRollup(t *testing.T) {
	ctx := context.Background()
	uc := newRisk(t)

	result, err := uc.Rollup(ctx)
	gt.NoError(t, err).Required()

	campus, ok := result.Get("campus")
	gt.True(t, ok)
	gt.Equal(t, campus.TotalCount, 3)
	gt.Equal(t, campus.DirectCount, 0)
	gt.Equal(t, campus.HighestSeverity, types.SeverityCritical)
	gt.Equal(t, campus.ByType, map[string]int{"fire": 1, "slip": 1, model.UnknownIncidentType: 1})
	gt.Equal(t, *campus.DaysSinceLastIncident, 2)

	floor, ok := result.Get("floor-1")
	gt.True(t, ok)
	gt.Equal(t, floor.DirectCount, 2)
	gt.Equal(t, floor.SafetyScore, 75.0)

	t.Run("incident at unknown location is kept as orphan", func(t *testing.T) {
		parking, ok := result.Get("parking")
		gt.True(t, ok)
		gt.Equal(t, parking.TotalCount, 1)
		gt.Equal(t, result.Stats.Orphans, 1)
	})

	t.Run("max depth stops the rollup", func(t *testing.T) {
		shallow, err := uc.Rollup(ctx, rollup.WithMaxDepth(0))
		gt.NoError(t, err).Required()
		campus, ok := shallow.Get("campus")
		gt.True(t, ok)
		gt.Equal(t, campus.TotalCount, 0)
	})

	t.Run("direct only returns base values", func(t *testing.T) {
		direct, err := uc.Rollup(ctx, rollup.WithDirectOnly(true))
		gt.NoError(t, err).Required()
		_, ok := direct.Get("campus")
		gt.False(t, ok)
		bldg, ok := direct.Get("bldg-b")
		gt.True(t, ok)
		gt.Equal(t, bldg.TotalCount, 1)
	})
}

func TestRiskConfiguredDefaults(t *testing.T) {
	ctx := context.Background()
	uc := newRisk(t,
		usecase.WithRollupOptions(rollup.WithDirectOnly(true)),
		usecase.WithBaseOptions(rollup.WithSparkline(4, 24*time.Hour)),
	)

	result, err := uc.Rollup(ctx)
	gt.NoError(t, err).Required()
	gt.True(t, result.Options.DirectOnly)

	floor, ok := result.Get("floor-1")
	gt.True(t, ok)
	gt.Equal(t, floor.SparklineData, []int{0, 0, 1, 0})

	t.Run("call options override defaults", func(t *testing.T) {
		result, err := uc.Rollup(ctx, rollup.WithDirectOnly(false))
		gt.NoError(t, err).Required()
		_, ok := result.Get("campus")
		gt.True(t, ok)
	})
}

func TestRiskLocationRisk(t *testing.T) {
	ctx := context.Background()
	uc := newRisk(t)

	data, err := uc.LocationRisk(ctx, "bldg-a")
	gt.NoError(t, err).Required()
	gt.Equal(t, data.TotalCount, 2)

	_, err = uc.LocationRisk(ctx, "nowhere")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrLocationNotFound))
}

func TestRiskSubtree(t *testing.T) {
	ctx := context.Background()
	uc := newRisk(t)

	ids, err := uc.Subtree(ctx, "campus")
	gt.NoError(t, err).Required()
	gt.Equal(t, ids, []types.LocationID{"campus", "bldg-a", "floor-1", "bldg-b"})

	_, err = uc.Subtree(ctx, "nowhere")
	gt.True(t, errors.Is(err, model.ErrLocationNotFound))
}

func TestRiskLocations(t *testing.T) {
	uc := newRisk(t)

	roots, err := uc.Locations(context.Background())
	gt.NoError(t, err).Required()
	gt.A(t, roots).Length(1)
	gt.Equal(t, roots[0].Name, "Campus")
	gt.Equal(t, roots[0].Children[0].ID, types.LocationID("bldg-a"))
	gt.Equal(t, roots[0].Children[1].ID, types.LocationID("bldg-b"))
}

func TestRiskImportDataset(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewRisk(repository.NewMemory(), usecase.NewRiskConfig(
		usecase.WithClock(func() time.Time { return asOf }),
	))

	t.Run("invalid dataset is rejected", func(t *testing.T) {
		ds := sampleDataset()
		ds.Locations[0].Children[1].ID = "bldg-a"
		err := uc.ImportDataset(ctx, ds)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrInvalidDataset))

		roots, err := uc.Locations(ctx)
		gt.NoError(t, err)
		gt.A(t, roots).Length(0)
	})

	t.Run("nil dataset is rejected", func(t *testing.T) {
		gt.True(t, errors.Is(uc.ImportDataset(ctx, nil), model.ErrInvalidDataset))
	})

	t.Run("import warms up the rollup", func(t *testing.T) {
		gt.NoError(t, uc.ImportDataset(ctx, sampleDataset())).Required()

		deadline := time.Now().Add(5 * time.Second)
		for uc.Latest() == nil && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		latest := uc.Latest()
		gt.V(t, latest).NotNil()
		campus, ok := latest.Get("campus")
		gt.True(t, ok)
		gt.Equal(t, campus.TotalCount, 3)
	})
}
