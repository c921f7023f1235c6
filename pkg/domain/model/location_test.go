package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

func ids(nodes []*model.Location) []types.LocationID {
	out := make([]types.LocationID, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestBuildForest(t *testing.T) {
	records := []*model.LocationRecord{
		{ID: "floor-2", ParentID: "bldg-a", Position: 1},
		{ID: "campus"},
		{ID: "floor-1", ParentID: "bldg-a", Position: 0},
		{ID: "bldg-b", ParentID: "campus", Position: 1},
		{ID: "bldg-a", ParentID: "campus", Position: 0},
		{ID: "warehouse", ParentID: "missing-parent"},
	}

	roots, unattached := model.BuildForest(records)

	gt.Equal(t, ids(roots), []types.LocationID{"campus", "warehouse"})
	gt.Equal(t, ids(roots[0].Children), []types.LocationID{"bldg-a", "bldg-b"})
	gt.Equal(t, ids(roots[0].Children[0].Children), []types.LocationID{"floor-1", "floor-2"})
	gt.A(t, unattached).Length(0)

	t.Run("parent cycles are reported as unattached", func(t *testing.T) {
		records := []*model.LocationRecord{
			{ID: "root"},
			{ID: "a", ParentID: "b"},
			{ID: "b", ParentID: "a"},
		}
		roots, unattached := model.BuildForest(records)
		gt.Equal(t, ids(roots), []types.LocationID{"root"})
		gt.Equal(t, unattached, []types.LocationID{"a", "b"})
	})

	t.Run("duplicate records keep the first", func(t *testing.T) {
		records := []*model.LocationRecord{
			{ID: "x", Name: "first"},
			{ID: "x", Name: "second"},
			nil,
			{ID: ""},
		}
		roots, _ := model.BuildForest(records)
		gt.A(t, roots).Length(1)
		gt.Equal(t, roots[0].Name, "first")
	})
}

func TestFlattenForest(t *testing.T) {
	shared := &model.Location{ID: "shared"}
	forest := []*model.Location{
		{ID: "campus", Name: "Campus", Children: []*model.Location{
			{ID: "bldg-a", Children: []*model.Location{shared}},
			{ID: "bldg-b", Children: []*model.Location{shared}},
		}},
	}

	records := model.FlattenForest(forest)
	gt.A(t, records).Length(4)
	gt.Equal(t, *records[0], model.LocationRecord{ID: "campus", Name: "Campus"})
	gt.Equal(t, *records[1], model.LocationRecord{ID: "bldg-a", ParentID: "campus"})
	gt.Equal(t, *records[2], model.LocationRecord{ID: "shared", ParentID: "bldg-a"})
	gt.Equal(t, *records[3], model.LocationRecord{ID: "bldg-b", ParentID: "campus", Position: 1})

	t.Run("round trip through BuildForest", func(t *testing.T) {
		roots, unattached := model.BuildForest(records)
		gt.A(t, unattached).Length(0)
		gt.Equal(t, ids(roots), []types.LocationID{"campus"})
		gt.Equal(t, ids(roots[0].Children), []types.LocationID{"bldg-a", "bldg-b"})
	})
}

func TestLocationRecordValidate(t *testing.T) {
	gt.NoError(t, (&model.LocationRecord{ID: "a", ParentID: "b"}).Validate())
	gt.Error(t, (&model.LocationRecord{}).Validate())
	gt.Error(t, (&model.LocationRecord{ID: "a", ParentID: "a"}).Validate())
}
