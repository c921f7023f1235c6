package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

func TestNewEmptyRiskData(t *testing.T) {
	d := model.NewEmptyRiskData("zone-1")
	gt.Equal(t, d.LocationID, types.LocationID("zone-1"))
	gt.Equal(t, d.TotalCount, 0)
	gt.Equal(t, d.HighestSeverity, types.SeverityNone)
	gt.Equal(t, d.Trend, types.TrendStable)
	gt.Equal(t, d.SafetyScore, model.DefaultSafetyScore)
	gt.V(t, d.DaysSinceLastIncident).Nil()
	gt.V(t, d.SparklineData).Nil()
	gt.False(t, d.HasIncidentData())
}

func TestLocationRiskDataClone(t *testing.T) {
	days := 4
	last := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := &model.LocationRiskData{
		LocationID:            "a",
		TotalCount:            3,
		ByType:                map[string]int{"fire": 3},
		DaysSinceLastIncident: &days,
		LastIncidentDate:      &last,
		SparklineData:         []int{1, 2},
		FloorPlanIncidents:    []model.FloorPlanIncident{{IncidentID: "i"}},
	}

	c := orig.Clone()
	c.ByType["fire"] = 99
	*c.DaysSinceLastIncident = 0
	*c.LastIncidentDate = last.Add(time.Hour)
	c.SparklineData[0] = 42
	c.FloorPlanIncidents[0].IncidentID = "changed"

	gt.Equal(t, orig.ByType["fire"], 3)
	gt.Equal(t, *orig.DaysSinceLastIncident, 4)
	gt.True(t, orig.LastIncidentDate.Equal(last))
	gt.Equal(t, orig.SparklineData[0], 1)
	gt.Equal(t, orig.FloorPlanIncidents[0].IncidentID, types.IncidentID("i"))
	gt.True(t, orig.HasIncidentData())

	t.Run("nil clone", func(t *testing.T) {
		var d *model.LocationRiskData
		gt.V(t, d.Clone()).Nil()
	})
}

func TestSeverityCounts(t *testing.T) {
	var c model.SeverityCounts
	c.Increment(types.SeverityLow)
	c.Increment(types.SeverityCritical)
	c.Increment(types.SeverityCritical)
	c.Increment(types.SeverityNone)

	gt.Equal(t, c, model.SeverityCounts{Low: 1, Critical: 2})
	gt.Equal(t, c.Total(), 3)
	gt.Equal(t, c.Add(model.SeverityCounts{Medium: 1, Critical: 1}), model.SeverityCounts{Low: 1, Medium: 1, Critical: 3})
}

func TestStatusCounts(t *testing.T) {
	var c model.StatusCounts
	c.Increment(types.IncidentStatusTriage)
	c.Increment(types.IncidentStatusClosed)
	c.Increment(types.IncidentStatus("bogus"))

	gt.Equal(t, c, model.StatusCounts{Triage: 1, Closed: 1})
	gt.Equal(t, c.Add(c), model.StatusCounts{Triage: 2, Closed: 2})
}

func TestRiskDataMapIDs(t *testing.T) {
	m := model.RiskDataMap{
		"b": model.NewEmptyRiskData("b"),
		"a": model.NewEmptyRiskData("a"),
	}
	gt.Equal(t, m.IDs(), []types.LocationID{"a", "b"})

	d, ok := m.Get("a")
	gt.True(t, ok)
	gt.Equal(t, d.LocationID, types.LocationID("a"))
}
