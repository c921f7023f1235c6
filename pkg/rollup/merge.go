package rollup

import (
	"time"

	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

// Merge folds a child's rolled-up snapshot into a parent's accumulated
// snapshot and returns the union as a new snapshot. Neither input is
// modified.
//
// DirectCount and LocationID are the parent's: the parent's own incidents
// are already part of its TotalCount, so only the child's TotalCount is added.
// The trend direction follows a precedence table while the trend percentage
// is the plain mean of both sides.
func Merge(parent, child *model.LocationRiskData) *model.LocationRiskData {
	if parent == nil {
		parent = model.NewEmptyRiskData("")
	}
	if child == nil {
		child = model.NewEmptyRiskData("")
	}

	return &model.LocationRiskData{
		LocationID:            parent.LocationID,
		DirectCount:           parent.DirectCount,
		TotalCount:            parent.TotalCount + child.TotalCount,
		BySeverity:            parent.BySeverity.Add(child.BySeverity),
		ByStatus:              parent.ByStatus.Add(child.ByStatus),
		ByType:                mergeTypeCounts(parent.ByType, child.ByType),
		HighestSeverity:       types.MaxSeverity(parent.HighestSeverity, child.HighestSeverity),
		DaysSinceLastIncident: minDays(parent.DaysSinceLastIncident, child.DaysSinceLastIncident),
		LastIncidentDate:      laterDate(parent, child),
		Trend:                 types.CombineTrend(parent.Trend, child.Trend),
		TrendPercentage:       (parent.TrendPercentage + child.TrendPercentage) / 2,
		SafetyScore:           weightedSafetyScore(parent, child),
		SparklineData:         sumSeries(parent.SparklineData, child.SparklineData),
		FloorPlanIncidents:    concatPins(parent.FloorPlanIncidents, child.FloorPlanIncidents),
	}
}

func mergeTypeCounts(a, b map[string]int) map[string]int {
	out := make(map[string]int, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] += v
	}
	return out
}

// minDays treats nil as +inf; both nil stays nil (no data, not zero days)
func minDays(a, b *int) *int {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		v := *a
		return &v
	case *b < *a:
		v := *b
		return &v
	default:
		v := *a
		return &v
	}
}

func laterDate(parent, child *model.LocationRiskData) *time.Time {
	a, b := parent.LastIncidentDate, child.LastIncidentDate
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		v := *a
		return &v
	case b.After(*a):
		v := *b
		return &v
	default:
		v := *a
		return &v
	}
}

func weightedSafetyScore(parent, child *model.LocationRiskData) float64 {
	weight := parent.TotalCount + child.TotalCount
	if weight == 0 {
		return parent.SafetyScore
	}
	return (parent.SafetyScore*float64(parent.TotalCount) + child.SafetyScore*float64(child.TotalCount)) / float64(weight)
}

// sumSeries adds two series element-wise over the longer length. A missing
// series passes the other through; two missing series stay missing.
func sumSeries(a, b []int) []int {
	if a == nil && b == nil {
		return nil
	}
	if a == nil {
		return append([]int{}, b...)
	}
	if b == nil {
		return append([]int{}, a...)
	}

	n := max(len(a), len(b))
	out := make([]int, n)
	for i := range out {
		if i < len(a) {
			out[i] += a[i]
		}
		if i < len(b) {
			out[i] += b[i]
		}
	}
	return out
}

func concatPins(a, b []model.FloorPlanIncident) []model.FloorPlanIncident {
	out := make([]model.FloorPlanIncident, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
