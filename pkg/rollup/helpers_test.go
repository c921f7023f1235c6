package rollup_test

import (
	"time"

	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

func loc(id string, children ...*model.Location) *model.Location {
	return &model.Location{ID: types.LocationID(id), Name: id, Children: children}
}

func direct(id string, count int, sev types.Severity) *model.LocationRiskData {
	d := model.NewEmptyRiskData(types.LocationID(id))
	d.DirectCount = count
	d.TotalCount = count
	d.HighestSeverity = sev
	switch sev {
	case types.SeverityLow:
		d.BySeverity.Low = count
	case types.SeverityMedium:
		d.BySeverity.Medium = count
	case types.SeverityHigh:
		d.BySeverity.High = count
	case types.SeverityCritical:
		d.BySeverity.Critical = count
	}
	d.ByStatus.Triage = count
	return d
}

func intPtr(v int) *int {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
