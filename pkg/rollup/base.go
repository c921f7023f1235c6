package rollup

import (
	"math"
	"sort"
	"time"

	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

const (
	// DefaultSparklineBuckets is the number of periods in a sparkline
	DefaultSparklineBuckets = 12
	// DefaultSparklinePeriod is the length of one sparkline period
	DefaultSparklinePeriod = 7 * 24 * time.Hour

	// trendThreshold is the change in percent between the two sparkline
	// halves above which a trend is no longer stable
	trendThreshold = 10.0
)

// severityPenalty is subtracted from the safety score per open incident
var severityPenalty = map[types.Severity]float64{
	types.SeverityLow:      2,
	types.SeverityMedium:   5,
	types.SeverityHigh:     10,
	types.SeverityCritical: 25,
}

// BaseConfig holds configuration for BuildBaseMap
type BaseConfig struct {
	referenceTime    time.Time
	sparklineBuckets int
	sparklinePeriod  time.Duration
}

// BaseOption is a functional option for BuildBaseMap
type BaseOption func(*BaseConfig)

// WithReferenceTime sets the time days and sparkline windows are measured from
func WithReferenceTime(t time.Time) BaseOption {
	return func(c *BaseConfig) {
		c.referenceTime = t
	}
}

// WithSparkline sets the number and length of sparkline periods. A bucket
// count of 0 disables sparklines and trends.
func WithSparkline(buckets int, period time.Duration) BaseOption {
	return func(c *BaseConfig) {
		c.sparklineBuckets = max(buckets, 0)
		if period > 0 {
			c.sparklinePeriod = period
		}
	}
}

// BuildBaseMap derives the direct-only snapshot of every location that has
// at least one incident. Incidents without a location are ignored.
func BuildBaseMap(incidents []*model.Incident, opts ...BaseOption) model.RiskDataMap {
	cfg := &BaseConfig{
		referenceTime:    time.Now(),
		sparklineBuckets: DefaultSparklineBuckets,
		sparklinePeriod:  DefaultSparklinePeriod,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	byLocation := make(map[types.LocationID][]*model.Incident)
	for _, inc := range incidents {
		if inc == nil || inc.LocationID == "" {
			continue
		}
		byLocation[inc.LocationID] = append(byLocation[inc.LocationID], inc)
	}

	out := make(model.RiskDataMap, len(byLocation))
	for id, list := range byLocation {
		out[id] = buildLocationBase(id, list, cfg)
	}
	return out
}

func buildLocationBase(id types.LocationID, incidents []*model.Incident, cfg *BaseConfig) *model.LocationRiskData {
	sort.SliceStable(incidents, func(i, j int) bool {
		if !incidents[i].ReportedAt.Equal(incidents[j].ReportedAt) {
			return incidents[i].ReportedAt.Before(incidents[j].ReportedAt)
		}
		return incidents[i].ID < incidents[j].ID
	})

	d := model.NewEmptyRiskData(id)
	d.DirectCount = len(incidents)
	d.TotalCount = len(incidents)

	var last time.Time
	penalty := 0.0
	for _, inc := range incidents {
		d.BySeverity.Increment(inc.Severity)
		d.ByStatus.Increment(inc.Status)
		d.ByType[inc.TypeOrUnknown()]++
		d.HighestSeverity = types.MaxSeverity(d.HighestSeverity, inc.Severity)

		if inc.ReportedAt.After(last) {
			last = inc.ReportedAt
		}
		if inc.Status.IsOpen() {
			penalty += severityPenalty[inc.Severity]
		}
		if pin, ok := inc.FloorPlanIncident(); ok {
			d.FloorPlanIncidents = append(d.FloorPlanIncidents, pin)
		}
	}

	if !last.IsZero() {
		lastDate := last
		d.LastIncidentDate = &lastDate
		days := max(int(math.Floor(cfg.referenceTime.Sub(last).Hours()/24)), 0)
		d.DaysSinceLastIncident = &days
	}

	d.SafetyScore = math.Max(0, model.DefaultSafetyScore-penalty)

	if cfg.sparklineBuckets > 0 {
		d.SparklineData = buildSparkline(incidents, cfg)
		d.Trend, d.TrendPercentage = trendOf(d.SparklineData)
	}

	return d
}

// buildSparkline counts incidents per period, oldest period first, over the
// window ending at the reference time
func buildSparkline(incidents []*model.Incident, cfg *BaseConfig) []int {
	series := make([]int, cfg.sparklineBuckets)
	window := time.Duration(cfg.sparklineBuckets) * cfg.sparklinePeriod
	start := cfg.referenceTime.Add(-window)

	for _, inc := range incidents {
		if inc.ReportedAt.Before(start) || inc.ReportedAt.After(cfg.referenceTime) {
			continue
		}
		idx := int(inc.ReportedAt.Sub(start) / cfg.sparklinePeriod)
		if idx >= cfg.sparklineBuckets {
			idx = cfg.sparklineBuckets - 1
		}
		series[idx]++
	}
	return series
}

// trendOf compares the recent half of a series with the half before it
func trendOf(series []int) (types.Trend, float64) {
	half := len(series) / 2
	if half == 0 {
		return types.TrendStable, 0
	}

	recent := sum(series[len(series)-half:])
	previous := sum(series[len(series)-2*half : len(series)-half])

	if previous == 0 {
		if recent > 0 {
			return types.TrendWorsening, 100
		}
		return types.TrendStable, 0
	}

	change := float64(recent-previous) / float64(previous) * 100
	pct := math.Round(math.Abs(change)*10) / 10
	switch {
	case change > trendThreshold:
		return types.TrendWorsening, pct
	case change < -trendThreshold:
		return types.TrendImproving, pct
	default:
		return types.TrendStable, pct
	}
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
