package model

import (
	"maps"
	"slices"
	"time"

	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

// DefaultSafetyScore is the score of a location without any incident
const DefaultSafetyScore = 100.0

// SeverityCounts holds per-severity incident counts
type SeverityCounts struct {
	Low      int `json:"low" firestore:"low"`
	Medium   int `json:"medium" firestore:"medium"`
	High     int `json:"high" firestore:"high"`
	Critical int `json:"critical" firestore:"critical"`
}

// Add returns the bucket-wise sum
func (c SeverityCounts) Add(o SeverityCounts) SeverityCounts {
	return SeverityCounts{
		Low:      c.Low + o.Low,
		Medium:   c.Medium + o.Medium,
		High:     c.High + o.High,
		Critical: c.Critical + o.Critical,
	}
}

// Increment counts one incident of the given severity. None is not bucketed.
func (c *SeverityCounts) Increment(s types.Severity) {
	switch s {
	case types.SeverityLow:
		c.Low++
	case types.SeverityMedium:
		c.Medium++
	case types.SeverityHigh:
		c.High++
	case types.SeverityCritical:
		c.Critical++
	}
}

// Total returns the sum of all buckets
func (c SeverityCounts) Total() int {
	return c.Low + c.Medium + c.High + c.Critical
}

// StatusCounts holds per-status incident counts
type StatusCounts struct {
	Triage     int `json:"triage" firestore:"triage"`
	Handling   int `json:"handling" firestore:"handling"`
	Monitoring int `json:"monitoring" firestore:"monitoring"`
	Closed     int `json:"closed" firestore:"closed"`
}

// Add returns the bucket-wise sum
func (c StatusCounts) Add(o StatusCounts) StatusCounts {
	return StatusCounts{
		Triage:     c.Triage + o.Triage,
		Handling:   c.Handling + o.Handling,
		Monitoring: c.Monitoring + o.Monitoring,
		Closed:     c.Closed + o.Closed,
	}
}

// Increment counts one incident of the given status
func (c *StatusCounts) Increment(s types.IncidentStatus) {
	switch s {
	case types.IncidentStatusTriage:
		c.Triage++
	case types.IncidentStatusHandling:
		c.Handling++
	case types.IncidentStatusMonitoring:
		c.Monitoring++
	case types.IncidentStatusClosed:
		c.Closed++
	}
}

// LocationRiskData is the risk snapshot of one location. A base snapshot
// carries only incidents reported directly at the location; a rolled-up
// snapshot aggregates the whole subtree.
type LocationRiskData struct {
	LocationID            types.LocationID    `json:"locationId"`
	DirectCount           int                 `json:"directCount"`
	TotalCount            int                 `json:"totalCount"`
	BySeverity            SeverityCounts      `json:"bySeverity"`
	ByStatus              StatusCounts        `json:"byStatus"`
	ByType                map[string]int      `json:"byType"`
	HighestSeverity       types.Severity      `json:"highestSeverity"`
	DaysSinceLastIncident *int                `json:"daysSinceLastIncident"`
	LastIncidentDate      *time.Time          `json:"lastIncidentDate"`
	Trend                 types.Trend         `json:"trend"`
	TrendPercentage       float64             `json:"trendPercentage"`
	SafetyScore           float64             `json:"safetyScore"`
	SparklineData         []int               `json:"sparklineData"`
	FloorPlanIncidents    []FloorPlanIncident `json:"floorPlanIncidents"`
}

// NewEmptyRiskData returns the zeroed snapshot used for locations without data
func NewEmptyRiskData(id types.LocationID) *LocationRiskData {
	return &LocationRiskData{
		LocationID:      id,
		ByType:          map[string]int{},
		HighestSeverity: types.SeverityNone,
		Trend:           types.TrendStable,
		SafetyScore:     DefaultSafetyScore,
	}
}

// HasIncidentData returns true if any incident timing data is present
func (d *LocationRiskData) HasIncidentData() bool {
	return d.DaysSinceLastIncident != nil || d.LastIncidentDate != nil
}

// Clone returns a deep copy of the snapshot
func (d *LocationRiskData) Clone() *LocationRiskData {
	if d == nil {
		return nil
	}

	c := *d
	c.ByType = maps.Clone(d.ByType)
	if c.ByType == nil {
		c.ByType = map[string]int{}
	}
	if d.DaysSinceLastIncident != nil {
		days := *d.DaysSinceLastIncident
		c.DaysSinceLastIncident = &days
	}
	if d.LastIncidentDate != nil {
		date := *d.LastIncidentDate
		c.LastIncidentDate = &date
	}
	c.SparklineData = slices.Clone(d.SparklineData)
	c.FloorPlanIncidents = slices.Clone(d.FloorPlanIncidents)
	return &c
}

// RiskDataMap maps location IDs to risk snapshots
type RiskDataMap map[types.LocationID]*LocationRiskData

// Get returns the snapshot of a location
func (m RiskDataMap) Get(id types.LocationID) (*LocationRiskData, bool) {
	d, ok := m[id]
	return d, ok
}

// IDs returns the location IDs of the map in sorted order
func (m RiskDataMap) IDs() []types.LocationID {
	ids := slices.Collect(maps.Keys(m))
	slices.Sort(ids)
	return ids
}
