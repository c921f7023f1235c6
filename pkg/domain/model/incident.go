package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

// UnknownIncidentType is used for incidents reported without a type
const UnknownIncidentType = "unknown"

// FloorPlanPin is the position of an incident on a floor plan, in percent
// of the plan's width and height
type FloorPlanPin struct {
	X float64 `json:"x" yaml:"x" firestore:"x"`
	Y float64 `json:"y" yaml:"y" firestore:"y"`
}

// FloorPlanIncident is an incident pin shown on a floor plan
type FloorPlanIncident struct {
	IncidentID types.IncidentID `json:"incidentId"`
	LocationID types.LocationID `json:"locationId"`
	Severity   types.Severity   `json:"severity"`
	X          float64          `json:"x"`
	Y          float64          `json:"y"`
	ReportedAt time.Time        `json:"reportedAt"`
}

// Incident is an incident attributed to a location
type Incident struct {
	ID         types.IncidentID     `json:"id" yaml:"id" firestore:"id"`
	LocationID types.LocationID     `json:"locationId" yaml:"location_id" firestore:"location_id"`
	Title      string               `json:"title" yaml:"title" firestore:"title"`
	Type       string               `json:"type" yaml:"type" firestore:"type"`
	Severity   types.Severity       `json:"severity" yaml:"severity" firestore:"severity"`
	Status     types.IncidentStatus `json:"status" yaml:"status" firestore:"status"`
	ReportedAt time.Time            `json:"reportedAt" yaml:"reported_at" firestore:"reported_at"`
	Pin        *FloorPlanPin        `json:"pin,omitempty" yaml:"pin,omitempty" firestore:"pin"`
}

// NewIncident creates a new Incident in triage status
func NewIncident(locationID types.LocationID, title, incidentType string, severity types.Severity, reportedAt time.Time) (*Incident, error) {
	incident := &Incident{
		ID:         types.NewIncidentID(),
		LocationID: locationID,
		Title:      title,
		Type:       incidentType,
		Severity:   severity,
		Status:     types.IncidentStatusTriage,
		ReportedAt: reportedAt,
	}
	if err := incident.Validate(); err != nil {
		return nil, err
	}
	return incident, nil
}

// Validate validates the incident
func (i *Incident) Validate() error {
	if i.ID == "" {
		return goerr.New("incident ID is required")
	}
	if i.LocationID == "" {
		return goerr.New("location ID is required", goerr.V("incident_id", i.ID))
	}
	if !i.Severity.IsValid() {
		return goerr.New("invalid severity",
			goerr.V("incident_id", i.ID),
			goerr.V("severity", i.Severity))
	}
	if !i.Status.IsValid() {
		return goerr.New("invalid status",
			goerr.V("incident_id", i.ID),
			goerr.V("status", i.Status))
	}
	if i.ReportedAt.IsZero() {
		return goerr.New("reported time is required", goerr.V("incident_id", i.ID))
	}
	if i.Pin != nil && (i.Pin.X < 0 || i.Pin.X > 100 || i.Pin.Y < 0 || i.Pin.Y > 100) {
		return goerr.New("floor plan pin must be within 0-100",
			goerr.V("incident_id", i.ID),
			goerr.V("x", i.Pin.X),
			goerr.V("y", i.Pin.Y))
	}
	return nil
}

// TypeOrUnknown returns the incident type, or UnknownIncidentType when empty
func (i *Incident) TypeOrUnknown() string {
	if i.Type == "" {
		return UnknownIncidentType
	}
	return i.Type
}

// FloorPlanIncident returns the floor plan pin of the incident, if any
func (i *Incident) FloorPlanIncident() (FloorPlanIncident, bool) {
	if i.Pin == nil {
		return FloorPlanIncident{}, false
	}
	return FloorPlanIncident{
		IncidentID: i.ID,
		LocationID: i.LocationID,
		Severity:   i.Severity,
		X:          i.Pin.X,
		Y:          i.Pin.Y,
		ReportedAt: i.ReportedAt,
	}, true
}
