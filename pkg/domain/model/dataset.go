package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

// Dataset is a location hierarchy with its incidents, as loaded from a file
// or posted to the API
type Dataset struct {
	Locations []*Location `json:"locations" yaml:"locations"`
	Incidents []*Incident `json:"incidents" yaml:"incidents"`
}

// Normalize fills defaults: generated incident IDs, triage status and none
// severity for incidents that omit them
func (d *Dataset) Normalize() {
	for _, inc := range d.Incidents {
		if inc == nil {
			continue
		}
		if inc.ID == "" {
			inc.ID = types.NewIncidentID()
		}
		if inc.Status == "" {
			inc.Status = types.IncidentStatusTriage
		}
		if inc.Severity == "" {
			inc.Severity = types.SeverityNone
		}
	}
}

// Validate validates the dataset. Location IDs must be unique across the
// whole tree. Incidents may reference locations outside the tree.
func (d *Dataset) Validate() error {
	seen := make(map[types.LocationID]bool)

	var walk func(path []types.LocationID, nodes []*Location) error
	walk = func(path []types.LocationID, nodes []*Location) error {
		for i, loc := range nodes {
			if loc == nil {
				return goerr.Wrap(ErrInvalidDataset, "location is nil",
					goerr.V("parent", lastOf(path)),
					goerr.V("index", i))
			}
			if loc.ID == "" {
				return goerr.Wrap(ErrInvalidDataset, "location ID is required",
					goerr.V("parent", lastOf(path)),
					goerr.V("index", i))
			}
			if seen[loc.ID] {
				return goerr.Wrap(ErrInvalidDataset, "duplicate location ID",
					goerr.V("id", loc.ID))
			}
			seen[loc.ID] = true

			if err := walk(append(path, loc.ID), loc.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(nil, d.Locations); err != nil {
		return err
	}

	incidentIDs := make(map[types.IncidentID]bool)
	for i, inc := range d.Incidents {
		if inc == nil {
			return goerr.Wrap(ErrInvalidDataset, "incident is nil", goerr.V("index", i))
		}
		if err := inc.Validate(); err != nil {
			return goerr.Wrap(ErrInvalidDataset, "invalid incident",
				goerr.V("index", i),
				goerr.V("reason", err.Error()))
		}
		if incidentIDs[inc.ID] {
			return goerr.Wrap(ErrInvalidDataset, "duplicate incident ID", goerr.V("id", inc.ID))
		}
		incidentIDs[inc.ID] = true
	}

	return nil
}

func lastOf(path []types.LocationID) types.LocationID {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}
