package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

// Memory implements Repository interface with in-memory storage
type Memory struct {
	mu        sync.RWMutex
	locations map[types.LocationID]*model.LocationRecord
	incidents map[types.IncidentID]*model.Incident
}

// NewMemory creates a new memory repository
func NewMemory() interfaces.Repository {
	return &Memory{
		locations: make(map[types.LocationID]*model.LocationRecord),
		incidents: make(map[types.IncidentID]*model.Incident),
	}
}

// PutLocation saves a location record to memory
func (m *Memory) PutLocation(ctx context.Context, location *model.LocationRecord) error {
	if location == nil {
		return goerr.New("location is nil")
	}
	if err := location.Validate(); err != nil {
		return goerr.Wrap(err, "invalid location")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	locationCopy := *location
	m.locations[location.ID] = &locationCopy
	return nil
}

// GetLocation retrieves a location record by ID
func (m *Memory) GetLocation(ctx context.Context, id types.LocationID) (*model.LocationRecord, error) {
	if id == "" {
		return nil, goerr.New("location ID is empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	location, exists := m.locations[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrLocationNotFound, "location not found in memory", goerr.V("id", id))
	}

	locationCopy := *location
	return &locationCopy, nil
}

// ListLocations returns all location records ordered by ID
func (m *Memory) ListLocations(ctx context.Context) ([]*model.LocationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	locations := make([]*model.LocationRecord, 0, len(m.locations))
	for _, location := range m.locations {
		locationCopy := *location
		locations = append(locations, &locationCopy)
	}

	sort.Slice(locations, func(i, j int) bool {
		return locations[i].ID < locations[j].ID
	})

	return locations, nil
}

// PutIncident saves an incident to memory
func (m *Memory) PutIncident(ctx context.Context, incident *model.Incident) error {
	if incident == nil {
		return goerr.New("incident is nil")
	}
	if err := incident.Validate(); err != nil {
		return goerr.Wrap(err, "invalid incident")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.incidents[incident.ID] = copyIncident(incident)
	return nil
}

// GetIncident retrieves an incident by ID
func (m *Memory) GetIncident(ctx context.Context, id types.IncidentID) (*model.Incident, error) {
	if id == "" {
		return nil, goerr.New("incident ID is empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	incident, exists := m.incidents[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrIncidentNotFound, "incident not found in memory", goerr.V("id", id))
	}

	return copyIncident(incident), nil
}

// ListIncidents returns all incidents ordered by report time
func (m *Memory) ListIncidents(ctx context.Context) ([]*model.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	incidents := make([]*model.Incident, 0, len(m.incidents))
	for _, incident := range m.incidents {
		incidents = append(incidents, copyIncident(incident))
	}

	sortIncidents(incidents)
	return incidents, nil
}

// ReplaceDataset swaps the stored dataset under a single lock
func (m *Memory) ReplaceDataset(ctx context.Context, locations []*model.LocationRecord, incidents []*model.Incident) error {
	newLocations := make(map[types.LocationID]*model.LocationRecord, len(locations))
	for _, location := range locations {
		if location == nil {
			continue
		}
		if err := location.Validate(); err != nil {
			return goerr.Wrap(err, "invalid location")
		}
		locationCopy := *location
		newLocations[location.ID] = &locationCopy
	}

	newIncidents := make(map[types.IncidentID]*model.Incident, len(incidents))
	for _, incident := range incidents {
		if incident == nil {
			continue
		}
		if err := incident.Validate(); err != nil {
			return goerr.Wrap(err, "invalid incident")
		}
		newIncidents[incident.ID] = copyIncident(incident)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.locations = newLocations
	m.incidents = newIncidents
	return nil
}

// Close is a no-op for memory repository
func (m *Memory) Close() error {
	return nil
}

func copyIncident(incident *model.Incident) *model.Incident {
	incidentCopy := *incident
	if incident.Pin != nil {
		pin := *incident.Pin
		incidentCopy.Pin = &pin
	}
	return &incidentCopy
}

func sortIncidents(incidents []*model.Incident) {
	sort.Slice(incidents, func(i, j int) bool {
		if !incidents[i].ReportedAt.Equal(incidents[j].ReportedAt) {
			return incidents[i].ReportedAt.Before(incidents[j].ReportedAt)
		}
		return incidents[i].ID < incidents[j].ID
	})
}

var _ interfaces.Repository = (*Memory)(nil) // Compile-time interface check
