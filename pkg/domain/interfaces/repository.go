package interfaces

import (
	"context"

	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
)

// Repository defines the interface for data persistence
type Repository interface {
	// Location operations
	PutLocation(ctx context.Context, location *model.LocationRecord) error
	GetLocation(ctx context.Context, id types.LocationID) (*model.LocationRecord, error)
	ListLocations(ctx context.Context) ([]*model.LocationRecord, error)

	// Incident operations
	PutIncident(ctx context.Context, incident *model.Incident) error
	GetIncident(ctx context.Context, id types.IncidentID) (*model.Incident, error)
	ListIncidents(ctx context.Context) ([]*model.Incident, error)

	// ReplaceDataset removes all stored locations and incidents and stores the given ones
	ReplaceDataset(ctx context.Context, locations []*model.LocationRecord, incidents []*model.Incident) error

	// Close closes the repository connection
	Close() error
}
