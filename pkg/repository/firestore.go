package repository

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// Collection names
	locationsCollection = "locations"
	incidentsCollection = "incidents"
)

// Firestore implements Repository interface with Firestore
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (interfaces.Repository, error) {
	logger := ctxlog.From(ctx)

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client")
	}

	// Fail fast on an invalid project or missing permission
	_, err = client.Collection(locationsCollection).Limit(1).Documents(ctx).Next()
	if err != nil && err != iterator.Done {
		if status.Code(err) == codes.PermissionDenied || status.Code(err) == codes.Unauthenticated {
			_ = client.Close()
			return nil, goerr.Wrap(err, "failed to connect to firestore project",
				goerr.V("firestore error code", status.Code(err).String()),
			)
		}
		logger.Debug("Firestore connection test returned error (may be empty collection)",
			"error", err,
			"errorCode", status.Code(err).String(),
		)
	}

	logger.Info("Firestore repository initialized successfully",
		"projectID", projectID,
		"databaseID", databaseID,
	)

	return &Firestore{
		client: client,
	}, nil
}

// PutLocation saves a location record to Firestore
func (f *Firestore) PutLocation(ctx context.Context, location *model.LocationRecord) error {
	if location == nil {
		return goerr.New("location is nil")
	}
	if err := location.Validate(); err != nil {
		return goerr.Wrap(err, "invalid location")
	}

	_, err := f.client.Collection(locationsCollection).Doc(location.ID.String()).Set(ctx, location)
	if err != nil {
		return goerr.Wrap(err, "failed to save location to firestore", goerr.V("id", location.ID))
	}

	return nil
}

// GetLocation retrieves a location record by ID
func (f *Firestore) GetLocation(ctx context.Context, id types.LocationID) (*model.LocationRecord, error) {
	if id == "" {
		return nil, goerr.New("location ID is empty")
	}

	doc, err := f.client.Collection(locationsCollection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrLocationNotFound, "failed to get location", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get location from firestore", goerr.V("id", id))
	}

	var location model.LocationRecord
	if err := doc.DataTo(&location); err != nil {
		return nil, goerr.Wrap(err, "failed to decode location", goerr.V("id", id))
	}

	return &location, nil
}

// ListLocations returns all location records ordered by ID
func (f *Firestore) ListLocations(ctx context.Context) ([]*model.LocationRecord, error) {
	iter := f.client.Collection(locationsCollection).Documents(ctx)
	defer iter.Stop()

	var locations []*model.LocationRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate locations")
		}

		var location model.LocationRecord
		if err := doc.DataTo(&location); err != nil {
			return nil, goerr.Wrap(err, "failed to decode location", goerr.V("doc_id", doc.Ref.ID))
		}
		locations = append(locations, &location)
	}

	// Sorted in memory to avoid requiring an index
	sort.Slice(locations, func(i, j int) bool {
		return locations[i].ID < locations[j].ID
	})

	return locations, nil
}

// PutIncident saves an incident to Firestore
func (f *Firestore) PutIncident(ctx context.Context, incident *model.Incident) error {
	if incident == nil {
		return goerr.New("incident is nil")
	}
	if err := incident.Validate(); err != nil {
		return goerr.Wrap(err, "invalid incident")
	}

	_, err := f.client.Collection(incidentsCollection).Doc(incident.ID.String()).Set(ctx, incident)
	if err != nil {
		return goerr.Wrap(err, "failed to save incident to firestore", goerr.V("id", incident.ID))
	}

	return nil
}

// GetIncident retrieves an incident by ID
func (f *Firestore) GetIncident(ctx context.Context, id types.IncidentID) (*model.Incident, error) {
	if id == "" {
		return nil, goerr.New("incident ID is empty")
	}

	doc, err := f.client.Collection(incidentsCollection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrIncidentNotFound, "failed to get incident", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get incident from firestore", goerr.V("id", id))
	}

	var incident model.Incident
	if err := doc.DataTo(&incident); err != nil {
		return nil, goerr.Wrap(err, "failed to decode incident", goerr.V("id", id))
	}

	return &incident, nil
}

// ListIncidents returns all incidents ordered by report time
func (f *Firestore) ListIncidents(ctx context.Context) ([]*model.Incident, error) {
	iter := f.client.Collection(incidentsCollection).Documents(ctx)
	defer iter.Stop()

	var incidents []*model.Incident
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate incidents")
		}

		var incident model.Incident
		if err := doc.DataTo(&incident); err != nil {
			return nil, goerr.Wrap(err, "failed to decode incident", goerr.V("doc_id", doc.Ref.ID))
		}
		incidents = append(incidents, &incident)
	}

	sortIncidents(incidents)
	return incidents, nil
}

// ReplaceDataset overwrites the stored dataset. Documents that are not part of
// the new dataset are deleted. The replacement is not atomic for readers.
func (f *Firestore) ReplaceDataset(ctx context.Context, locations []*model.LocationRecord, incidents []*model.Incident) error {
	keepLocations := make(map[string]struct{}, len(locations))
	for _, location := range locations {
		if location == nil {
			continue
		}
		if err := location.Validate(); err != nil {
			return goerr.Wrap(err, "invalid location")
		}
		keepLocations[location.ID.String()] = struct{}{}
	}
	keepIncidents := make(map[string]struct{}, len(incidents))
	for _, incident := range incidents {
		if incident == nil {
			continue
		}
		if err := incident.Validate(); err != nil {
			return goerr.Wrap(err, "invalid incident")
		}
		keepIncidents[incident.ID.String()] = struct{}{}
	}

	staleLocations, err := f.staleRefs(ctx, locationsCollection, keepLocations)
	if err != nil {
		return err
	}
	staleIncidents, err := f.staleRefs(ctx, incidentsCollection, keepIncidents)
	if err != nil {
		return err
	}

	// Each document is written at most once per BulkWriter
	bw := f.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	enqueue := func(job *firestore.BulkWriterJob, err error) error {
		if err != nil {
			return goerr.Wrap(err, "failed to enqueue firestore write")
		}
		jobs = append(jobs, job)
		return nil
	}

	for _, ref := range append(staleLocations, staleIncidents...) {
		if err := enqueue(bw.Delete(ref)); err != nil {
			bw.End()
			return err
		}
	}
	for _, location := range locations {
		if location == nil {
			continue
		}
		if err := enqueue(bw.Set(f.client.Collection(locationsCollection).Doc(location.ID.String()), location)); err != nil {
			bw.End()
			return err
		}
	}
	for _, incident := range incidents {
		if incident == nil {
			continue
		}
		if err := enqueue(bw.Set(f.client.Collection(incidentsCollection).Doc(incident.ID.String()), incident)); err != nil {
			bw.End()
			return err
		}
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to replace dataset in firestore")
		}
	}

	ctxlog.From(ctx).Info("Dataset replaced in firestore",
		"locations", len(keepLocations),
		"incidents", len(keepIncidents),
		"deleted", len(staleLocations)+len(staleIncidents),
	)

	return nil
}

func (f *Firestore) staleRefs(ctx context.Context, collection string, keep map[string]struct{}) ([]*firestore.DocumentRef, error) {
	iter := f.client.Collection(collection).DocumentRefs(ctx)

	var stale []*firestore.DocumentRef
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V("collection", collection))
		}
		if _, ok := keep[ref.ID]; !ok {
			stale = append(stale, ref)
		}
	}

	return stale, nil
}

// Close closes the Firestore client
func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

var _ interfaces.Repository = (*Firestore)(nil) // Compile-time interface check
