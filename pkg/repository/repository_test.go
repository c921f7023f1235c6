package repository_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmap/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
	"github.com/secmon-lab/riskmap/pkg/repository"
)

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func testRepository(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Run("PutLocation", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()

		ctx := context.Background()
		location := &model.LocationRecord{
			ID:       types.LocationID(uniqueID("loc")),
			Name:     "Building A",
			ParentID: "campus",
			Position: 2,
		}

		gt.NoError(t, repo.PutLocation(ctx, location))

		retrieved, err := repo.GetLocation(ctx, location.ID)
		gt.NoError(t, err).Required()
		gt.Equal(t, *retrieved, *location)

		// Overwrite
		location.Name = "Building A (east)"
		gt.NoError(t, repo.PutLocation(ctx, location))
		retrieved, err = repo.GetLocation(ctx, location.ID)
		gt.NoError(t, err).Required()
		gt.Equal(t, retrieved.Name, "Building A (east)")
	})

	t.Run("PutLocation_Invalid", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()

		ctx := context.Background()
		gt.Error(t, repo.PutLocation(ctx, nil))
		gt.Error(t, repo.PutLocation(ctx, &model.LocationRecord{}))
	})

	t.Run("GetLocation_NotFound", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()

		_, err := repo.GetLocation(context.Background(), types.LocationID(uniqueID("loc-missing")))
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrLocationNotFound))
	})

	t.Run("PutIncident", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()

		ctx := context.Background()
		incident := &model.Incident{
			ID:         types.IncidentID(uniqueID("inc")),
			LocationID: "room-101",
			Title:      "Water leak",
			Type:       "flood",
			Severity:   types.SeverityHigh,
			Status:     types.IncidentStatusHandling,
			ReportedAt: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
			Pin:        &model.FloorPlanPin{X: 10.5, Y: 88},
		}

		gt.NoError(t, repo.PutIncident(ctx, incident))

		retrieved, err := repo.GetIncident(ctx, incident.ID)
		gt.NoError(t, err).Required()
		gt.Equal(t, retrieved.ID, incident.ID)
		gt.Equal(t, retrieved.LocationID, incident.LocationID)
		gt.Equal(t, retrieved.Title, incident.Title)
		gt.Equal(t, retrieved.Type, incident.Type)
		gt.Equal(t, retrieved.Severity, incident.Severity)
		gt.Equal(t, retrieved.Status, incident.Status)
		gt.True(t, retrieved.ReportedAt.Equal(incident.ReportedAt))
		gt.V(t, retrieved.Pin).NotNil()
		gt.Equal(t, *retrieved.Pin, *incident.Pin)
	})

	t.Run("PutIncident_WithoutPin", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()

		ctx := context.Background()
		incident := &model.Incident{
			ID:         types.IncidentID(uniqueID("inc")),
			LocationID: "room-102",
			Severity:   types.SeverityNone,
			Status:     types.IncidentStatusTriage,
			ReportedAt: time.Now(),
		}

		gt.NoError(t, repo.PutIncident(ctx, incident))
		retrieved, err := repo.GetIncident(ctx, incident.ID)
		gt.NoError(t, err).Required()
		gt.V(t, retrieved.Pin).Nil()
		// Timestamp comparison with tolerance for storage precision
		gt.True(t, incident.ReportedAt.Sub(retrieved.ReportedAt).Abs() < time.Millisecond)
	})

	t.Run("PutIncident_Invalid", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()

		err := repo.PutIncident(context.Background(), &model.Incident{
			ID:         types.IncidentID(uniqueID("inc")),
			LocationID: "room-1",
			Severity:   "extreme",
			Status:     types.IncidentStatusTriage,
			ReportedAt: time.Now(),
		})
		gt.Error(t, err)
	})

	t.Run("GetIncident_NotFound", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()

		_, err := repo.GetIncident(context.Background(), types.IncidentID(uniqueID("inc-missing")))
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrIncidentNotFound))
	})

	t.Run("ReplaceDataset", func(t *testing.T) {
		repo := newRepo(t)
		defer repo.Close()

		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		// Stale data that must disappear
		gt.NoError(t, repo.PutLocation(ctx, &model.LocationRecord{ID: types.LocationID(uniqueID("stale"))}))

		locations := []*model.LocationRecord{
			{ID: "campus", Name: "Campus"},
			{ID: "bldg-b", Name: "B", ParentID: "campus", Position: 1},
			{ID: "bldg-a", Name: "A", ParentID: "campus", Position: 0},
		}
		incidents := []*model.Incident{
			{ID: "inc-2", LocationID: "bldg-b", Severity: types.SeverityLow, Status: types.IncidentStatusClosed, ReportedAt: base.Add(2 * time.Hour)},
			{ID: "inc-1", LocationID: "bldg-a", Severity: types.SeverityCritical, Status: types.IncidentStatusTriage, ReportedAt: base.Add(time.Hour)},
		}

		gt.NoError(t, repo.ReplaceDataset(ctx, locations, incidents)).Required()

		storedLocations, err := repo.ListLocations(ctx)
		gt.NoError(t, err).Required()
		gt.A(t, storedLocations).Length(3)
		gt.Equal(t, storedLocations[0].ID, types.LocationID("bldg-a"))
		gt.Equal(t, storedLocations[1].ID, types.LocationID("bldg-b"))
		gt.Equal(t, storedLocations[2].ID, types.LocationID("campus"))

		storedIncidents, err := repo.ListIncidents(ctx)
		gt.NoError(t, err).Required()
		gt.A(t, storedIncidents).Length(2)
		gt.Equal(t, storedIncidents[0].ID, types.IncidentID("inc-1"))
		gt.Equal(t, storedIncidents[1].ID, types.IncidentID("inc-2"))

		t.Run("forest can be rebuilt from stored records", func(t *testing.T) {
			roots, unattached := model.BuildForest(storedLocations)
			gt.A(t, unattached).Length(0)
			gt.A(t, roots).Length(1)
			gt.Equal(t, roots[0].ID, types.LocationID("campus"))
			gt.Equal(t, roots[0].Children[0].ID, types.LocationID("bldg-a"))
			gt.Equal(t, roots[0].Children[1].ID, types.LocationID("bldg-b"))
		})

		t.Run("invalid dataset leaves stored data untouched", func(t *testing.T) {
			err := repo.ReplaceDataset(ctx, []*model.LocationRecord{{ID: ""}}, nil)
			gt.Error(t, err)

			after, err := repo.ListLocations(ctx)
			gt.NoError(t, err)
			gt.A(t, after).Length(3)
		})

		t.Run("empty dataset clears everything", func(t *testing.T) {
			gt.NoError(t, repo.ReplaceDataset(ctx, nil, nil))

			after, err := repo.ListLocations(ctx)
			gt.NoError(t, err)
			gt.A(t, after).Length(0)

			incidents, err := repo.ListIncidents(ctx)
			gt.NoError(t, err)
			gt.A(t, incidents).Length(0)
		})
	})
}

func TestMemoryRepository(t *testing.T) {
	testRepository(t, func(t *testing.T) interfaces.Repository {
		return repository.NewMemory()
	})
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	incident := &model.Incident{
		ID:         "inc-1",
		LocationID: "room-1",
		Severity:   types.SeverityLow,
		Status:     types.IncidentStatusTriage,
		ReportedAt: time.Now(),
		Pin:        &model.FloorPlanPin{X: 1, Y: 1},
	}
	gt.NoError(t, repo.PutIncident(ctx, incident))

	incident.Pin.X = 50
	retrieved, err := repo.GetIncident(ctx, "inc-1")
	gt.NoError(t, err).Required()
	gt.Equal(t, retrieved.Pin.X, 1.0)

	retrieved.Pin.X = 75
	again, err := repo.GetIncident(ctx, "inc-1")
	gt.NoError(t, err).Required()
	gt.Equal(t, again.Pin.X, 1.0)
}

func TestSQLiteRepository(t *testing.T) {
	testRepository(t, func(t *testing.T) interfaces.Repository {
		repo, err := repository.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "riskmap.db"))
		gt.NoError(t, err).Required()
		return repo
	})
}

func TestSQLiteRepositoryInMemory(t *testing.T) {
	testRepository(t, func(t *testing.T) interfaces.Repository {
		repo, err := repository.NewSQLite(context.Background(), repository.SQLiteMemoryPath)
		gt.NoError(t, err).Required()
		return repo
	})
}

func TestSQLiteRepositoryPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "riskmap.db")

	repo, err := repository.NewSQLite(ctx, path)
	gt.NoError(t, err).Required()
	gt.NoError(t, repo.PutLocation(ctx, &model.LocationRecord{ID: "site", Name: "Site"}))
	gt.NoError(t, repo.Close())

	reopened, err := repository.NewSQLite(ctx, path)
	gt.NoError(t, err).Required()
	defer reopened.Close()

	location, err := reopened.GetLocation(ctx, "site")
	gt.NoError(t, err).Required()
	gt.Equal(t, location.Name, "Site")
}

func TestFirestoreRepository(t *testing.T) {
	// Skip test if Firestore test environment variables are not set
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE")

	if projectID == "" || databaseID == "" {
		t.Skip("Skipping Firestore test: TEST_FIRESTORE_PROJECT and TEST_FIRESTORE_DATABASE must be set")
	}

	testRepository(t, func(t *testing.T) interfaces.Repository {
		ctx := context.Background()
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		ctx = ctxlog.With(ctx, logger)

		repo, err := repository.NewFirestore(ctx, projectID, databaseID)
		gt.NoError(t, err)
		return repo
	})
}
