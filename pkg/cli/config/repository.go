package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmap/pkg/repository"
	"github.com/urfave/cli/v3"
)

// Repository selects the storage backend. Firestore is used when a project
// is set, SQLite when a database path is set, memory otherwise.
type Repository struct {
	FirestoreProjectID  string
	FirestoreDatabaseID string
	SQLitePath          string
}

// Flags returns CLI flags for Repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "GCP project ID for Firestore",
			Category:    "Storage",
			Sources:     cli.EnvVars("RISKMAP_FIRESTORE_PROJECT"),
			Destination: &r.FirestoreProjectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Category:    "Storage",
			Value:       "(default)",
			Sources:     cli.EnvVars("RISKMAP_FIRESTORE_DATABASE"),
			Destination: &r.FirestoreDatabaseID,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "Path of a SQLite database file",
			Category:    "Storage",
			Sources:     cli.EnvVars("RISKMAP_SQLITE_PATH"),
			Destination: &r.SQLitePath,
		},
	}
}

// Backend returns the name of the selected backend
func (r *Repository) Backend() string {
	switch {
	case r.FirestoreProjectID != "":
		return "firestore"
	case r.SQLitePath != "":
		return "sqlite"
	default:
		return "memory"
	}
}

// Validate validates the repository configuration
func (r *Repository) Validate() error {
	if r.FirestoreProjectID != "" && r.SQLitePath != "" {
		return goerr.New("firestore and sqlite cannot be configured together",
			goerr.V("project", r.FirestoreProjectID),
			goerr.V("sqlite_path", r.SQLitePath),
		)
	}
	return nil
}

// Configure creates and returns the selected repository
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	switch r.Backend() {
	case "firestore":
		repo, err := repository.NewFirestore(ctx, r.FirestoreProjectID, r.FirestoreDatabaseID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to init firestore",
				goerr.V("project", r.FirestoreProjectID),
				goerr.V("database", r.FirestoreDatabaseID),
			)
		}
		return repo, nil

	case "sqlite":
		repo, err := repository.NewSQLite(ctx, r.SQLitePath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to init sqlite", goerr.V("path", r.SQLitePath))
		}
		return repo, nil

	default:
		ctxlog.From(ctx).Warn("Using memory database. The data will be removed when shutting down")
		return repository.NewMemory(), nil
	}
}

// LogValue returns structured log value
func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.Backend()),
		slog.String("firestore_project", r.FirestoreProjectID),
		slog.String("firestore_database", r.FirestoreDatabaseID),
		slog.String("sqlite_path", r.SQLitePath),
	)
}
