package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"

	_ "modernc.org/sqlite"
)

// SQLiteMemoryPath opens a private in-memory database
const SQLiteMemoryPath = ":memory:"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS locations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	parent_id TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS incidents (
	id TEXT PRIMARY KEY,
	location_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT '',
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	reported_at TEXT NOT NULL,
	pin_x REAL,
	pin_y REAL
);

CREATE INDEX IF NOT EXISTS idx_incidents_location ON incidents(location_id);
`

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLite implements Repository interface with an embedded SQLite database
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens or creates the database at path and initializes the schema
func NewSQLite(ctx context.Context, path string) (interfaces.Repository, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == SQLiteMemoryPath {
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	if path == SQLiteMemoryPath {
		// Every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize sqlite schema", goerr.V("path", path))
	}

	ctxlog.From(ctx).Info("SQLite repository initialized successfully", "path", path)

	return &SQLite{db: db, path: path}, nil
}

// PutLocation saves a location record
func (s *SQLite) PutLocation(ctx context.Context, location *model.LocationRecord) error {
	if location == nil {
		return goerr.New("location is nil")
	}
	if err := location.Validate(); err != nil {
		return goerr.Wrap(err, "invalid location")
	}

	return putLocation(ctx, s.db, location)
}

func putLocation(ctx context.Context, q querier, location *model.LocationRecord) error {
	_, err := q.ExecContext(ctx,
		`INSERT OR REPLACE INTO locations (id, name, parent_id, position) VALUES (?, ?, ?, ?)`,
		location.ID.String(), location.Name, location.ParentID.String(), location.Position)
	if err != nil {
		return goerr.Wrap(err, "failed to save location to sqlite", goerr.V("id", location.ID))
	}
	return nil
}

// GetLocation retrieves a location record by ID
func (s *SQLite) GetLocation(ctx context.Context, id types.LocationID) (*model.LocationRecord, error) {
	if id == "" {
		return nil, goerr.New("location ID is empty")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, parent_id, position FROM locations WHERE id = ?`, id.String())

	var location model.LocationRecord
	if err := row.Scan(&location.ID, &location.Name, &location.ParentID, &location.Position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrLocationNotFound, "failed to get location", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get location from sqlite", goerr.V("id", id))
	}

	return &location, nil
}

// ListLocations returns all location records ordered by ID
func (s *SQLite) ListLocations(ctx context.Context) ([]*model.LocationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, parent_id, position FROM locations ORDER BY id`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query locations")
	}
	defer rows.Close()

	var locations []*model.LocationRecord
	for rows.Next() {
		var location model.LocationRecord
		if err := rows.Scan(&location.ID, &location.Name, &location.ParentID, &location.Position); err != nil {
			return nil, goerr.Wrap(err, "failed to scan location")
		}
		locations = append(locations, &location)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate locations")
	}

	return locations, nil
}

// PutIncident saves an incident
func (s *SQLite) PutIncident(ctx context.Context, incident *model.Incident) error {
	if incident == nil {
		return goerr.New("incident is nil")
	}
	if err := incident.Validate(); err != nil {
		return goerr.Wrap(err, "invalid incident")
	}

	return putIncident(ctx, s.db, incident)
}

func putIncident(ctx context.Context, q querier, incident *model.Incident) error {
	var pinX, pinY sql.NullFloat64
	if incident.Pin != nil {
		pinX = sql.NullFloat64{Float64: incident.Pin.X, Valid: true}
		pinY = sql.NullFloat64{Float64: incident.Pin.Y, Valid: true}
	}

	_, err := q.ExecContext(ctx,
		`INSERT OR REPLACE INTO incidents
			(id, location_id, title, type, severity, status, reported_at, pin_x, pin_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		incident.ID.String(),
		incident.LocationID.String(),
		incident.Title,
		incident.Type,
		string(incident.Severity),
		string(incident.Status),
		incident.ReportedAt.UTC().Format(time.RFC3339Nano),
		pinX, pinY)
	if err != nil {
		return goerr.Wrap(err, "failed to save incident to sqlite", goerr.V("id", incident.ID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const incidentColumns = `id, location_id, title, type, severity, status, reported_at, pin_x, pin_y`

func scanIncident(row rowScanner) (*model.Incident, error) {
	var (
		incident   model.Incident
		reportedAt string
		pinX, pinY sql.NullFloat64
	)
	if err := row.Scan(
		&incident.ID,
		&incident.LocationID,
		&incident.Title,
		&incident.Type,
		&incident.Severity,
		&incident.Status,
		&reportedAt,
		&pinX, &pinY,
	); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, reportedAt)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid reported_at", goerr.V("id", incident.ID), goerr.V("value", reportedAt))
	}
	incident.ReportedAt = t

	if pinX.Valid && pinY.Valid {
		incident.Pin = &model.FloorPlanPin{X: pinX.Float64, Y: pinY.Float64}
	}

	return &incident, nil
}

// GetIncident retrieves an incident by ID
func (s *SQLite) GetIncident(ctx context.Context, id types.IncidentID) (*model.Incident, error) {
	if id == "" {
		return nil, goerr.New("incident ID is empty")
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id.String())
	incident, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrIncidentNotFound, "failed to get incident", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get incident from sqlite", goerr.V("id", id))
	}

	return incident, nil
}

// ListIncidents returns all incidents ordered by report time
func (s *SQLite) ListIncidents(ctx context.Context) ([]*model.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+incidentColumns+` FROM incidents`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query incidents")
	}
	defer rows.Close()

	var incidents []*model.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan incident")
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate incidents")
	}

	// RFC3339Nano strings do not sort chronologically
	sortIncidents(incidents)
	return incidents, nil
}

// ReplaceDataset replaces all locations and incidents in one transaction
func (s *SQLite) ReplaceDataset(ctx context.Context, locations []*model.LocationRecord, incidents []*model.Incident) error {
	for _, location := range locations {
		if location == nil {
			continue
		}
		if err := location.Validate(); err != nil {
			return goerr.Wrap(err, "invalid location")
		}
	}
	for _, incident := range incidents {
		if incident == nil {
			continue
		}
		if err := incident.Validate(); err != nil {
			return goerr.Wrap(err, "invalid incident")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin sqlite transaction")
	}

	if err := replaceDataset(ctx, tx, locations, incidents); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit dataset")
	}
	return nil
}

func replaceDataset(ctx context.Context, tx *sql.Tx, locations []*model.LocationRecord, incidents []*model.Incident) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM locations; DELETE FROM incidents;`); err != nil {
		return goerr.Wrap(err, "failed to clear dataset")
	}
	for _, location := range locations {
		if location == nil {
			continue
		}
		if err := putLocation(ctx, tx, location); err != nil {
			return err
		}
	}
	for _, incident := range incidents {
		if incident == nil {
			continue
		}
		if err := putIncident(ctx, tx, incident); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ interfaces.Repository = (*SQLite)(nil) // Compile-time interface check
