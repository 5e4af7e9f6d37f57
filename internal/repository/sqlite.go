package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/avenlake/hazardwatch/internal/models"
)

// SQLiteDB backs every persistence contract the core needs: the
// read-id set, administrative alerts and tracked persons.
type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS read_alerts (
			id TEXT PRIMARY KEY,
			read_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS admin_alerts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			severity TEXT NOT NULL,
			priority TEXT,
			created_by TEXT,
			zones TEXT,
			created_at DATETIME NOT NULL,
			expires_at DATETIME
		);

		CREATE TABLE IF NOT EXISTS tracked_entities (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			relationship TEXT,
			location TEXT,
			status TEXT NOT NULL,
			status_reason TEXT,
			last_updated DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_admin_alerts_expires ON admin_alerts(expires_at);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) LoadReadIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM read_alerts`)
	if err != nil {
		return nil, fmt.Errorf("error querying read_alerts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning read id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteDB) SaveReadID(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO read_alerts (id, read_at) VALUES (?, ?)`,
		id, time.Now())
	if err != nil {
		return fmt.Errorf("error saving read id: %w", err)
	}
	return nil
}

func (s *SQLiteDB) SaveReadIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO read_alerts (id, read_at) VALUES (?, ?)`,
			id, now); err != nil {
			return fmt.Errorf("error saving read id %s: %w", id, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteDB) AddAdminAlert(ctx context.Context, rec *AdminAlertRecord) error {
	var expiresAt any
	if rec.ExpiresAt != nil {
		expiresAt = *rec.ExpiresAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_alerts (id, title, description, severity, priority, created_by, zones, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Description, string(rec.Severity), rec.Priority,
		rec.CreatedBy, strings.Join(rec.Zones, ","), rec.CreatedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("error inserting admin alert: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListActive(ctx context.Context, now time.Time) ([]AdminAlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, severity, priority, created_by, zones, created_at, expires_at
		FROM admin_alerts
		WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY created_at DESC`, now)
	if err != nil {
		return nil, fmt.Errorf("error querying admin_alerts: %w", err)
	}
	defer rows.Close()

	var records []AdminAlertRecord
	for rows.Next() {
		var rec AdminAlertRecord
		var severity, zones string
		var expiresAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &severity, &rec.Priority,
			&rec.CreatedBy, &zones, &rec.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("error scanning admin alert: %w", err)
		}
		rec.Severity = models.ParseSeverity(severity)
		if zones != "" {
			rec.Zones = strings.Split(zones, ",")
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			rec.ExpiresAt = &t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteDB) AddEntity(ctx context.Context, e *models.TrackedEntity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_entities (id, display_name, relationship, location, status, status_reason, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DisplayName, e.RelationshipLabel, e.Location,
		string(e.Status), e.StatusReason, e.LastUpdated)
	if err != nil {
		return fmt.Errorf("error inserting tracked entity: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListEntities(ctx context.Context) ([]models.TrackedEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, relationship, location, status, status_reason, last_updated
		FROM tracked_entities
		ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("error querying tracked_entities: %w", err)
	}
	defer rows.Close()

	var entities []models.TrackedEntity
	for rows.Next() {
		var e models.TrackedEntity
		var status string
		if err := rows.Scan(&e.ID, &e.DisplayName, &e.RelationshipLabel, &e.Location,
			&status, &e.StatusReason, &e.LastUpdated); err != nil {
			return nil, fmt.Errorf("error scanning tracked entity: %w", err)
		}
		e.Status = models.Status(status)
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *SQLiteDB) UpdateLocation(ctx context.Context, id, location string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracked_entities SET location = ?, last_updated = ? WHERE id = ?`,
		location, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error updating location: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tracked entity not found: %s", id)
	}
	return nil
}

func (s *SQLiteDB) SaveStatus(ctx context.Context, id string, status models.Status, reason string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracked_entities SET status = ?, status_reason = ?, last_updated = ? WHERE id = ?`,
		string(status), reason, at, id)
	if err != nil {
		return fmt.Errorf("error saving status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tracked entity not found: %s", id)
	}
	return nil
}
