package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safequote/safequote/pkg/events"
	"github.com/safequote/safequote/pkg/vehicle"
	_ "modernc.org/sqlite"
)

// Fixed width so lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS searches (
  id                INTEGER PRIMARY KEY,
  occurred_at       TEXT NOT NULL,
  year              TEXT,
  make              TEXT,
  model             TEXT,
  min_safety_rating INTEGER NOT NULL DEFAULT 0 CHECK (min_safety_rating BETWEEN 0 AND 5),
  result_count      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_searches_time ON searches(occurred_at);
CREATE TABLE IF NOT EXISTS search_vehicles (
  search_id       INTEGER NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
  position        INTEGER NOT NULL,
  vehicle_id      TEXT,
  year            TEXT,
  make            TEXT,
  model           TEXT,
  type            TEXT,
  safety_rating   REAL,
  front_crash     REAL,
  side_crash      REAL,
  rollover_crash  REAL,
  image           TEXT,
  PRIMARY KEY (search_id, position)
);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// RecordSearch stores a completed search and its vehicles in one transaction
// and returns the new search id.
func (d *DB) RecordSearch(ctx context.Context, ev events.SearchCompleted) (id int64, err error) {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO searches(occurred_at, year, make, model, min_safety_rating, result_count) VALUES(?,?,?,?,?,?)`,
		at.UTC().Format(timeLayout), nullIfEmpty(ev.Year), nullIfEmpty(ev.Make), nullIfEmpty(ev.Model), ev.MinSafetyRating, len(ev.Vehicles))
	if err != nil {
		return 0, err
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, err
	}

	for i, v := range ev.Vehicles {
		_, err = tx.ExecContext(ctx, `INSERT INTO search_vehicles(search_id, position, vehicle_id, year, make, model, type, safety_rating, front_crash, side_crash, rollover_crash, image) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
			id, i, nullIfEmpty(v.ID), nullIfEmpty(v.Year), nullIfEmpty(v.Make), nullIfEmpty(v.Model), nullIfEmpty(v.Type),
			nullIfNil(v.SafetyRating), nullIfNil(v.FrontCrash), nullIfNil(v.SideCrash), nullIfNil(v.RolloverCrash), nullIfEmpty(v.Image))
		if err != nil {
			return 0, fmt.Errorf("insert vehicle %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListSearches returns the most recent N searches, newest first.
func (d *DB) ListSearches(ctx context.Context, limit int) ([]Search, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT id, occurred_at, year, make, model, min_safety_rating, result_count FROM searches ORDER BY occurred_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	searches := []Search{}
	for rows.Next() {
		var (
			s               Search
			occurredAtStr   string
			year, mk, model sql.NullString
		)
		if err := rows.Scan(&s.ID, &occurredAtStr, &year, &mk, &model, &s.MinSafetyRating, &s.ResultCount); err != nil {
			return nil, err
		}
		s.OccurredAt = parseTime(occurredAtStr)
		s.Year, s.Make, s.Model = year.String, mk.String, model.String
		searches = append(searches, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return searches, nil
}

// SearchVehicles returns the vehicles a recorded search returned, in their
// original order.
func (d *DB) SearchVehicles(ctx context.Context, searchID int64) ([]vehicle.Vehicle, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT vehicle_id, year, make, model, type, safety_rating, front_crash, side_crash, rollover_crash, image FROM search_vehicles WHERE search_id = ? ORDER BY position`, searchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vehicle.Vehicle
	for rows.Next() {
		var (
			id, year, mk, model, typ, image sql.NullString
			rating, front, side, rollover   sql.NullFloat64
		)
		if err := rows.Scan(&id, &year, &mk, &model, &typ, &rating, &front, &side, &rollover, &image); err != nil {
			return nil, err
		}
		out = append(out, vehicle.Vehicle{
			ID:            id.String,
			Year:          year.String,
			Make:          mk.String,
			Model:         model.String,
			Type:          typ.String,
			SafetyRating:  floatPtr(rating),
			FrontCrash:    floatPtr(front),
			SideCrash:     floatPtr(side),
			RolloverCrash: floatPtr(rollover),
			Image:         image.String,
		})
	}
	return out, rows.Err()
}

// GetMakeStats groups recorded searches by their make filter.
func (d *DB) GetMakeStats(ctx context.Context) ([]MakeStats, error) {
	query := `
		SELECT
			COALESCE(make, ''),
			COUNT(*),
			COALESCE(SUM(result_count), 0)
		FROM
			searches
		GROUP BY
			COALESCE(make, '')
		ORDER BY
			COUNT(*) DESC, COALESCE(make, '');
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []MakeStats
	for rows.Next() {
		var s MakeStats
		if err := rows.Scan(&s.Make, &s.SearchCount, &s.ResultCount); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// parseTime accepts what we write as well as sqlite's CURRENT_TIMESTAMP.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfNil(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
