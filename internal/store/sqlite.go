package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/hyperifyio/dockcounts/internal/report"
)

//go:embed schema.sql
var Schema string

// SQLiteStore keeps records in a catch_record table; position preserves the
// store order. Save rewrites the table inside one transaction.
type SQLiteStore struct {
	db   *sql.DB
	file string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps :memory: databases shared across calls
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.file = path
	return s, nil
}

// openSQLiteReadOnly opens an existing database without applying the schema.
func openSQLiteReadOnly(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db, file: path}, nil
}

// NewSQLiteStore applies the schema to an open database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Path() string { return s.file }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load(ctx context.Context) report.Store {
	out := report.NewStore()
	rows, err := s.db.QueryContext(ctx, `SELECT location, landing, boat, trip, anglers, species, count, released, date, source
		FROM catch_record ORDER BY position`)
	if err != nil {
		log.Warn().Err(err).Str("path", s.file).Msg("store unreadable; starting empty")
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var r report.CatchRecord
		var trip, anglers sql.NullString
		if err := rows.Scan(&r.Location, &r.Landing, &r.Boat, &trip, &anglers, &r.Species, &r.Count, &r.Released, &r.Date, &r.Source); err != nil {
			log.Warn().Err(err).Str("path", s.file).Msg("store corrupt; starting empty")
			return report.NewStore()
		}
		if trip.Valid {
			r.Trip = report.Str(trip.String)
		}
		if anglers.Valid {
			r.Anglers = report.Str(anglers.String)
		}
		out.Reports = append(out.Reports, r)
	}
	if err := rows.Err(); err != nil {
		log.Warn().Err(err).Str("path", s.file).Msg("store corrupt; starting empty")
		return report.NewStore()
	}

	var updated sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'last_updated'`).Scan(&updated)
	if err == nil && updated.Valid {
		out.LastUpdated = updated.String
	}
	return normalize(out)
}

func (s *SQLiteStore) Save(ctx context.Context, st report.Store) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catch_record`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO catch_record
		(position, location, landing, boat, trip, anglers, species, count, released, date, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, r := range st.Reports {
		_, err := stmt.ExecContext(ctx, i, r.Location, r.Landing, r.Boat, nullable(r.Trip), nullable(r.Anglers),
			r.Species, r.Count, r.Released, r.Date, r.Source)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO store_meta (key, value) VALUES ('last_updated', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, st.LastUpdated)
	if err != nil {
		return fmt.Errorf("update meta: %w", err)
	}
	return tx.Commit()
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
