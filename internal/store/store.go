package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperifyio/dockcounts/internal/report"
)

// ErrUnknownFormat is returned by Open for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown store format")

// Backend persists the canonical report store. Load never fails: a missing or
// undecodable store is returned as report.NewStore(). Save replaces the whole
// persisted value.
type Backend interface {
	Load(ctx context.Context) report.Store
	Save(ctx context.Context, s report.Store) error
	Path() string
	Close() error
}

// Open returns the backend for format ("json", "csv" or "sqlite") at path.
func Open(format, path string) (Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is empty")
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return &JSONStore{File: path}, nil
	case "csv":
		return &CSVStore{File: path}, nil
	case "sqlite", "sqlite3":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Peek loads the store at path without creating or modifying anything. A
// missing store is returned as report.NewStore().
func Peek(ctx context.Context, format, path string) (report.Store, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "sqlite", "sqlite3":
		if path == ":memory:" {
			return report.NewStore(), nil
		}
		if _, err := os.Stat(path); err != nil {
			return report.NewStore(), nil
		}
		s, err := openSQLiteReadOnly(path)
		if err != nil {
			return report.NewStore(), err
		}
		defer s.Close()
		return s.Load(ctx), nil
	}
	b, err := Open(format, path)
	if err != nil {
		return report.NewStore(), err
	}
	defer b.Close()
	return b.Load(ctx), nil
}

// normalize fills nil collections and derives sources from the records.
func normalize(s report.Store) report.Store {
	if s.Reports == nil {
		s.Reports = []report.CatchRecord{}
	}
	s.Sources = report.Sources(s.Reports)
	return s
}

// WriteAtomic creates missing parent directories and writes data to a sibling temp file and renames it over path.
func WriteAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
