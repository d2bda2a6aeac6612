package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dockcounts/internal/report"
)

// CSVStore keeps one row per record under a header row in report.Fields
// order. A nil trip or anglers value is written as an empty cell. The file
// has no place for last_updated; Load reports the file modification time.
type CSVStore struct {
	File string
}

func (c *CSVStore) Path() string { return c.File }

func (c *CSVStore) Close() error { return nil }

func (c *CSVStore) Load(_ context.Context) report.Store {
	f, err := os.Open(c.File)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", c.File).Msg("store unreadable; starting empty")
		}
		return report.NewStore()
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil || !sameHeader(header) {
		if err != io.EOF {
			log.Warn().Err(err).Str("path", c.File).Msg("store header invalid; starting empty")
		}
		return report.NewStore()
	}

	s := report.NewStore()
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Warn().Err(err).Str("path", c.File).Msg("store corrupt; starting empty")
			return report.NewStore()
		}
		rec, err := decodeRow(row)
		if err != nil {
			log.Debug().Err(err).Str("path", c.File).Int("line", line).Msg("skipping stored row")
			continue
		}
		s.Reports = append(s.Reports, rec)
	}
	if info, err := f.Stat(); err == nil {
		s.LastUpdated = report.Stamp(info.ModTime())
	}
	return normalize(s)
}

func (c *CSVStore) Save(_ context.Context, s report.Store) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(report.Fields); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, r := range s.Reports {
		if err := w.Write(encodeRow(r)); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := WriteAtomic(c.File, buf.Bytes()); err != nil {
		return fmt.Errorf("save %s: %w", c.File, err)
	}
	return nil
}

func sameHeader(h []string) bool {
	if len(h) != len(report.Fields) {
		return false
	}
	for i := range h {
		if h[i] != report.Fields[i] {
			return false
		}
	}
	return true
}

func encodeRow(r report.CatchRecord) []string {
	return []string{
		r.Location,
		r.Landing,
		r.Boat,
		report.Deref(r.Trip),
		report.Deref(r.Anglers),
		r.Species,
		strconv.Itoa(r.Count),
		strconv.FormatBool(r.Released),
		r.Date,
		r.Source,
	}
}

func decodeRow(row []string) (report.CatchRecord, error) {
	if len(row) != len(report.Fields) {
		return report.CatchRecord{}, fmt.Errorf("want %d columns, got %d", len(report.Fields), len(row))
	}
	count, err := strconv.Atoi(row[6])
	if err != nil || count < 0 {
		return report.CatchRecord{}, fmt.Errorf("bad count %q", row[6])
	}
	released, err := strconv.ParseBool(row[7])
	if err != nil {
		return report.CatchRecord{}, fmt.Errorf("bad released flag %q", row[7])
	}
	return report.CatchRecord{
		Location: row[0],
		Landing:  row[1],
		Boat:     row[2],
		Trip:     report.Str(row[3]),
		Anglers:  report.Str(row[4]),
		Species:  row[5],
		Count:    count,
		Released: released,
		Date:     row[8],
		Source:   row[9],
	}, nil
}
