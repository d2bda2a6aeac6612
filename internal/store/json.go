package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dockcounts/internal/report"
)

// JSONStore keeps the store as one indented JSON object with the keys
// reports, last_updated and sources.
type JSONStore struct {
	File string
}

func (j *JSONStore) Path() string { return j.File }

func (j *JSONStore) Close() error { return nil }

func (j *JSONStore) Load(_ context.Context) report.Store {
	b, err := os.ReadFile(j.File)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", j.File).Msg("store unreadable; starting empty")
		}
		return report.NewStore()
	}
	var s report.Store
	if err := json.Unmarshal(b, &s); err != nil {
		log.Warn().Err(err).Str("path", j.File).Msg("store corrupt; starting empty")
		return report.NewStore()
	}
	return normalize(s)
}

func (j *JSONStore) Save(_ context.Context, s report.Store) error {
	data, err := json.MarshalIndent(normalize(s), "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := WriteAtomic(j.File, append(data, '\n')); err != nil {
		return fmt.Errorf("save %s: %w", j.File, err)
	}
	return nil
}
