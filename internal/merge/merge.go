package merge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperifyio/dockcounts/internal/report"
)

// DefaultLimit bounds the store when the caller configures no limit.
const DefaultLimit = 10000

// KeyFunc maps a record to its identity key.
type KeyFunc func(report.CatchRecord) report.Key

// BoatKey identifies a record by (date, location, boat, species, count).
func BoatKey(r report.CatchRecord) report.Key {
	return report.Key{Date: r.Date, Location: r.Location, Boat: r.Boat, Species: r.Species, Count: r.Count}
}

// LocationKey identifies a record by (date, location, species), for sources
// that carry no boat-level detail.
func LocationKey(r report.CatchRecord) report.Key {
	return report.Key{Date: r.Date, Location: r.Location, Species: r.Species}
}

// KeyFuncByName resolves "boat" (default) or "location".
func KeyFuncByName(name string) (KeyFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "boat":
		return BoatKey, nil
	case "location":
		return LocationKey, nil
	default:
		return nil, fmt.Errorf("unknown dedup key: %q", name)
	}
}

// Options configures a merge.
type Options struct {
	// Limit is the maximum number of records kept. Zero or negative means DefaultLimit.
	Limit int
	// Key defaults to BoatKey.
	Key KeyFunc
}

// Stats describes what a merge did.
type Stats struct {
	Existing   int
	Incoming   int
	Duplicates int
	Dropped    int
	Kept       int
}

// Records concatenates existing then incoming, keeps the first record seen
// for each key, sorts by date descending and truncates to the limit. Records
// sharing a date keep their concatenation order, so the oldest dates are the
// ones dropped. Inputs are not modified.
func Records(existing, incoming []report.CatchRecord, opt Options) ([]report.CatchRecord, Stats) {
	limit := opt.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	keyOf := opt.Key
	if keyOf == nil {
		keyOf = BoatKey
	}
	st := Stats{Existing: len(existing), Incoming: len(incoming)}

	seen := make(map[report.Key]struct{}, len(existing)+len(incoming))
	out := make([]report.CatchRecord, 0, len(existing)+len(incoming))
	for _, group := range [][]report.CatchRecord{existing, incoming} {
		for _, r := range group {
			k := keyOf(r)
			if _, ok := seen[k]; ok {
				st.Duplicates++
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) > limit {
		st.Dropped = len(out) - limit
		out = out[:limit]
	}
	st.Kept = len(out)
	return out, st
}

// Apply merges incoming into s and returns the replacement store with a fresh
// timestamp and recomputed source list.
func Apply(s report.Store, incoming []report.CatchRecord, opt Options, now time.Time) (report.Store, Stats) {
	recs, st := Records(s.Reports, incoming, opt)
	return report.Store{
		Reports:     recs,
		LastUpdated: report.Stamp(now),
		Sources:     report.Sources(recs),
	}, st
}
