package report

import (
	"sort"
	"time"
)

// UnknownLocation is used when no line of the boat cell carries the
// location marker.
const UnknownLocation = "Unknown"

// TimestampLayout is the format of Store.LastUpdated.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the format of CatchRecord.Date.
const DateLayout = "2006-01-02"

// CatchRecord is one species' catch on one boat trip for one report date.
// Field order is part of the persisted format and must not change.
type CatchRecord struct {
	Location string  `json:"location"`
	Landing  string  `json:"landing"`
	Boat     string  `json:"boat"`
	Trip     *string `json:"trip"`
	Anglers  *string `json:"anglers"`
	Species  string  `json:"species"`
	Count    int     `json:"count"`
	Released bool    `json:"released"`
	Date     string  `json:"date"`
	Source   string  `json:"source"`
}

// Fields lists the persisted column names in CatchRecord order.
var Fields = []string{
	"location", "landing", "boat", "trip", "anglers",
	"species", "count", "released", "date", "source",
}

// Key identifies one observation for deduplication. Two records with equal
// keys are treated as the same catch regardless of the remaining fields.
type Key struct {
	Date     string
	Location string
	Boat     string
	Species  string
	Count    int
}

// Store is the persisted canonical collection of catch records.
type Store struct {
	Reports     []CatchRecord `json:"reports"`
	LastUpdated string        `json:"last_updated"`
	Sources     []string      `json:"sources"`
}

// NewStore returns the empty default store.
func NewStore() Store {
	return Store{Reports: []CatchRecord{}, LastUpdated: "", Sources: []string{}}
}

// Sources returns the sorted set of distinct source identifiers.
func Sources(records []CatchRecord) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 4)
	for _, r := range records {
		if _, ok := seen[r.Source]; ok {
			continue
		}
		seen[r.Source] = struct{}{}
		out = append(out, r.Source)
	}
	sort.Strings(out)
	return out
}

// Stamp formats t as a LastUpdated value.
func Stamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
