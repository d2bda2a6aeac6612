package aggregate

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperifyio/dockcounts/internal/report"
	"github.com/hyperifyio/dockcounts/internal/store"
)

// speciesSeparator joins several species in one record for sources that
// report a combined catch line.
const speciesSeparator = ", "

// Summary is a read-only view over a store.
type Summary struct {
	TotalReports int `json:"total_reports"`
	// Locations counts records per location.
	Locations map[string]int `json:"locations"`
	// Species counts records per species after splitting combined entries.
	Species map[string]int `json:"species"`
	// Landings sums fish per landing, boat and species.
	Landings map[string]map[string]map[string]int `json:"-"`
}

// Summarize derives counts from s without modifying it.
func Summarize(s report.Store) Summary {
	sum := Summary{
		TotalReports: len(s.Reports),
		Locations:    map[string]int{},
		Species:      map[string]int{},
		Landings:     map[string]map[string]map[string]int{},
	}
	for _, r := range s.Reports {
		loc := r.Location
		if loc == "" {
			loc = report.UnknownLocation
		}
		sum.Locations[loc]++

		for _, sp := range strings.Split(r.Species, speciesSeparator) {
			if sp != "" {
				sum.Species[sp]++
			}
		}

		boats, ok := sum.Landings[r.Landing]
		if !ok {
			boats = map[string]map[string]int{}
			sum.Landings[r.Landing] = boats
		}
		species, ok := boats[r.Boat]
		if !ok {
			species = map[string]int{}
			boats[r.Boat] = species
		}
		species[r.Species] += r.Count
	}
	return sum
}

// WriteJSON writes the stats document (total_reports, locations, species).
func WriteJSON(path string, sum Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := store.WriteAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("write stats %s: %w", path, err)
	}
	return nil
}

// WriteText prints the landing/boat/species breakdown in sorted order.
func WriteText(w io.Writer, sum Summary) error {
	if _, err := fmt.Fprintf(w, "Summary by landing and boat (%d reports):\n", sum.TotalReports); err != nil {
		return err
	}
	for _, landing := range sortedKeys(sum.Landings) {
		if _, err := fmt.Fprintf(w, "\n%s:\n", landing); err != nil {
			return err
		}
		boats := sum.Landings[landing]
		for _, boat := range sortedKeys(boats) {
			if _, err := fmt.Fprintf(w, "  %s:\n", boat); err != nil {
				return err
			}
			species := boats[boat]
			for _, sp := range sortedKeys(species) {
				if _, err := fmt.Fprintf(w, "    %s: %d\n", sp, species[sp]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
