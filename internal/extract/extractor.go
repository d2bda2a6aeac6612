package extract

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/dockcounts/internal/report"
)

// TripExtractor pulls the angler count and trip type out of a trip-info cell.
// A source uses exactly one implementation for all of its documents.
type TripExtractor interface {
	// TripInfo returns (anglers, tripType); either may be nil.
	TripInfo(cell Cell) (*string, *string)
	Name() string
}

// LineTrip splits the cell on line breaks. Anglers come from the first line
// ("22 Anglers" -> "22"); the trip type is the first line containing "Day".
type LineTrip struct{}

func (LineTrip) Name() string { return "lines" }

func (LineTrip) TripInfo(cell Cell) (*string, *string) {
	if len(cell.Lines) == 0 {
		return nil, nil
	}
	anglers := parseAnglers(cell.Lines[0])
	var trip *string
	for _, line := range cell.Lines {
		if strings.Contains(line, DayMarker) {
			trip = report.Str(strings.TrimSpace(line))
			break
		}
	}
	return anglers, trip
}

// AnchorTrip takes the angler field from the cell text before the first '|'
// separator, where text nodes are joined by '|', and the trip type from the
// first link text.
type AnchorTrip struct{}

func (AnchorTrip) Name() string { return "anchor" }

func (AnchorTrip) TripInfo(cell Cell) (*string, *string) {
	var anglers, trip *string
	if len(cell.Segments) > 0 {
		first, _, _ := strings.Cut(cell.Segments[0], "|")
		anglers = report.Str(strings.TrimSpace(first))
	}
	if cell.HasAnchor {
		trip = report.Str(cell.Anchor)
	}
	return anglers, trip
}

// TripExtractorByName resolves a configured strategy name. Empty selects LineTrip.
func TripExtractorByName(name string) (TripExtractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lines", "line":
		return LineTrip{}, nil
	case "anchor", "anchors":
		return AnchorTrip{}, nil
	default:
		return nil, fmt.Errorf("unknown trip strategy: %q", name)
	}
}
