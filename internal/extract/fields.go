package extract

import (
	"regexp"
	"strings"

	"github.com/hyperifyio/dockcounts/internal/report"
)

// ReleasedQualifier marks a catch as released. The match is a literal,
// case-sensitive substring test, so a species whose name happens to contain
// the token is misclassified.
const ReleasedQualifier = "Released"

// DefaultBoatMarker is the character the dock-totals markup prefixes boat names with.
const DefaultBoatMarker = "b"

// DefaultLocationMarker is the region code that identifies the location line.
const DefaultLocationMarker = "CA"

// DayMarker identifies the trip-type line.
const DayMarker = "Day"

var (
	fishCountRe = regexp.MustCompile(`(\d+) ([^,]+?)(?:,|$)`)
	anglersRe   = regexp.MustCompile(`(\d+)\s*Anglers?`)
	bareCountRe = regexp.MustCompile(`^\d+$`)
)

// FishCount is one raw "<count> <species>" pair from a catch cell.
type FishCount struct {
	Count   string
	Species string
}

// ExtractBoatName takes the first line of the boat cell, removes one leading
// marker and trims the rest. It returns "" for an empty cell.
func ExtractBoatName(cell Cell, marker string) string {
	if len(cell.Lines) == 0 {
		return ""
	}
	name := strings.TrimSpace(cell.Lines[0])
	if marker != "" {
		name = strings.TrimPrefix(name, marker)
	}
	return strings.TrimSpace(name)
}

// ExtractLocation returns the first line containing marker, or
// report.UnknownLocation. The boat-name line is scanned too.
func ExtractLocation(lines []string, marker string) string {
	if marker == "" {
		marker = DefaultLocationMarker
	}
	for _, line := range lines {
		if strings.Contains(line, marker) {
			return strings.TrimSpace(line)
		}
	}
	return report.UnknownLocation
}

// ExtractFishCounts returns every "<integer> <text>" pair of a comma
// separated catch list. Segments that do not start with a count are dropped.
// Line breaks inside the cell separate entries like commas do.
func ExtractFishCounts(text string) []FishCount {
	text = joinCatchLines(text)
	matches := fishCountRe.FindAllStringSubmatch(text, -1)
	out := make([]FishCount, 0, len(matches))
	for _, m := range matches {
		species := strings.TrimSpace(m[2])
		if species == "" {
			continue
		}
		out = append(out, FishCount{Count: strings.TrimSpace(m[1]), Species: species})
	}
	return out
}

func joinCatchLines(text string) string {
	lines := splitLines(text)
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, ",")
	}
	return strings.Join(lines, ", ")
}

// NormalizeSpecies splits a raw species string into its name and released flag.
// The name is the text before the qualifier, trimmed.
func NormalizeSpecies(raw string) (string, bool) {
	i := strings.Index(raw, ReleasedQualifier)
	if i < 0 {
		return strings.TrimSpace(raw), false
	}
	return strings.TrimSpace(raw[:i]), true
}

// parseAnglers pulls a head count from a trip-info line: "22 Anglers" and
// "22" both yield "22".
func parseAnglers(line string) *string {
	line = strings.TrimSpace(line)
	if m := anglersRe.FindStringSubmatch(line); m != nil {
		return report.Str(m[1])
	}
	if bareCountRe.MatchString(line) {
		return report.Str(line)
	}
	return nil
}
