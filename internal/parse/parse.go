package parse

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dockcounts/internal/extract"
	"github.com/hyperifyio/dockcounts/internal/report"
)

const (
	// DefaultSource names the dock-totals site the parser was written against.
	DefaultSource = "San Diego Fish Reports"
	// DefaultHeadingSuffix is the boilerplate trailing every landing heading.
	DefaultHeadingSuffix = " Fish Counts for Today"
)

// Options configures a Parser for one report source.
type Options struct {
	Source         string
	HeadingSuffix  string
	BoatMarker     string
	LocationMarker string
	Trip           extract.TripExtractor
}

// Parser turns one dock-totals document into catch records. It holds no
// mutable state, so one Parser may serve concurrent calls.
type Parser struct {
	opt Options
}

// Result is the outcome of parsing one document.
type Result struct {
	Records        []report.CatchRecord
	Panels         int
	Rows           int
	SkippedRows    int
	SkippedEntries int
}

// New returns a Parser, filling unset options with the dock-totals defaults.
func New(opt Options) *Parser {
	if opt.Source == "" {
		opt.Source = DefaultSource
	}
	if opt.HeadingSuffix == "" {
		opt.HeadingSuffix = DefaultHeadingSuffix
	}
	if opt.BoatMarker == "" {
		opt.BoatMarker = extract.DefaultBoatMarker
	}
	if opt.LocationMarker == "" {
		opt.LocationMarker = extract.DefaultLocationMarker
	}
	if opt.Trip == nil {
		opt.Trip = extract.LineTrip{}
	}
	return &Parser{opt: opt}
}

// Source returns the identifier stamped on every record.
func (p *Parser) Source() string { return p.opt.Source }

// Parse walks panel -> table -> row -> columns in document order and emits one
// record per species entry. Missing structure yields an empty result, never
// an error. Rows with fewer than three cells and entries with an unusable
// count are skipped.
func (p *Parser) Parse(input []byte, date string) Result {
	res := Result{Records: []report.CatchRecord{}}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(input))
	if err != nil {
		log.Debug().Err(err).Str("date", date).Str("source", p.opt.Source).Msg("unparseable document")
		return res
	}

	doc.Find("div.panel").Each(func(_ int, panel *goquery.Selection) {
		heading := panel.Find("h2").First()
		if heading.Length() == 0 {
			return
		}
		table := panel.Find("table").First()
		if table.Length() == 0 {
			return
		}
		res.Panels++
		landing := p.landingName(heading)

		for i, row := range tableRows(table) {
			res.Rows++
			cols := row.ChildrenFiltered("td")
			if cols.Length() < 3 {
				res.SkippedRows++
				log.Debug().Str("date", date).Str("landing", landing).Int("row", i).Int("cells", cols.Length()).Msg("skipping short row")
				continue
			}
			p.buildRecords(&res, cols, landing, date)
		}
	})
	return res
}

func (p *Parser) landingName(heading *goquery.Selection) string {
	text := strings.Join(extract.CellFromNode(heading.Get(0)).Lines, " ")
	text = strings.TrimSuffix(text, p.opt.HeadingSuffix)
	return strings.TrimSpace(text)
}

// tableRows returns the data rows of a table: the children of its first
// tbody, or every row but the first when no tbody exists.
func tableRows(table *goquery.Selection) []*goquery.Selection {
	var rows *goquery.Selection
	if body := table.ChildrenFiltered("tbody").First(); body.Length() > 0 {
		rows = body.ChildrenFiltered("tr")
	} else {
		all := table.Find("tr")
		if all.Length() < 2 {
			return nil
		}
		rows = all.Slice(1, goquery.ToEnd)
	}
	out := make([]*goquery.Selection, 0, rows.Length())
	rows.Each(func(_ int, s *goquery.Selection) { out = append(out, s) })
	return out
}

func (p *Parser) buildRecords(res *Result, cols *goquery.Selection, landing, date string) {
	boatCell := extract.CellFromNode(cols.Get(0))
	boat := extract.ExtractBoatName(boatCell, p.opt.BoatMarker)
	location := extract.ExtractLocation(boatCell.Lines, p.opt.LocationMarker)

	anglers, trip := p.opt.Trip.TripInfo(extract.CellFromNode(cols.Get(1)))

	for _, fc := range extract.ExtractFishCounts(extract.CellFromNode(cols.Get(2)).Text()) {
		count, err := strconv.Atoi(fc.Count)
		if err != nil || count < 0 {
			res.SkippedEntries++
			log.Debug().Str("date", date).Str("boat", boat).Str("count", fc.Count).Msg("skipping entry with bad count")
			continue
		}
		species, released := extract.NormalizeSpecies(fc.Species)
		res.Records = append(res.Records, report.CatchRecord{
			Location: location,
			Landing:  landing,
			Boat:     boat,
			Trip:     report.Str(report.Deref(trip)),
			Anglers:  report.Str(report.Deref(anglers)),
			Species:  species,
			Count:    count,
			Released: released,
			Date:     date,
			Source:   p.opt.Source,
		})
	}
}
