package parse

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hyperifyio/dockcounts/internal/extract"
	"github.com/hyperifyio/dockcounts/internal/report"
)

const singlePanel = `<!doctype html>
<html><body>
<div class="panel">
  <h2>Example Landing Fish Counts for Today</h2>
  <table>
    <thead><tr><th>Boat</th><th>Trip Details</th><th>Dock Totals</th></tr></thead>
    <tbody>
      <tr>
        <td>bLucky Duck
San Diego, CA</td>
        <td>22 Anglers
1 Day</td>
        <td>10 Rockfish, 5 Lingcod Released</td>
      </tr>
    </tbody>
  </table>
</div>
</body></html>`

func TestParse_EndToEnd(t *testing.T) {
	p := New(Options{Source: "San Diego Fish Reports"})
	res := p.Parse([]byte(singlePanel), "2025-01-01")

	want := []report.CatchRecord{
		{
			Location: "San Diego, CA",
			Landing:  "Example Landing",
			Boat:     "Lucky Duck",
			Trip:     report.Str("1 Day"),
			Anglers:  report.Str("22"),
			Species:  "Rockfish",
			Count:    10,
			Released: false,
			Date:     "2025-01-01",
			Source:   "San Diego Fish Reports",
		},
		{
			Location: "San Diego, CA",
			Landing:  "Example Landing",
			Boat:     "Lucky Duck",
			Trip:     report.Str("1 Day"),
			Anglers:  report.Str("22"),
			Species:  "Lingcod",
			Count:    5,
			Released: true,
			Date:     "2025-01-01",
			Source:   "San Diego Fish Reports",
		},
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if res.Panels != 1 || res.Rows != 1 {
		t.Fatalf("unexpected counters: %+v", res)
	}
}

func TestParse_ShortRowSkipped(t *testing.T) {
	doc := `<div class="panel"><h2>Fisherman's Landing Fish Counts for Today</h2><table><tbody>
<tr><td>bDolphin<br>San Diego, CA</td><td>30 Anglers<br>1/2 Day AM</td><td>40 Calico Bass, 3 Sculpin</td></tr>
<tr><td>bBroken</td><td>12 Anglers</td></tr>
</tbody></table></div>`
	res := New(Options{}).Parse([]byte(doc), "2025-02-02")
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	for _, r := range res.Records {
		if r.Boat != "Dolphin" {
			t.Fatalf("record from malformed row leaked: %+v", r)
		}
		if r.Landing != "Fisherman's Landing" {
			t.Fatalf("unexpected landing %q", r.Landing)
		}
	}
	if res.SkippedRows != 1 {
		t.Fatalf("expected 1 skipped row, got %d", res.SkippedRows)
	}
}

func TestParse_BadCountSkipsOnlyThatEntry(t *testing.T) {
	doc := `<div class="panel"><h2>H&amp;M Landing</h2><table><tbody>
<tr><td>bPatriot</td><td>Overnight</td><td>99999999999999999999999 Sardine, 7 Whitefish</td></tr>
</tbody></table></div>`
	res := New(Options{}).Parse([]byte(doc), "2025-03-03")
	if len(res.Records) != 1 || res.Records[0].Species != "Whitefish" || res.Records[0].Count != 7 {
		t.Fatalf("unexpected records: %+v", res.Records)
	}
	r := res.Records[0]
	if r.Location != report.UnknownLocation {
		t.Fatalf("expected Unknown location, got %q", r.Location)
	}
	if r.Trip != nil || r.Anglers != nil {
		t.Fatalf("expected nil trip/anglers, got %v/%v", r.Trip, r.Anglers)
	}
	if r.Landing != "H&M Landing" {
		t.Fatalf("heading without suffix should be kept, got %q", r.Landing)
	}
	if res.SkippedEntries != 1 {
		t.Fatalf("expected 1 skipped entry, got %d", res.SkippedEntries)
	}
}

func TestParse_NoPanels(t *testing.T) {
	for _, doc := range []string{
		"",
		"<html><body><p>No reports today</p></body></html>",
		`<div class="panel"><p>advert</p><table><tr><td>a</td><td>b</td><td>1 c</td></tr></table></div>`,
		`<div class="panel"><h2>Landing</h2><p>no table</p></div>`,
	} {
		res := New(Options{}).Parse([]byte(doc), "2025-01-01")
		if res.Records == nil || len(res.Records) != 0 {
			t.Fatalf("expected empty non-nil records for %q, got %+v", doc, res.Records)
		}
	}
}

func TestParse_DocumentOrderAcrossPanels(t *testing.T) {
	doc := `
<div class="panel"><h2>A Landing Fish Counts for Today</h2><table><tbody>
<tr><td>bOne</td><td>1 Day</td><td>1 Yellowtail</td></tr>
<tr><td>bTwo</td><td>1 Day</td><td>2 Yellowtail</td></tr>
</tbody></table></div>
<div class="panel"><h2>B Landing Fish Counts for Today</h2><table><tbody>
<tr><td>bThree</td><td>1 Day</td><td>3 Yellowtail</td></tr>
</tbody></table></div>`
	res := New(Options{}).Parse([]byte(doc), "2025-01-01")
	var boats []string
	for _, r := range res.Records {
		boats = append(boats, r.Landing+"/"+r.Boat)
	}
	want := []string{"A Landing/One", "A Landing/Two", "B Landing/Three"}
	if diff := cmp.Diff(want, boats); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_AnchorStrategy(t *testing.T) {
	doc := `<div class="panel"><h2>Seaforth Landing Fish Counts for Today</h2><table><tbody>
<tr><td>bNew Seaforth<br>San Diego, CA</td><td>25 Anglers<br><a href="/trip">3/4 Day</a></td><td>12 Bonito</td></tr>
</tbody></table></div>`
	res := New(Options{Trip: extract.AnchorTrip{}}).Parse([]byte(doc), "2025-06-01")
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %+v", res.Records)
	}
	r := res.Records[0]
	if report.Deref(r.Anglers) != "25 Anglers" || report.Deref(r.Trip) != "3/4 Day" {
		t.Fatalf("unexpected trip fields: anglers=%q trip=%q", report.Deref(r.Anglers), report.Deref(r.Trip))
	}
}

func TestParse_HeaderRowWithoutTbody(t *testing.T) {
	// The HTML parser inserts an implicit tbody, so a td header row is walked
	// as data; it carries no counts and yields nothing.
	doc := `<div class="panel"><h2>Point Loma Sportfishing</h2><table>` +
		`<tr><td>Boat</td><td>Trip</td><td>Catch</td></tr>` +
		`<tr><td>bX</td><td>1 Day</td><td>1 Opah</td></tr></table></div>`
	res := New(Options{}).Parse([]byte(doc), "2025-01-01")
	if res.Rows != 2 {
		t.Fatalf("expected 2 rows walked, got %d", res.Rows)
	}
	if len(res.Records) != 1 || res.Records[0].Species != "Opah" {
		t.Fatalf("unexpected records: %+v", res.Records)
	}
}
