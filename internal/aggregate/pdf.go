package aggregate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders the summary as a small A4 report: totals, the location
// and species tables, then the landing/boat breakdown.
func WritePDF(path, lastUpdated string, sum Summary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	heading := func(text string, size float64) {
		pdf.SetFont("Helvetica", "B", size)
		pdf.CellFormat(0, 8, tr(text), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}
	row := func(indent float64, label string, n int) {
		pdf.SetX(pdf.GetX() + indent)
		pdf.CellFormat(120-indent, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", n), "", 1, "R", false, 0, "")
	}

	heading("Dock totals", 14)
	if lastUpdated != "" {
		pdf.MultiCell(0, 5, "Last updated: "+lastUpdated, "", "L", false)
	}
	pdf.MultiCell(0, 5, fmt.Sprintf("Total reports: %d", sum.TotalReports), "", "L", false)
	pdf.Ln(4)

	heading("Reports by location", 12)
	for _, loc := range sortedKeys(sum.Locations) {
		row(0, loc, sum.Locations[loc])
	}
	pdf.Ln(4)

	heading("Reports by species", 12)
	for _, sp := range sortedKeys(sum.Species) {
		row(0, sp, sum.Species[sp])
	}
	pdf.Ln(4)

	heading("Fish by landing and boat", 12)
	for _, landing := range sortedKeys(sum.Landings) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, tr(landing), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		boats := sum.Landings[landing]
		for _, boat := range sortedKeys(boats) {
			pdf.SetX(pdf.GetX() + 5)
			pdf.CellFormat(0, 6, tr(boat), "", 1, "L", false, 0, "")
			species := boats[boat]
			for _, sp := range sortedKeys(species) {
				row(10, sp, species[sp])
			}
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir pdf dir: %w", err)
		}
	}
	return pdf.OutputFileAndClose(path)
}
