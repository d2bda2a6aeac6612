package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/hyperifyio/dockcounts/internal/report"
)

// ErrNoDates is returned when a range is empty or unparseable.
var ErrNoDates = errors.New("no dates to process")

// DateRange lists every calendar day from start to end inclusive. Dates are
// plain YYYY-MM-DD values with no timezone; an empty end means start.
func DateRange(start, end string) ([]string, error) {
	if end == "" {
		end = start
	}
	s, err := time.Parse(report.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q: %v", ErrNoDates, start, err)
	}
	e, err := time.Parse(report.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("%w: end %q: %v", ErrNoDates, end, err)
	}
	if e.Before(s) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrNoDates, end, start)
	}
	var out []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(report.DateLayout))
	}
	return out, nil
}
