package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dockcounts/internal/report"
	"github.com/hyperifyio/dockcounts/internal/robots"
)

// DefaultURLTemplate is the dock totals page of San Diego Fish Reports.
const DefaultURLTemplate = "https://www.sandiegofishreports.com/dock_totals/boats.php?date={date}"

// ErrDisallowed is returned when robots.txt forbids the report URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// DocumentFetcher retrieves the report document of one source for a date.
type DocumentFetcher struct {
	Client *Client
	// URLTemplate contains the literal "{date}" placeholder.
	URLTemplate string
	// Robots gates requests when non-nil.
	Robots *robots.Manager
	// ReuseFinalized serves a past date straight from the cache when its body
	// was saved after that day ended. Earlier copies may hold partial totals
	// and are revalidated.
	ReuseFinalized bool
	// Now defaults to time.Now.
	Now func() time.Time

	mu   sync.Mutex
	last time.Time
}

// URL expands the template for date.
func (f *DocumentFetcher) URL(date string) string {
	tpl := f.URLTemplate
	if tpl == "" {
		tpl = DefaultURLTemplate
	}
	return strings.ReplaceAll(tpl, "{date}", date)
}

// FetchDocument returns the raw document for date.
func (f *DocumentFetcher) FetchDocument(ctx context.Context, date string) ([]byte, error) {
	if f.Client == nil {
		return nil, errors.New("fetcher has no client")
	}
	u := f.URL(date)

	if f.ReuseFinalized && f.Client.Cache != nil && f.isPast(date) {
		if body, ok := f.loadFinalized(ctx, u, date); ok {
			log.Debug().Str("date", date).Str("url", u).Msg("serving finalized day from cache")
			return body, nil
		}
	}

	if f.Robots != nil {
		ok, delay, err := f.Robots.Allowed(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", u, ErrDisallowed)
		}
		if delay != nil {
			if err := f.pace(ctx, *delay); err != nil {
				return nil, err
			}
		}
	}

	body, _, err := f.Client.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	return body, nil
}

func (f *DocumentFetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// loadFinalized returns the cached body of u when it was saved after the end
// of date.
func (f *DocumentFetcher) loadFinalized(ctx context.Context, u, date string) ([]byte, bool) {
	meta, err := f.Client.Cache.LoadMeta(ctx, u)
	if err != nil || meta == nil {
		return nil, false
	}
	d, err := time.ParseInLocation(report.DateLayout, date, f.now().Location())
	if err != nil {
		return nil, false
	}
	if !meta.SavedAt.After(d.AddDate(0, 0, 1)) {
		log.Debug().Str("date", date).Time("saved_at", meta.SavedAt).Msg("cached copy predates end of day; revalidating")
		return nil, false
	}
	body, err := f.Client.Cache.LoadBody(ctx, u)
	if err != nil {
		return nil, false
	}
	return body, true
}

func (f *DocumentFetcher) isPast(date string) bool {
	d, err := time.Parse(report.DateLayout, date)
	if err != nil {
		return false
	}
	today := f.now().Format(report.DateLayout)
	return d.Format(report.DateLayout) < today
}

// pace spaces consecutive requests at least delay apart.
func (f *DocumentFetcher) pace(ctx context.Context, delay time.Duration) error {
	f.mu.Lock()
	wait := time.Until(f.last.Add(delay))
	if wait < 0 {
		wait = 0
	}
	f.last = time.Now().Add(wait)
	f.mu.Unlock()
	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
