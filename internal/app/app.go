package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/dockcounts/internal/aggregate"
	"github.com/hyperifyio/dockcounts/internal/cache"
	"github.com/hyperifyio/dockcounts/internal/extract"
	"github.com/hyperifyio/dockcounts/internal/fetch"
	"github.com/hyperifyio/dockcounts/internal/merge"
	"github.com/hyperifyio/dockcounts/internal/parse"
	"github.com/hyperifyio/dockcounts/internal/report"
	"github.com/hyperifyio/dockcounts/internal/robots"
	"github.com/hyperifyio/dockcounts/internal/store"
)

// ErrPersist wraps a failure to save merge results. It is the one run error
// the CLI treats as fatal.
var ErrPersist = errors.New("persist failed")

// DateFailure records a date/source pair that could not be fetched so the
// operator can rerun it alone.
type DateFailure struct {
	Date   string
	Source string
	Err    error
}

func (f DateFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Source, f.Date, f.Err)
}

func (f DateFailure) Unwrap() error { return f.Err }

// RunResult summarizes one run.
type RunResult struct {
	Dates []string
	// Parsed is the number of records extracted in this run.
	Parsed   int
	Merge    merge.Stats
	Store    report.Store
	Summary  aggregate.Summary
	Failures []DateFailure
	// Persisted is false for dry runs.
	Persisted bool
}

type source struct {
	name    string
	parser  *parse.Parser
	fetcher *fetch.DocumentFetcher
}

type App struct {
	cfg      Config
	sources  []source
	backend  store.Backend
	locked   *store.Locked
	mergeOpt merge.Options
	now      func() time.Time
	out      io.Writer
	client   *http.Client
}

// Option customizes an App beyond Config.
type Option func(*App)

// WithClock replaces time.Now for default dates and last_updated.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithOutput sets where the text summary is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithHTTPClient replaces the HTTP client used for pages and robots.txt.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.client = c }
}

func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, now: time.Now, out: os.Stdout}
	for _, o := range opts {
		o(a)
	}
	if a.client == nil {
		a.client = newHTTPClient(cfg.Workers)
	}

	var docs *cache.DocumentCache
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache purge failed")
			} else if n > 0 {
				log.Info().Int("removed", n).Str("dir", cfg.CacheDir).Msg("purged stale cache entries")
			}
		}
		docs = &cache.DocumentCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	var rm *robots.Manager
	if cfg.RespectRobots {
		rm = &robots.Manager{HTTPClient: a.client, UserAgent: cfg.UserAgent}
	}

	for _, sc := range cfg.sources() {
		trip, err := extract.TripExtractorByName(sc.TripStrategy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		p := parse.New(parse.Options{
			Source:         sc.Name,
			HeadingSuffix:  sc.HeadingSuffix,
			BoatMarker:     sc.BoatMarker,
			LocationMarker: sc.LocationMarker,
			Trip:           trip,
		})
		f := &fetch.DocumentFetcher{
			Client: &fetch.Client{
				HTTPClient:        a.client,
				UserAgent:         cfg.UserAgent,
				MaxAttempts:       3,
				PerRequestTimeout: 30 * time.Second,
				Cache:             docs,
				MaxConcurrent:     cfg.Workers,
				Now:               a.now,
			},
			URLTemplate:    sc.URL,
			Robots:         rm,
			ReuseFinalized: docs != nil,
			Now:            a.now,
		}
		a.sources = append(a.sources, source{name: p.Source(), parser: p, fetcher: f})
	}

	key, err := merge.KeyFuncByName(cfg.StoreKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	a.mergeOpt = merge.Options{Limit: cfg.StoreLimit, Key: key}

	if cfg.DryRun {
		log.Debug().Str("path", cfg.StorePath).Str("format", cfg.StoreFormat).Int("sources", len(a.sources)).Msg("app ready (dry run)")
		return a, nil
	}
	backend, err := store.Open(cfg.StoreFormat, cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.backend = backend
	a.locked = &store.Locked{Backend: backend}
	if cfg.StorePath != ":memory:" {
		a.locked.LockFile = cfg.StorePath + ".lock"
	}
	log.Debug().Str("path", cfg.StorePath).Str("format", cfg.StoreFormat).Int("sources", len(a.sources)).Msg("app ready")
	return a, nil
}

func (a *App) Close() {
	if a.backend == nil {
		return
	}
	if err := a.backend.Close(); err != nil {
		log.Warn().Err(err).Str("path", a.backend.Path()).Msg("close store")
	}
}

// Run fetches and parses every date of the configured range, merges the
// records into the store and writes the derived reports. Per-date failures
// are collected in the result; only a persistence failure is returned as an
// error (wrapping ErrPersist).
func (a *App) Run(ctx context.Context) (RunResult, error) {
	start := a.cfg.StartDate
	if start == "" {
		start = a.now().Format(report.DateLayout)
	}
	dates, err := DateRange(start, a.cfg.EndDate)
	if err != nil {
		return RunResult{}, err
	}
	res := RunResult{Dates: dates}

	incoming, failures, err := a.collect(ctx, dates)
	if err != nil {
		return res, err
	}
	res.Parsed = len(incoming)
	res.Failures = failures

	if a.cfg.DryRun {
		current, err := store.Peek(ctx, a.cfg.StoreFormat, a.cfg.StorePath)
		if err != nil {
			log.Warn().Err(err).Str("path", a.cfg.StorePath).Msg("dry run: store unreadable; previewing against an empty store")
		}
		preview, stats := merge.Apply(current, incoming, a.mergeOpt, a.now())
		res.Store, res.Merge = preview, stats
		log.Info().Int("parsed", res.Parsed).Int("would_keep", stats.Kept).Int("duplicates", stats.Duplicates).Msg("dry run: not persisting")
	} else {
		if dir := filepath.Dir(a.cfg.StorePath); a.cfg.StorePath != ":memory:" && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return res, fmt.Errorf("%w: %w", ErrPersist, err)
			}
		}
		var stats merge.Stats
		next, err := a.locked.Update(ctx, func(s report.Store) (report.Store, error) {
			merged, st := merge.Apply(s, incoming, a.mergeOpt, a.now())
			stats = st
			return merged, nil
		})
		if err != nil {
			log.Error().Err(err).Str("path", a.cfg.StorePath).Str("format", a.cfg.StoreFormat).Msg("persist failed")
			return res, fmt.Errorf("%w: %w", ErrPersist, err)
		}
		res.Store, res.Merge, res.Persisted = next, stats, true
		log.Info().
			Str("path", a.cfg.StorePath).
			Int("kept", stats.Kept).
			Int("duplicates", stats.Duplicates).
			Int("dropped", stats.Dropped).
			Msg("saved reports")
	}

	res.Summary = aggregate.Summarize(res.Store)
	a.writeReports(res)

	for _, f := range res.Failures {
		log.Warn().Str("date", f.Date).Str("source", f.Source).Err(f.Err).Msg("date not processed; rerun with -start/-end for this date")
	}
	return res, nil
}

// collect gathers records for every date and source. Output order is
// calendar order, then source order, independent of completion order.
func (a *App) collect(ctx context.Context, dates []string) ([]report.CatchRecord, []DateFailure, error) {
	if a.cfg.InputPath != "" {
		return a.collectOffline(dates)
	}

	type unit struct {
		records []report.CatchRecord
		failure *DateFailure
	}
	units := make([]unit, len(dates)*len(a.sources))

	g, gctx := errgroup.WithContext(ctx)
	workers := a.cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	g.SetLimit(workers)
	for di, date := range dates {
		for si, src := range a.sources {
			idx := di*len(a.sources) + si
			g.Go(func() error {
				body, err := src.fetcher.FetchDocument(gctx, date)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					log.Warn().Err(err).Str("date", date).Str("source", src.name).Msg("fetch failed")
					units[idx].failure = &DateFailure{Date: date, Source: src.name, Err: err}
					return nil
				}
				units[idx].records = a.parseOne(src, body, date)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var records []report.CatchRecord
	var failures []DateFailure
	for _, u := range units {
		if u.failure != nil {
			failures = append(failures, *u.failure)
			continue
		}
		records = append(records, u.records...)
	}
	return records, failures, nil
}

func (a *App) collectOffline(dates []string) ([]report.CatchRecord, []DateFailure, error) {
	src := a.sources[0]
	date := dates[0]
	if len(dates) > 1 {
		log.Warn().Str("input", a.cfg.InputPath).Str("date", date).Msg("offline input covers a single date; ignoring the rest of the range")
	}
	body, err := os.ReadFile(a.cfg.InputPath)
	if err != nil {
		log.Warn().Err(err).Str("date", date).Str("source", src.name).Msg("read input failed")
		return nil, []DateFailure{{Date: date, Source: src.name, Err: err}}, nil
	}
	return a.parseOne(src, body, date), nil, nil
}

func (a *App) parseOne(src source, body []byte, date string) []report.CatchRecord {
	r := src.parser.Parse(body, date)
	log.Info().
		Str("date", date).
		Str("source", src.name).
		Int("panels", r.Panels).
		Int("skipped_rows", r.SkippedRows).
		Int("skipped_entries", r.SkippedEntries).
		Msgf("parsed %d records", len(r.Records))
	return r.Records
}

// writeReports emits stats, PDF and text summary. These are derived views,
// so failures are logged and do not fail the run.
func (a *App) writeReports(res RunResult) {
	if res.Persisted {
		if p := strings.TrimSpace(a.cfg.StatsPath); p != "" {
			if err := aggregate.WriteJSON(p, res.Summary); err != nil {
				log.Warn().Err(err).Str("path", p).Msg("write stats")
			} else {
				log.Info().Str("path", p).Int("total_reports", res.Summary.TotalReports).Msg("wrote stats")
			}
		}
		if p := strings.TrimSpace(a.cfg.StatsPDF); p != "" {
			if err := aggregate.WritePDF(p, res.Store.LastUpdated, res.Summary); err != nil {
				log.Warn().Err(err).Str("path", p).Msg("write pdf")
			} else {
				log.Info().Str("path", p).Msg("wrote pdf summary")
			}
		}
	}
	if a.cfg.Summary {
		if err := aggregate.WriteText(a.out, res.Summary); err != nil {
			log.Warn().Err(err).Msg("write summary")
		}
	}
}
