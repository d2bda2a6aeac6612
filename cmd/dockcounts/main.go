package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dockcounts/internal/app"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := app.LoadEnvFiles(".env", ".env.local"); err != nil {
		log.Warn().Err(err).Msg("load dotenv")
	}

	fs := flag.NewFlagSet("dockcounts", flag.ExitOnError)
	var flags app.Config
	var configPath string
	var showVersion bool
	bindFlags(fs, &flags, &configPath, &showVersion)
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Printf("dockcounts %s (%s, %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		return
	}

	cfg, err := resolveConfig(fs, flags, configPath)
	if err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(2)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Error().Err(err).Msg("run failed")
		stop()
		os.Exit(exitCode(err))
	}
}

// bindFlags registers every flag against dst. Defaults come from
// app.DefaultConfig so -help shows the effective values.
func bindFlags(fs *flag.FlagSet, dst *app.Config, configPath *string, showVersion *bool) {
	def := app.DefaultConfig()
	fs.StringVar(configPath, "config", os.Getenv("DOCKCOUNTS_CONFIG"), "Path to YAML or JSON config file")
	fs.BoolVar(showVersion, "version", false, "Print version and exit")
	fs.StringVar(&dst.StartDate, "start", "", "Start date YYYY-MM-DD (default today)")
	fs.StringVar(&dst.EndDate, "end", "", "End date YYYY-MM-DD, inclusive (default start)")
	fs.BoolVar(&dst.DryRun, "dry-run", false, "Fetch and parse but do not persist")
	fs.BoolVar(&dst.Verbose, "v", false, "Verbose logging")
	fs.StringVar(&dst.StorePath, "store.path", def.StorePath, "Report store path")
	fs.StringVar(&dst.StoreFormat, "store.format", def.StoreFormat, "Report store format: json, csv or sqlite")
	fs.IntVar(&dst.StoreLimit, "store.limit", def.StoreLimit, "Maximum records retained, newest dates first")
	fs.StringVar(&dst.StoreKey, "store.key", def.StoreKey, "Dedup identity: boat or location")
	fs.StringVar(&dst.StatsPath, "stats.path", def.StatsPath, "Stats JSON output path (empty disables)")
	fs.StringVar(&dst.StatsPDF, "stats.pdf", "", "Optional PDF summary output path")
	fs.BoolVar(&dst.Summary, "summary", false, "Print landing/boat/species summary to stdout")
	fs.StringVar(&dst.InputPath, "input", "", "Parse a local HTML document for -start instead of fetching")
	fs.StringVar(&dst.CacheDir, "cache.dir", def.CacheDir, "Document cache directory (empty disables)")
	fs.DurationVar(&dst.CacheMaxAge, "cache.maxAge", 0, "Purge cached documents older than this (e.g. 720h); 0 disables")
	fs.BoolVar(&dst.CacheClear, "cache.clear", false, "Clear the cache directory before the run")
	fs.BoolVar(&dst.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.IntVar(&dst.Workers, "workers", def.Workers, "Dates fetched and parsed in parallel")
	fs.StringVar(&dst.UserAgent, "ua", def.UserAgent, "User-Agent for page and robots.txt requests")
	fs.BoolVar(&dst.RespectRobots, "robots", def.RespectRobots, "Honor robots.txt")
}

// resolveConfig applies defaults, then the config file, then environment,
// then the flags that were set explicitly.
func resolveConfig(fs *flag.FlagSet, flags app.Config, configPath string) (app.Config, error) {
	cfg := app.DefaultConfig()
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("%w: load %s: %v", app.ErrInvalidConfig, configPath, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start":
			cfg.StartDate = flags.StartDate
		case "end":
			cfg.EndDate = flags.EndDate
		case "dry-run":
			cfg.DryRun = flags.DryRun
		case "v":
			cfg.Verbose = flags.Verbose
		case "store.path":
			cfg.StorePath = flags.StorePath
		case "store.format":
			cfg.StoreFormat = flags.StoreFormat
		case "store.limit":
			cfg.StoreLimit = flags.StoreLimit
		case "store.key":
			cfg.StoreKey = flags.StoreKey
		case "stats.path":
			cfg.StatsPath = flags.StatsPath
		case "stats.pdf":
			cfg.StatsPDF = flags.StatsPDF
		case "summary":
			cfg.Summary = flags.Summary
		case "input":
			cfg.InputPath = flags.InputPath
		case "cache.dir":
			cfg.CacheDir = flags.CacheDir
		case "cache.maxAge":
			cfg.CacheMaxAge = flags.CacheMaxAge
		case "cache.clear":
			cfg.CacheClear = flags.CacheClear
		case "cache.strictPerms":
			cfg.CacheStrictPerms = flags.CacheStrictPerms
		case "workers":
			cfg.Workers = flags.Workers
		case "ua":
			cfg.UserAgent = flags.UserAgent
		case "robots":
			cfg.RespectRobots = flags.RespectRobots
		}
	})
	return cfg, app.ValidateConfig(cfg)
}

// exitCode maps run errors: invalid configuration or range and persistence
// failures exit 2. Per-date fetch failures never reach here.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrPersist), errors.Is(err, app.ErrInvalidConfig), errors.Is(err, app.ErrNoDates):
		return 2
	default:
		return 1
	}
}

func run(ctx context.Context, cfg app.Config, out io.Writer) error {
	a, err := app.New(ctx, cfg, app.WithOutput(out))
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	res, err := a.Run(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Int("dates", len(res.Dates)).
		Int("parsed", res.Parsed).
		Int("stored", len(res.Store.Reports)).
		Int("failed_dates", len(res.Failures)).
		Bool("persisted", res.Persisted).
		Msg("done")
	return nil
}
