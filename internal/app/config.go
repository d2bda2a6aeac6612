package app

import (
	"time"

	"github.com/hyperifyio/dockcounts/internal/fetch"
	"github.com/hyperifyio/dockcounts/internal/merge"
	"github.com/hyperifyio/dockcounts/internal/parse"
)

// Defaults shared by flags, file config and tests.
const (
	DefaultStorePath   = "data/fishing_reports.json"
	DefaultStoreFormat = "json"
	DefaultStoreKey    = "boat"
	DefaultStatsPath   = "data/stats.json"
	DefaultCacheDir    = ".dockcounts-cache"
	DefaultWorkers     = 4
	DefaultUserAgent   = "dockcounts/1.0"
)

// SourceConfig describes one dock totals page and how to read it.
type SourceConfig struct {
	Name string `yaml:"name" json:"name"`
	// URL contains the literal "{date}" placeholder.
	URL            string `yaml:"url" json:"url"`
	HeadingSuffix  string `yaml:"headingSuffix" json:"headingSuffix"`
	LocationMarker string `yaml:"locationMarker" json:"locationMarker"`
	// TripStrategy is "lines" or "anchor".
	TripStrategy string `yaml:"tripStrategy" json:"tripStrategy"`
	BoatMarker   string `yaml:"boatMarker" json:"boatMarker"`
}

// Config holds runtime configuration for the application.
type Config struct {
	// Inclusive date range, YYYY-MM-DD. Empty start means today; empty end
	// means start.
	StartDate string
	EndDate   string

	// InputPath parses a local document for StartDate instead of fetching.
	InputPath string

	// Store
	StorePath   string
	StoreFormat string
	StoreLimit  int
	StoreKey    string

	// Reporting
	StatsPath string
	StatsPDF  string
	Summary   bool

	// Fetching
	Workers       int
	UserAgent     string
	RespectRobots bool
	Sources       []SourceConfig

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	// Behavior
	DryRun  bool
	Verbose bool
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		StorePath:     DefaultStorePath,
		StoreFormat:   DefaultStoreFormat,
		StoreLimit:    merge.DefaultLimit,
		StoreKey:      DefaultStoreKey,
		StatsPath:     DefaultStatsPath,
		Workers:       DefaultWorkers,
		UserAgent:     DefaultUserAgent,
		RespectRobots: true,
		CacheDir:      DefaultCacheDir,
	}
}

// DefaultSources is the single built-in source.
func DefaultSources() []SourceConfig {
	return []SourceConfig{{Name: parse.DefaultSource, URL: fetch.DefaultURLTemplate}}
}

func (c Config) sources() []SourceConfig {
	if len(c.Sources) == 0 {
		return DefaultSources()
	}
	return c.Sources
}
