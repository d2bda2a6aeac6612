package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/dockcounts/internal/extract"
	"github.com/hyperifyio/dockcounts/internal/merge"
	"github.com/hyperifyio/dockcounts/internal/report"
)

// ErrInvalidConfig wraps every ValidateConfig failure.
var ErrInvalidConfig = errors.New("invalid config")

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Start   string `yaml:"start" json:"start"`
	End     string `yaml:"end" json:"end"`
	Input   string `yaml:"input" json:"input"`
	DryRun  bool   `yaml:"dryRun" json:"dryRun"`
	Verbose bool   `yaml:"verbose" json:"verbose"`
	Summary bool   `yaml:"summary" json:"summary"`

	Store struct {
		Path   string `yaml:"path" json:"path"`
		Format string `yaml:"format" json:"format"`
		Limit  int    `yaml:"limit" json:"limit"`
		Key    string `yaml:"key" json:"key"`
	} `yaml:"store" json:"store"`

	Stats struct {
		Path string `yaml:"path" json:"path"`
		PDF  string `yaml:"pdf" json:"pdf"`
	} `yaml:"stats" json:"stats"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Workers   int    `yaml:"workers" json:"workers"`
	UserAgent string `yaml:"userAgent" json:"userAgent"`
	// Robots is a pointer so an explicit false can be told apart from unset.
	Robots *bool `yaml:"robots" json:"robots"`

	Sources []SourceConfig `yaml:"sources" json:"sources"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	// JSON is decoded as YAML so duration strings such as "720h" work in both.
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return fc, nil
}

// ApplyFileConfig overlays every value the file sets onto cfg. Call it on
// defaults, before ApplyEnvOverrides and explicit flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setString(&cfg.StartDate, fc.Start)
	setString(&cfg.EndDate, fc.End)
	setString(&cfg.InputPath, fc.Input)
	setString(&cfg.StorePath, fc.Store.Path)
	setString(&cfg.StoreFormat, fc.Store.Format)
	setString(&cfg.StoreKey, fc.Store.Key)
	setString(&cfg.StatsPath, fc.Stats.Path)
	setString(&cfg.StatsPDF, fc.Stats.PDF)
	setString(&cfg.CacheDir, fc.Cache.Dir)
	setString(&cfg.UserAgent, fc.UserAgent)

	if fc.Store.Limit > 0 {
		cfg.StoreLimit = fc.Store.Limit
	}
	if fc.Workers > 0 {
		cfg.Workers = fc.Workers
	}
	if fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if fc.DryRun {
		cfg.DryRun = true
	}
	if fc.Verbose {
		cfg.Verbose = true
	}
	if fc.Summary {
		cfg.Summary = true
	}
	if fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if fc.Robots != nil {
		cfg.RespectRobots = *fc.Robots
	}
	if len(fc.Sources) > 0 {
		cfg.Sources = append([]SourceConfig{}, fc.Sources...)
	}
}

// ValidateConfig rejects settings the run cannot start with.
func ValidateConfig(cfg Config) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	var start, end time.Time
	var err error
	if cfg.StartDate != "" {
		if start, err = time.Parse(report.DateLayout, cfg.StartDate); err != nil {
			return invalid("start date %q is not YYYY-MM-DD", cfg.StartDate)
		}
	}
	if cfg.EndDate != "" {
		if end, err = time.Parse(report.DateLayout, cfg.EndDate); err != nil {
			return invalid("end date %q is not YYYY-MM-DD", cfg.EndDate)
		}
	}
	if cfg.StartDate != "" && cfg.EndDate != "" && end.Before(start) {
		return invalid("end date %s is before start date %s", cfg.EndDate, cfg.StartDate)
	}
	if cfg.StoreLimit < 0 || cfg.Workers < 0 {
		return invalid("negative limits are not allowed")
	}
	if strings.TrimSpace(cfg.StorePath) == "" {
		return invalid("store path is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.StoreFormat)) {
	case "", "json", "csv", "sqlite", "sqlite3":
	default:
		return invalid("unknown store format %q", cfg.StoreFormat)
	}
	if _, err := merge.KeyFuncByName(cfg.StoreKey); err != nil {
		return invalid("%v", err)
	}
	for i, src := range cfg.sources() {
		if _, err := extract.TripExtractorByName(src.TripStrategy); err != nil {
			return invalid("sources[%d]: %v", i, err)
		}
		if src.URL != "" && !strings.Contains(src.URL, "{date}") {
			return invalid("sources[%d]: url %q has no {date} placeholder", i, src.URL)
		}
	}
	if cfg.InputPath != "" && len(cfg.sources()) > 1 {
		return invalid("offline input needs exactly one source")
	}
	return nil
}
