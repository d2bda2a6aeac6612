package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFile_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dockcounts.yaml")
	content := `
start: "2025-01-01"
end: "2025-01-07"
store:
  path: out/reports.csv
  format: csv
  limit: 2000
stats:
  pdf: out/stats.pdf
cache:
  maxAge: 24h
robots: false
sources:
  - name: San Diego Fish Reports
    url: https://example.com/dock_totals/boats.php?date={date}
  - name: Anchor Site
    url: https://example.org/counts?d={date}
    tripStrategy: anchor
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := DefaultConfig()
	ApplyFileConfig(&cfg, fc)

	if cfg.StartDate != "2025-01-01" || cfg.EndDate != "2025-01-07" {
		t.Fatalf("dates = %q..%q", cfg.StartDate, cfg.EndDate)
	}
	if cfg.StorePath != "out/reports.csv" || cfg.StoreFormat != "csv" || cfg.StoreLimit != 2000 {
		t.Fatalf("store = %q %q %d", cfg.StorePath, cfg.StoreFormat, cfg.StoreLimit)
	}
	if cfg.StatsPath != DefaultStatsPath || cfg.StatsPDF != "out/stats.pdf" {
		t.Fatalf("stats = %q %q", cfg.StatsPath, cfg.StatsPDF)
	}
	if cfg.CacheMaxAge != 24*time.Hour {
		t.Fatalf("CacheMaxAge=%v", cfg.CacheMaxAge)
	}
	if cfg.RespectRobots {
		t.Fatalf("robots: false should disable robots")
	}
	if len(cfg.Sources) != 2 || cfg.Sources[1].TripStrategy != "anchor" {
		t.Fatalf("sources = %+v", cfg.Sources)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"store":{"key":"location"},"workers":2,"cache":{"maxAge":"720h"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := DefaultConfig()
	ApplyFileConfig(&cfg, fc)
	if cfg.StoreKey != "location" || cfg.Workers != 2 || !cfg.RespectRobots {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.CacheMaxAge != 720*time.Hour {
		t.Fatalf("CacheMaxAge=%v, want 720h", cfg.CacheMaxAge)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"range", func(c *Config) { c.StartDate, c.EndDate = "2025-01-01", "2025-01-31" }, true},
		{"end before start", func(c *Config) { c.StartDate, c.EndDate = "2025-02-01", "2025-01-31" }, false},
		{"malformed start", func(c *Config) { c.StartDate = "01/02/2025" }, false},
		{"malformed end", func(c *Config) { c.StartDate, c.EndDate = "2025-01-01", "2025-13-01" }, false},
		{"negative limit", func(c *Config) { c.StoreLimit = -1 }, false},
		{"unknown format", func(c *Config) { c.StoreFormat = "xml" }, false},
		{"sqlite format", func(c *Config) { c.StoreFormat = "sqlite" }, true},
		{"unknown key", func(c *Config) { c.StoreKey = "captain" }, false},
		{"unknown trip strategy", func(c *Config) { c.Sources = []SourceConfig{{URL: "https://x/{date}", TripStrategy: "regex"}} }, false},
		{"url without placeholder", func(c *Config) { c.Sources = []SourceConfig{{URL: "https://x/today"}} }, false},
		{"empty store path", func(c *Config) { c.StorePath = " " }, false},
		{"offline with two sources", func(c *Config) {
			c.InputPath = "page.html"
			c.Sources = []SourceConfig{{Name: "a"}, {Name: "b"}}
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	got, err := DateRange("2024-02-27", "2024-03-01")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	want := []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	single, err := DateRange("2025-01-01", "")
	if err != nil || len(single) != 1 || single[0] != "2025-01-01" {
		t.Fatalf("single day: %v %v", single, err)
	}
	if _, err := DateRange("2025-01-02", "2025-01-01"); !errors.Is(err, ErrNoDates) {
		t.Fatalf("expected ErrNoDates for reversed range, got %v", err)
	}
	if _, err := DateRange("bad", ""); !errors.Is(err, ErrNoDates) {
		t.Fatalf("expected ErrNoDates for bad date, got %v", err)
	}
}
