package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	apppkg "github.com/hyperifyio/dockcounts/internal/app"
)

const page = `<html><body><div class="panel"><h2>H&amp;M Landing Fish Counts for Today</h2>
<table><tbody><tr><td>bPoseidon<br>San Diego, CA</td><td>30 Anglers<br>Full Day</td><td>40 Rockfish, 2 Lingcod</td></tr></tbody></table>
</div></body></html>`

// Smoke test: run parses an offline document and writes the store.
func TestRun_OfflineWritesStore(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "page.html")
	if err := os.WriteFile(in, []byte(page), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	cfg := apppkg.DefaultConfig()
	cfg.InputPath = in
	cfg.StartDate = "2025-03-01"
	cfg.StorePath = filepath.Join(dir, "data", "fishing_reports.json")
	cfg.StatsPath = filepath.Join(dir, "data", "stats.json")
	cfg.CacheDir = ""
	cfg.RespectRobots = false
	cfg.Summary = true

	var out bytes.Buffer
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run error: %v", err)
	}
	b, err := os.ReadFile(cfg.StorePath)
	if err != nil || len(b) == 0 {
		t.Fatalf("expected store file, err=%v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("Rockfish: 40")) {
		t.Fatalf("summary missing counts:\n%s", out.String())
	}
}

func TestResolveConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dockcounts.yaml")
	content := "store:\n  format: csv\n  limit: 50\nworkers: 3\nuserAgent: from-file\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STORE_LIMIT", "60")
	t.Setenv("USER_AGENT", "from-env")
	t.Setenv("WORKERS", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var flags apppkg.Config
	var configPath string
	var showVersion bool
	bindFlags(fs, &flags, &configPath, &showVersion)
	if err := fs.Parse([]string{"-config", cfgPath, "-ua", "from-flag"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := resolveConfig(fs, flags, configPath)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.StoreFormat != "csv" {
		t.Fatalf("file should set format, got %q", cfg.StoreFormat)
	}
	if cfg.StoreLimit != 60 {
		t.Fatalf("env should beat file for limit, got %d", cfg.StoreLimit)
	}
	if cfg.UserAgent != "from-flag" {
		t.Fatalf("flag should beat env, got %q", cfg.UserAgent)
	}
	if cfg.Workers != 3 {
		t.Fatalf("unset flag must not reset file value, got %d", cfg.Workers)
	}
	if cfg.StorePath != apppkg.DefaultStorePath {
		t.Fatalf("default store path lost: %q", cfg.StorePath)
	}
}

func TestResolveConfig_InvalidRange(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var flags apppkg.Config
	var configPath string
	var showVersion bool
	bindFlags(fs, &flags, &configPath, &showVersion)
	if err := fs.Parse([]string{"-start", "2025-02-02", "-end", "2025-02-01"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	_, err := resolveConfig(fs, flags, configPath)
	if exitCode(err) != 2 {
		t.Fatalf("invalid range should exit 2, got %d (%v)", exitCode(err), err)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("%w: disk full", apppkg.ErrPersist), 2},
		{fmt.Errorf("init app: %w", apppkg.ErrInvalidConfig), 2},
		{apppkg.ErrNoDates, 2},
		{errors.New("interrupted"), 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
