package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDocumentCache_SaveLoad(t *testing.T) {
	t.Parallel()
	c := &DocumentCache{Dir: filepath.Join(t.TempDir(), "docs")}
	url := "https://www.sandiegofishreports.com/dock_totals/boats.php?date=2025-01-01"
	if err := c.Save(context.Background(), Entry{URL: url, ContentType: "text/html", ETag: `"v1"`}, []byte("<html>1</html>")); err != nil {
		t.Fatalf("save: %v", err)
	}
	meta, err := c.LoadMeta(context.Background(), url)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if meta.ETag != `"v1"` || meta.SavedAt.IsZero() {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	body, err := c.LoadBody(context.Background(), url)
	if err != nil || string(body) != "<html>1</html>" {
		t.Fatalf("unexpected body %q err=%v", body, err)
	}
	if _, err := c.LoadBody(context.Background(), url+"x"); err == nil {
		t.Fatalf("expected miss for unknown url")
	}
}

func TestDocumentCache_StrictPerms(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "strict")
	c := &DocumentCache{Dir: dir, StrictPerms: true}
	url := "https://example.com/x"
	if err := c.Save(context.Background(), Entry{URL: url}, []byte("hello")); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	key := c.key(url)
	for _, f := range []string{filepath.Join(dir, key+".body"), filepath.Join(dir, key+".meta.json")} {
		fi, err := os.Stat(f)
		if err != nil {
			t.Fatalf("stat %s: %v", f, err)
		}
		if got := fi.Mode() & 0o777; got != 0o600 {
			t.Fatalf("%s mode = %o, want 0600", f, got)
		}
	}
}

func TestPurgeByAge(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &DocumentCache{Dir: dir}
	old := Entry{URL: "https://a/old", SavedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := Entry{URL: "https://a/new"}
	if err := c.Save(context.Background(), old, []byte("o")); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(context.Background(), fresh, []byte("n")); err != nil {
		t.Fatal(err)
	}
	removed, err := PurgeByAge(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := c.LoadBody(context.Background(), old.URL); err == nil {
		t.Fatalf("expected old body removed")
	}
	if _, err := c.LoadBody(context.Background(), fresh.URL); err != nil {
		t.Fatalf("fresh body should remain: %v", err)
	}
	if n, _ := PurgeByAge(filepath.Join(dir, "missing"), time.Hour); n != 0 {
		t.Fatalf("missing dir should purge nothing")
	}
}

func TestClearDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.body"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(entries))
	}
	if err := ClearDir("  "); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
