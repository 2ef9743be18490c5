package server

import (
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/appvault/internal/version"
)

func newTestPublisher(t *testing.T) (*Publisher, *Catalog, string) {
	t.Helper()
	catalog := newTestCatalog(t)
	staticDir := filepath.Join(t.TempDir(), "static")

	p, err := NewPublisher(catalog, staticDir, log.New(io.Discard))
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}
	return p, catalog, staticDir
}

func TestRescanIndexesArtifacts(t *testing.T) {
	p, catalog, staticDir := newTestPublisher(t)

	if err := catalog.UpsertApp(App{Name: "WorkForce", ExecutablePrefix: "WorkForce_"}); err != nil {
		t.Fatalf("UpsertApp failed: %v", err)
	}

	for _, name := range []string{
		"WorkForce_01.00.exe",
		"WorkForce_01.02.exe",
		"WorkForce_junk.exe", // malformed, skipped
		"Other_01.00.exe",    // unknown prefix, skipped
	} {
		if err := os.WriteFile(filepath.Join(staticDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	if err := p.Rescan(); err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}

	latest, err := catalog.LatestVersion("WorkForce")
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}
	if latest != (version.Version{Major: 1, Minor: 2}) {
		t.Errorf("latest = %v, want 01.02", latest)
	}

	artifacts, err := catalog.Artifacts("WorkForce")
	if err != nil {
		t.Fatalf("Artifacts failed: %v", err)
	}
	if len(artifacts) != 2 {
		t.Errorf("indexed %d artifacts, want 2", len(artifacts))
	}
}

func TestRescanDropsRemovedArtifacts(t *testing.T) {
	p, catalog, staticDir := newTestPublisher(t)

	if err := catalog.UpsertApp(App{Name: "WorkForce", ExecutablePrefix: "WorkForce_"}); err != nil {
		t.Fatalf("UpsertApp failed: %v", err)
	}

	path := filepath.Join(staticDir, "WorkForce_01.00.exe")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing artifact: %v", err)
	}
	if err := p.Rescan(); err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("removing artifact: %v", err)
	}
	if err := p.Rescan(); err != nil {
		t.Fatalf("second Rescan failed: %v", err)
	}

	if _, err := catalog.LatestVersion("WorkForce"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("LatestVersion after removal = %v, want sql.ErrNoRows", err)
	}
}

func TestWatchPicksUpNewArtifact(t *testing.T) {
	p, catalog, staticDir := newTestPublisher(t)

	if err := catalog.UpsertApp(App{Name: "WorkForce", ExecutablePrefix: "WorkForce_"}); err != nil {
		t.Fatalf("UpsertApp failed: %v", err)
	}

	if err := p.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer p.Stop()

	if err := os.WriteFile(filepath.Join(staticDir, "WorkForce_02.00.exe"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing artifact: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v, err := catalog.LatestVersion("WorkForce"); err == nil && v == (version.Version{Major: 2, Minor: 0}) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("watcher did not index the new artifact")
}

func TestParseArtifactName(t *testing.T) {
	v, ok := parseArtifactName("WorkForce_01.02.exe", "WorkForce_")
	if !ok || v != (version.Version{Major: 1, Minor: 2}) {
		t.Errorf("parseArtifactName = %v, %v", v, ok)
	}

	for _, name := range []string{"WorkForce_01.02", "WorkForce_x.y.exe", "Other_01.02.exe"} {
		if _, ok := parseArtifactName(name, "WorkForce_"); ok {
			t.Errorf("parseArtifactName(%q) accepted", name)
		}
	}
}

func TestStaticPathRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../etc/passwd", "a/b.exe", "..\\x.exe", ""} {
		if _, ok := staticPath("/srv/static", name); ok {
			t.Errorf("staticPath accepted %q", name)
		}
	}
	if _, ok := staticPath("/srv/static", "WorkForce_01.00.exe"); !ok {
		t.Error("staticPath rejected a plain filename")
	}
}
