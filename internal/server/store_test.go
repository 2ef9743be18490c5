package server

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/blackwell-systems/appvault/internal/version"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(":memory:")
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestUpsertAndListApps(t *testing.T) {
	c := newTestCatalog(t)

	apps := []App{
		{Name: "WorkForce", ExecutablePrefix: "WorkForce_", Icon: "workforce_icon.png"},
		{Name: "PersonnelManagement", ExecutablePrefix: "PersonnelManagement_", Icon: "personnel_icon.png"},
	}
	for _, app := range apps {
		if err := c.UpsertApp(app); err != nil {
			t.Fatalf("UpsertApp failed: %v", err)
		}
	}

	got, err := c.ListApps()
	if err != nil {
		t.Fatalf("ListApps failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d apps, want 2", len(got))
	}
	// Ordered by name.
	if got[0].Name != "PersonnelManagement" || got[1].Name != "WorkForce" {
		t.Errorf("apps out of order: %+v", got)
	}

	// Upsert updates in place.
	if err := c.UpsertApp(App{Name: "WorkForce", ExecutablePrefix: "WorkForce_", Icon: "new.png"}); err != nil {
		t.Fatalf("UpsertApp update failed: %v", err)
	}
	app, err := c.AppByName("WorkForce")
	if err != nil {
		t.Fatalf("AppByName failed: %v", err)
	}
	if app.Icon != "new.png" {
		t.Errorf("icon = %q after upsert, want new.png", app.Icon)
	}
}

func TestAppByNameUnknown(t *testing.T) {
	c := newTestCatalog(t)
	if _, err := c.AppByName("Nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("AppByName(unknown) = %v, want sql.ErrNoRows", err)
	}
}

func TestLatestVersion(t *testing.T) {
	c := newTestCatalog(t)
	if err := c.UpsertApp(App{Name: "WorkForce", ExecutablePrefix: "WorkForce_"}); err != nil {
		t.Fatalf("UpsertApp failed: %v", err)
	}

	if _, err := c.LatestVersion("WorkForce"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("LatestVersion with no artifacts = %v, want sql.ErrNoRows", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	for _, v := range []version.Version{{Major: 1, Minor: 0}, {Major: 0, Minor: 9}, {Major: 1, Minor: 2}} {
		err := c.RecordArtifact(Artifact{
			App:         "WorkForce",
			Version:     v,
			Filename:    "WorkForce_" + v.String() + ".exe",
			SizeBytes:   1234,
			PublishedAt: now,
		})
		if err != nil {
			t.Fatalf("RecordArtifact failed: %v", err)
		}
	}

	latest, err := c.LatestVersion("WorkForce")
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}
	if latest != (version.Version{Major: 1, Minor: 2}) {
		t.Errorf("LatestVersion = %v, want 01.02", latest)
	}
}

func TestArtifactsNewestFirst(t *testing.T) {
	c := newTestCatalog(t)
	if err := c.UpsertApp(App{Name: "WorkForce", ExecutablePrefix: "WorkForce_"}); err != nil {
		t.Fatalf("UpsertApp failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	for _, v := range []version.Version{{Major: 1, Minor: 0}, {Major: 2, Minor: 0}} {
		if err := c.RecordArtifact(Artifact{App: "WorkForce", Version: v, Filename: "f", PublishedAt: now}); err != nil {
			t.Fatalf("RecordArtifact failed: %v", err)
		}
	}

	artifacts, err := c.Artifacts("WorkForce")
	if err != nil {
		t.Fatalf("Artifacts failed: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("got %d artifacts, want 2", len(artifacts))
	}
	if artifacts[0].Version != (version.Version{Major: 2, Minor: 0}) {
		t.Errorf("first artifact = %v, want 02.00", artifacts[0].Version)
	}
	if !artifacts[0].PublishedAt.Equal(now) {
		t.Errorf("published_at round trip: got %v, want %v", artifacts[0].PublishedAt, now)
	}
}

func TestClearArtifacts(t *testing.T) {
	c := newTestCatalog(t)
	if err := c.UpsertApp(App{Name: "WorkForce", ExecutablePrefix: "WorkForce_"}); err != nil {
		t.Fatalf("UpsertApp failed: %v", err)
	}
	if err := c.RecordArtifact(Artifact{App: "WorkForce", Version: version.Version{Major: 1, Minor: 0}, Filename: "f", PublishedAt: time.Now()}); err != nil {
		t.Fatalf("RecordArtifact failed: %v", err)
	}

	if err := c.ClearArtifacts("WorkForce"); err != nil {
		t.Fatalf("ClearArtifacts failed: %v", err)
	}
	if _, err := c.LatestVersion("WorkForce"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("LatestVersion after clear = %v, want sql.ErrNoRows", err)
	}
}
