// Package server implements the appvaultd catalog service: a SQLite
// catalog of apps and published artifact versions, a filesystem
// watcher that discovers artifacts dropped into the static directory,
// and the HTTP API consumed by appvault clients.
package server

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blackwell-systems/appvault/internal/version"
)

// Catalog provides SQLite database operations for appvaultd.
type Catalog struct {
	db *sql.DB
}

// App is one distributable application known to the server.
type App struct {
	Name             string `json:"name"`
	ExecutablePrefix string `json:"executable_prefix"`
	Icon             string `json:"icon"`
}

// Artifact is one published version of an app.
type Artifact struct {
	App         string
	Version     version.Version
	Filename    string
	SizeBytes   int64
	PublishedAt time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS apps (
	name              TEXT PRIMARY KEY,
	executable_prefix TEXT NOT NULL UNIQUE,
	icon              TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS artifacts (
	app_name     TEXT NOT NULL REFERENCES apps(name) ON DELETE CASCADE,
	major        INTEGER NOT NULL,
	minor        INTEGER NOT NULL,
	filename     TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL,
	published_at TEXT NOT NULL,
	PRIMARY KEY (app_name, major, minor)
);

CREATE INDEX IF NOT EXISTS idx_artifacts_app ON artifacts(app_name);
`

// NewCatalog opens the catalog database at dbPath. Use ":memory:" for
// in-memory databases (useful for testing).
func NewCatalog(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// UpsertApp inserts or replaces an app definition.
func (c *Catalog) UpsertApp(app App) error {
	_, err := c.db.Exec(`
		INSERT INTO apps (name, executable_prefix, icon) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET executable_prefix = excluded.executable_prefix, icon = excluded.icon
	`, app.Name, app.ExecutablePrefix, app.Icon)
	if err != nil {
		return fmt.Errorf("failed to upsert app %s: %w", app.Name, err)
	}
	return nil
}

// ListApps returns all apps ordered by name.
func (c *Catalog) ListApps() ([]App, error) {
	rows, err := c.db.Query(`SELECT name, executable_prefix, icon FROM apps ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	var apps []App
	for rows.Next() {
		var app App
		if err := rows.Scan(&app.Name, &app.ExecutablePrefix, &app.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// AppByName returns one app, or sql.ErrNoRows if unknown.
func (c *Catalog) AppByName(name string) (*App, error) {
	var app App
	err := c.db.QueryRow(`SELECT name, executable_prefix, icon FROM apps WHERE name = ?`, name).
		Scan(&app.Name, &app.ExecutablePrefix, &app.Icon)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// RecordArtifact inserts or replaces one published artifact version.
func (c *Catalog) RecordArtifact(a Artifact) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO artifacts (app_name, major, minor, filename, size_bytes, published_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.App, a.Version.Major, a.Version.Minor, a.Filename, a.SizeBytes, a.PublishedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record artifact %s: %w", a.Filename, err)
	}
	return nil
}

// RemoveArtifact deletes one published version.
func (c *Catalog) RemoveArtifact(app string, v version.Version) error {
	_, err := c.db.Exec(`DELETE FROM artifacts WHERE app_name = ? AND major = ? AND minor = ?`,
		app, v.Major, v.Minor)
	if err != nil {
		return fmt.Errorf("failed to remove artifact %s %s: %w", app, v, err)
	}
	return nil
}

// ClearArtifacts deletes all published versions for an app. Used
// before a rescan of the static directory.
func (c *Catalog) ClearArtifacts(app string) error {
	if _, err := c.db.Exec(`DELETE FROM artifacts WHERE app_name = ?`, app); err != nil {
		return fmt.Errorf("failed to clear artifacts for %s: %w", app, err)
	}
	return nil
}

// LatestVersion returns the highest published version for an app, or
// sql.ErrNoRows when the app has no artifacts.
func (c *Catalog) LatestVersion(app string) (version.Version, error) {
	var v version.Version
	err := c.db.QueryRow(`
		SELECT major, minor FROM artifacts
		WHERE app_name = ?
		ORDER BY major DESC, minor DESC
		LIMIT 1
	`, app).Scan(&v.Major, &v.Minor)
	if err != nil {
		return version.Version{}, err
	}
	return v, nil
}

// Artifacts returns all published versions for an app, newest first.
func (c *Catalog) Artifacts(app string) ([]Artifact, error) {
	rows, err := c.db.Query(`
		SELECT app_name, major, minor, filename, size_bytes, published_at
		FROM artifacts
		WHERE app_name = ?
		ORDER BY major DESC, minor DESC
	`, app)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts for %s: %w", app, err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		var published string
		if err := rows.Scan(&a.App, &a.Version.Major, &a.Version.Minor, &a.Filename, &a.SizeBytes, &published); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		a.PublishedAt, err = time.Parse(time.RFC3339, published)
		if err != nil {
			return nil, fmt.Errorf("failed to parse published_at for %s: %w", a.Filename, err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
