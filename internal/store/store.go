// Package store manages the local directory of encrypted app
// artifacts. Artifacts are named {prefix}{MM.mm}.exe; the file content
// is ciphertext produced by the crypt package. The store never holds a
// partially written artifact under a final name: installs write to a
// temp file and atomically rename into place.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blackwell-systems/appvault/internal/version"
)

// ErrNoArtifact is returned when no artifact exists for an app.
var ErrNoArtifact = errors.New("no artifact installed")

// Suffix is the artifact filename suffix. The server publishes
// artifacts under the same naming convention.
const Suffix = ".exe"

// Record identifies one locally stored encrypted artifact.
type Record struct {
	App     string
	Prefix  string
	Version version.Version
	Path    string
}

// Filename returns the artifact filename for the record's prefix and
// version.
func (r Record) Filename() string {
	return Filename(r.Prefix, r.Version)
}

// Filename builds the canonical artifact filename for a prefix and
// version.
func Filename(prefix string, v version.Version) string {
	return prefix + v.String() + Suffix
}

// Store is the artifact directory. Writes for the same prefix
// serialize on a per-prefix lock; different apps never contend.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the artifact directory path.
func (s *Store) Dir() string {
	return s.dir
}

// prefixLock returns the mutex guarding writes for one prefix.
func (s *Store) prefixLock(prefix string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[prefix]
	if !ok {
		l = &sync.Mutex{}
		s.locks[prefix] = l
	}
	return l
}

// Current returns the highest-versioned artifact for the given app
// prefix, or ErrNoArtifact if none exists. Files whose version part
// does not parse are skipped.
func (s *Store) Current(app, prefix string) (*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading artifact directory: %w", err)
	}

	var best *Record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		v, ok := parseArtifactName(entry.Name(), prefix)
		if !ok {
			continue
		}
		if best == nil || version.Less(best.Version, v) {
			best = &Record{
				App:     app,
				Prefix:  prefix,
				Version: v,
				Path:    filepath.Join(s.dir, entry.Name()),
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: app %s", ErrNoArtifact, app)
	}
	return best, nil
}

// Read returns the ciphertext of the record's artifact file.
func (s *Store) Read(rec *Record) ([]byte, error) {
	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", rec.Filename(), err)
	}
	return data, nil
}

// Install writes an encrypted artifact for (app, prefix, v) and
// removes any superseded versions. The new file is written to a temp
// path in the same directory and renamed into place, so a crash at any
// point leaves either the old artifact or the new one, never a
// truncated file under a final name. Old versions are removed only
// after the rename succeeds.
func (s *Store) Install(app, prefix string, v version.Version, ciphertext []byte) (*Record, error) {
	lock := s.prefixLock(prefix)
	lock.Lock()
	defer lock.Unlock()

	finalPath := filepath.Join(s.dir, Filename(prefix, v))

	tmp, err := os.CreateTemp(s.dir, ".appvault-install-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(ciphertext); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("syncing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing artifact: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("installing artifact: %w", err)
	}

	s.removeSuperseded(prefix, v)

	return &Record{
		App:     app,
		Prefix:  prefix,
		Version: v,
		Path:    finalPath,
	}, nil
}

// removeSuperseded deletes artifacts for prefix with a version other
// than keep. Removal failures are ignored; a stale old version is
// harmless since Current always picks the highest.
func (s *Store) removeSuperseded(prefix string, keep version.Version) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		v, ok := parseArtifactName(entry.Name(), prefix)
		if !ok || v == keep {
			continue
		}
		os.Remove(filepath.Join(s.dir, entry.Name()))
	}
}

// parseArtifactName extracts the version from an artifact filename of
// the form {prefix}{MM.mm}.exe. Returns false for any other name.
func parseArtifactName(name, prefix string) (version.Version, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, Suffix) {
		return version.Version{}, false
	}
	versionPart := strings.TrimSuffix(strings.TrimPrefix(name, prefix), Suffix)
	v, err := version.Parse(versionPart)
	if err != nil {
		return version.Version{}, false
	}
	return v, true
}
