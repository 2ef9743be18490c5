package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/appvault/internal/store"
	"github.com/blackwell-systems/appvault/internal/version"
)

// Publisher keeps the artifacts table in sync with the static
// directory: a full scan at startup, then an fsnotify watcher that
// rescans when files appear or disappear. Operators publish a release
// by dropping {prefix}{MM.mm}.exe into the static directory; no
// server restart needed.
type Publisher struct {
	catalog   *Catalog
	staticDir string
	logger    *log.Logger

	mu      sync.Mutex // serializes rescans
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	stopCh  chan struct{}
}

// NewPublisher creates a Publisher for the given static directory,
// creating the directory if needed.
func NewPublisher(catalog *Catalog, staticDir string, logger *log.Logger) (*Publisher, error) {
	if err := os.MkdirAll(staticDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating static directory: %w", err)
	}
	return &Publisher{
		catalog:   catalog,
		staticDir: staticDir,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}, nil
}

// Rescan walks the static directory and rebuilds the artifacts table
// for every app in the catalog. Files that do not match any app's
// prefix/version naming are ignored.
func (p *Publisher) Rescan() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	apps, err := p.catalog.ListApps()
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(p.staticDir)
	if err != nil {
		return fmt.Errorf("reading static directory: %w", err)
	}

	for _, app := range apps {
		if err := p.catalog.ClearArtifacts(app.Name); err != nil {
			return err
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			v, ok := parseArtifactName(entry.Name(), app.ExecutablePrefix)
			if !ok {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				continue
			}
			if err := p.catalog.RecordArtifact(Artifact{
				App:         app.Name,
				Version:     v,
				Filename:    entry.Name(),
				SizeBytes:   info.Size(),
				PublishedAt: info.ModTime().UTC(),
			}); err != nil {
				return err
			}
			p.logger.Debug("indexed artifact", "app", app.Name, "version", v.String(), "file", entry.Name())
		}
	}
	return nil
}

// Watch starts the fsnotify watcher. Create, rename, and remove
// events in the static directory trigger a rescan.
func (p *Publisher) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	if err := watcher.Add(p.staticDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching static directory: %w", err)
	}
	p.watcher = watcher

	p.wg.Add(1)
	go p.run()
	return nil
}

// run processes watcher events until Stop. Events are debounced
// briefly so a multi-chunk file copy triggers one rescan, not one per
// write.
func (p *Publisher) run() {
	defer p.wg.Done()

	var pending bool
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !pending {
				pending = true
				debounce.Reset(500 * time.Millisecond)
			}

		case <-debounce.C:
			pending = false
			if err := p.Rescan(); err != nil {
				p.logger.Error("rescan after filesystem event failed", "err", err)
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("filesystem watcher error", "err", err)

		case <-p.stopCh:
			return
		}
	}
}

// Stop halts the watcher.
func (p *Publisher) Stop() error {
	close(p.stopCh)
	var err error
	if p.watcher != nil {
		err = p.watcher.Close()
	}
	p.wg.Wait()
	return err
}

// parseArtifactName extracts the version from {prefix}{MM.mm}.exe.
func parseArtifactName(name, prefix string) (version.Version, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, store.Suffix) {
		return version.Version{}, false
	}
	v, err := version.Parse(strings.TrimSuffix(strings.TrimPrefix(name, prefix), store.Suffix))
	if err != nil {
		return version.Version{}, false
	}
	return v, true
}

// staticPath resolves a requested filename inside the static
// directory, rejecting path traversal.
func staticPath(dir, name string) (string, bool) {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") || name != filepath.Base(name) {
		return "", false
	}
	return filepath.Join(dir, name), true
}
