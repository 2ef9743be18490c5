// Package update orchestrates the check → download → encrypt →
// install pipeline for one app.
package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/blackwell-systems/appvault/internal/catalog"
	"github.com/blackwell-systems/appvault/internal/crypt"
	"github.com/blackwell-systems/appvault/internal/errlog"
	"github.com/blackwell-systems/appvault/internal/store"
	"github.com/blackwell-systems/appvault/internal/version"
)

// State identifies where a pipeline run ended, or where it currently
// is for in-flight runs.
type State int

const (
	Idle State = iota
	CheckingVersion
	Downloading
	Encrypting
	Installed
	UpToDate
	Failed
)

// String returns the state name for logs and UI labels.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CheckingVersion:
		return "checking version"
	case Downloading:
		return "downloading"
	case Encrypting:
		return "encrypting"
	case Installed:
		return "installed"
	case UpToDate:
		return "up to date"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the terminal outcome of one CheckAndUpdate run.
type Result struct {
	App    string
	State  State // Installed, UpToDate, or Failed
	Local  *version.Version
	Remote version.Version
	Err    error
}

// Pipeline runs update checks against one catalog server and one
// artifact store. Safe for concurrent use across different apps; runs
// for the same app serialize on the store's per-prefix lock at the
// install step.
type Pipeline struct {
	store   *store.Store
	catalog *catalog.Client
	errors  *errlog.Log
	key     []byte
}

// New creates a Pipeline. The encryption key is derived once and
// reused for each install in this process.
func New(st *store.Store, cat *catalog.Client, errors *errlog.Log) *Pipeline {
	return &Pipeline{
		store:   st,
		catalog: cat,
		errors:  errors,
		key:     crypt.DefaultKey(),
	}
}

// CheckAndUpdate compares the local and remote versions of an app and
// installs the remote artifact if it is newer (or if nothing is
// installed locally). Every call re-evaluates from scratch; nothing is
// remembered from prior runs. Failures are recorded to the error log
// and returned in the Result; the store is never left with a partial
// artifact.
func (p *Pipeline) CheckAndUpdate(ctx context.Context, app, prefix string, onProgress catalog.ProgressFunc) Result {
	result := Result{App: app, State: CheckingVersion}

	local, err := p.store.Current(app, prefix)
	if err != nil && !errors.Is(err, store.ErrNoArtifact) {
		return p.fail(result, fmt.Errorf("checking local version: %w", err))
	}
	if local != nil {
		result.Local = &local.Version
	}

	remote, err := p.catalog.LatestVersion(ctx, app)
	if err != nil {
		return p.fail(result, fmt.Errorf("checking remote version: %w", err))
	}
	result.Remote = remote

	// A remote version at or below the local one means no work, even
	// if the server regressed. Downgrades never happen here.
	if local != nil && version.Compare(remote, local.Version) <= 0 {
		result.State = UpToDate
		return result
	}

	result.State = Downloading
	plaintext, err := p.catalog.Download(ctx, store.Filename(prefix, remote), onProgress)
	if err != nil {
		return p.fail(result, fmt.Errorf("downloading %s: %w", store.Filename(prefix, remote), err))
	}

	result.State = Encrypting
	ciphertext, err := crypt.Encrypt(plaintext, p.key)
	if err != nil {
		return p.fail(result, fmt.Errorf("encrypting artifact: %w", err))
	}

	if _, err := p.store.Install(app, prefix, remote, ciphertext); err != nil {
		return p.fail(result, fmt.Errorf("installing artifact: %w", err))
	}

	result.State = Installed
	return result
}

// Start runs CheckAndUpdate on its own goroutine and delivers exactly
// one Result on the returned channel. UI callers use this so their
// event loop never blocks on the network.
func (p *Pipeline) Start(ctx context.Context, app, prefix string, onProgress catalog.ProgressFunc) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- p.CheckAndUpdate(ctx, app, prefix, onProgress)
		close(ch)
	}()
	return ch
}

// fail records the error and returns a Failed result carrying it.
func (p *Pipeline) fail(result Result, err error) Result {
	result.State = Failed
	result.Err = err
	if p.errors != nil {
		if logErr := p.errors.Append(result.App, err.Error()); logErr != nil {
			// The original failure matters more than the logging
			// failure; keep the former.
			result.Err = fmt.Errorf("%w (error log write also failed: %v)", err, logErr)
		}
	}
	return result
}
