// Package launch decrypts stored artifacts to ephemeral files, runs
// them as child processes, and guarantees the plaintext copy is
// removed once the process exits.
package launch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/blackwell-systems/appvault/internal/crypt"
	"github.com/blackwell-systems/appvault/internal/errlog"
	"github.com/blackwell-systems/appvault/internal/store"
)

var (
	// ErrAlreadyRunning is returned when a launch is requested for
	// an app that already has a live child process. The second
	// launch is rejected, never queued.
	ErrAlreadyRunning = errors.New("app is already running")

	// ErrLaunchFailed is returned when decryption or process spawn
	// fails.
	ErrLaunchFailed = errors.New("launch failed")

	// ErrNotRunning is returned by Terminate and Wait when no live
	// handle exists for the app.
	ErrNotRunning = errors.New("app is not running")
)

// Handle tracks one running child process and its ephemeral
// plaintext file.
type Handle struct {
	App  string
	Path string // ephemeral decrypted executable
	PID  int

	cmd  *exec.Cmd
	done chan struct{} // closed after cleanup completes

	cleanupOnce sync.Once
}

// Done returns a channel closed once the process has exited and its
// ephemeral file has been removed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Registry owns all live launch handles, keyed by app. At most one
// handle per app is live at a time; the insert-if-absent check in
// Launch enforces it atomically.
type Registry struct {
	store      *store.Store
	errors     *errlog.Log
	scratchDir string
	key        []byte

	mu     sync.Mutex
	active map[string]*Handle
}

// NewRegistry creates a Registry whose ephemeral files live under
// scratchDir (created on demand).
func NewRegistry(st *store.Store, errors *errlog.Log, scratchDir string) *Registry {
	return &Registry{
		store:      st,
		errors:     errors,
		scratchDir: scratchDir,
		key:        crypt.DefaultKey(),
		active:     make(map[string]*Handle),
	}
}

// Launch decrypts the current artifact for (app, prefix) to a fresh
// ephemeral file and spawns it. The returned handle is owned by the
// registry until the process exits, at which point the ephemeral file
// is deleted and the handle discarded, exactly once, even if the
// child crashed or was killed externally.
func (r *Registry) Launch(app, prefix string) (*Handle, error) {
	// Reserve the app slot before doing any work so two concurrent
	// launches cannot both proceed.
	placeholder := &Handle{App: app, done: make(chan struct{})}
	r.mu.Lock()
	if _, exists := r.active[app]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, app)
	}
	r.active[app] = placeholder
	r.mu.Unlock()

	handle, err := r.launch(placeholder, app, prefix)
	if err != nil {
		r.mu.Lock()
		delete(r.active, app)
		r.mu.Unlock()
		close(placeholder.done)

		if r.errors != nil {
			r.errors.Append(app, err.Error())
		}
		return nil, err
	}
	return handle, nil
}

// launch does the decrypt-and-spawn work once the app slot is
// reserved. On any failure no ephemeral file remains on disk.
func (r *Registry) launch(handle *Handle, app, prefix string) (*Handle, error) {
	rec, err := r.store.Current(app, prefix)
	if err != nil {
		return nil, err // store.ErrNoArtifact passes through
	}

	ciphertext, err := r.store.Read(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	plaintext, err := crypt.Decrypt(ciphertext, r.key)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypting %s: %v", ErrLaunchFailed, rec.Filename(), err)
	}

	if err := os.MkdirAll(r.scratchDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating scratch directory: %v", ErrLaunchFailed, err)
	}

	// Unique per launch so concurrent apps never collide on a temp
	// name.
	ephemeral := filepath.Join(r.scratchDir, fmt.Sprintf("%s%s-%s", prefix, rec.Version, uuid.NewString()))
	if err := os.WriteFile(ephemeral, plaintext, 0o700); err != nil {
		os.Remove(ephemeral)
		return nil, fmt.Errorf("%w: writing ephemeral copy: %v", ErrLaunchFailed, err)
	}

	cmd := exec.Command(ephemeral)
	if err := cmd.Start(); err != nil {
		os.Remove(ephemeral)
		return nil, fmt.Errorf("%w: spawning %s: %v", ErrLaunchFailed, rec.Filename(), err)
	}

	handle.Path = ephemeral
	handle.PID = cmd.Process.Pid
	handle.cmd = cmd

	go r.watch(handle)
	return handle, nil
}

// watch waits for the child to exit, then cleans up. One watcher
// goroutine per handle; cleanup runs exactly once.
func (r *Registry) watch(handle *Handle) {
	// The exit status does not matter here; cleanup is the same for
	// a clean exit, a crash, and an external kill.
	handle.cmd.Wait()

	handle.cleanupOnce.Do(func() {
		// Delete the plaintext copy no matter how the child ended.
		os.Remove(handle.Path)

		r.mu.Lock()
		delete(r.active, handle.App)
		r.mu.Unlock()

		close(handle.done)
	})
}

// Running returns the apps that currently have a live child process.
func (r *Registry) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	apps := make([]string, 0, len(r.active))
	for app := range r.active {
		apps = append(apps, app)
	}
	return apps
}

// IsRunning reports whether an app has a live handle.
func (r *Registry) IsRunning(app string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[app]
	return ok
}

// Wait blocks until the app's process has exited and its ephemeral
// file is gone.
func (r *Registry) Wait(app string) error {
	r.mu.Lock()
	handle, ok := r.active[app]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, app)
	}
	<-handle.done
	return nil
}

// Terminate kills the app's child process. Cleanup still happens in
// the watcher once the kill takes effect.
func (r *Registry) Terminate(app string) error {
	r.mu.Lock()
	handle, ok := r.active[app]
	r.mu.Unlock()
	if !ok || handle.cmd == nil {
		return fmt.Errorf("%w: %s", ErrNotRunning, app)
	}

	if err := handle.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("killing %s (pid %d): %w", app, handle.PID, err)
	}
	return nil
}
