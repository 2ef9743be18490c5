package launch

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/blackwell-systems/appvault/internal/crypt"
	"github.com/blackwell-systems/appvault/internal/errlog"
	"github.com/blackwell-systems/appvault/internal/store"
	"github.com/blackwell-systems/appvault/internal/version"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store, string) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "apps"))
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	log, err := errlog.New(filepath.Join(t.TempDir(), "error_log.json"))
	if err != nil {
		t.Fatalf("errlog.New failed: %v", err)
	}
	scratch := filepath.Join(t.TempDir(), "scratch")
	return NewRegistry(st, log, scratch), st, scratch
}

// installScript encrypts a shell script as the current artifact for
// the app.
func installScript(t *testing.T, st *store.Store, app, prefix, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script artifacts are not runnable on windows")
	}
	blob, err := crypt.Encrypt([]byte("#!/bin/sh\n"+script), crypt.DefaultKey())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := st.Install(app, prefix, version.Version{Major: 1, Minor: 0}, blob); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
}

func scratchEntries(t *testing.T, scratch string) int {
	t.Helper()
	entries, err := os.ReadDir(scratch)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("reading scratch dir: %v", err)
	}
	return len(entries)
}

func TestLaunchAndCleanup(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	installScript(t, st, "WorkForce", "WorkForce_", "exit 0")

	handle, err := r.Launch("WorkForce", "WorkForce_")
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if handle.PID == 0 {
		t.Error("handle has no PID")
	}

	select {
	case <-handle.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
	}

	if _, err := os.Stat(handle.Path); !os.IsNotExist(err) {
		t.Error("ephemeral file still present after exit")
	}
	if r.IsRunning("WorkForce") {
		t.Error("registry still reports app running after exit")
	}
}

func TestLaunchCleanupOnNonZeroExit(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	installScript(t, st, "WorkForce", "WorkForce_", "exit 3")

	handle, err := r.Launch("WorkForce", "WorkForce_")
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	select {
	case <-handle.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
	}

	// Cleanup runs regardless of exit code.
	if _, err := os.Stat(handle.Path); !os.IsNotExist(err) {
		t.Error("ephemeral file still present after non-zero exit")
	}
}

func TestAlreadyRunning(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	installScript(t, st, "WorkForce", "WorkForce_", "sleep 30")

	handle, err := r.Launch("WorkForce", "WorkForce_")
	if err != nil {
		t.Fatalf("first Launch failed: %v", err)
	}
	defer func() {
		r.Terminate("WorkForce")
		<-handle.Done()
	}()

	_, err = r.Launch("WorkForce", "WorkForce_")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Launch returned %v, want ErrAlreadyRunning", err)
	}

	// First process unaffected.
	if !r.IsRunning("WorkForce") {
		t.Error("first launch no longer running after rejected second launch")
	}
}

func TestLaunchNoArtifact(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	_, err := r.Launch("WorkForce", "WorkForce_")
	if !errors.Is(err, store.ErrNoArtifact) {
		t.Errorf("Launch with empty store returned %v, want ErrNoArtifact", err)
	}
	if r.IsRunning("WorkForce") {
		t.Error("failed launch left a live handle")
	}
}

func TestLaunchCorruptedArtifact(t *testing.T) {
	r, st, scratch := newTestRegistry(t)

	blob, err := crypt.Encrypt([]byte("#!/bin/sh\nexit 0\n"), crypt.DefaultKey())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	blob[len(blob)-1] ^= 0x01 // corrupt one ciphertext byte
	if _, err := st.Install("WorkForce", "WorkForce_", version.Version{Major: 1, Minor: 0}, blob); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	_, err = r.Launch("WorkForce", "WorkForce_")
	if !errors.Is(err, ErrLaunchFailed) {
		t.Errorf("Launch of corrupted artifact returned %v, want ErrLaunchFailed", err)
	}

	// No plaintext left behind.
	if n := scratchEntries(t, scratch); n != 0 {
		t.Errorf("scratch dir contains %d files after failed decrypt, want 0", n)
	}
	// And the app can be retried.
	if r.IsRunning("WorkForce") {
		t.Error("failed launch left a live handle")
	}
}

func TestConcurrentAppsGetDistinctEphemeralFiles(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	installScript(t, st, "WorkForce", "WorkForce_", "sleep 30")
	installScript(t, st, "Personnel", "Personnel_", "sleep 30")

	h1, err := r.Launch("WorkForce", "WorkForce_")
	if err != nil {
		t.Fatalf("Launch WorkForce failed: %v", err)
	}
	h2, err := r.Launch("Personnel", "Personnel_")
	if err != nil {
		t.Fatalf("Launch Personnel failed: %v", err)
	}

	if h1.Path == h2.Path {
		t.Error("two apps share one ephemeral path")
	}

	running := r.Running()
	if len(running) != 2 {
		t.Errorf("Running() = %v, want two apps", running)
	}

	r.Terminate("WorkForce")
	r.Terminate("Personnel")
	<-h1.Done()
	<-h2.Done()
}

func TestTerminate(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	installScript(t, st, "WorkForce", "WorkForce_", "sleep 30")

	handle, err := r.Launch("WorkForce", "WorkForce_")
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	if err := r.Terminate("WorkForce"); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}

	select {
	case <-handle.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit after Terminate")
	}

	// Killed externally, cleanup still happened.
	if _, err := os.Stat(handle.Path); !os.IsNotExist(err) {
		t.Error("ephemeral file still present after kill")
	}
}

func TestTerminateNotRunning(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	if err := r.Terminate("WorkForce"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Terminate of idle app returned %v, want ErrNotRunning", err)
	}
}

func TestWait(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	installScript(t, st, "WorkForce", "WorkForce_", "sleep 1")

	if _, err := r.Launch("WorkForce", "WorkForce_"); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if err := r.Wait("WorkForce"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if r.IsRunning("WorkForce") {
		t.Error("app still running after Wait returned")
	}
}
