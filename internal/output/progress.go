// Package output provides terminal output utilities for appvault:
// a byte-denominated download progress bar and table rendering for
// app status listings. Progress indicators are safe for use from
// multiple goroutines.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// DownloadBar displays download progress with byte counts.
// Example: [=========>          ]  45%  4.5 MB / 10 MB WorkForce_01.02.exe
//
// When the total size is unknown it degrades to a received-bytes
// counter with no percentage.
type DownloadBar struct {
	description string
	width       int

	mu       sync.Mutex
	received int64
	total    int64
	done     bool
	writer   io.Writer
}

// NewDownloadBar creates a progress bar for one download.
func NewDownloadBar(description string) *DownloadBar {
	return &DownloadBar{
		description: description,
		width:       40,
		writer:      os.Stdout,
	}
}

// SetWriter sets the output writer (useful for testing).
func (b *DownloadBar) SetWriter(w io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writer = w
}

// Update records progress. It has the same signature as the catalog
// package's ProgressFunc so a bar can be passed directly as the
// download progress sink. total may be 0 (unknown).
func (b *DownloadBar) Update(received, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	if received > b.received {
		b.received = received
	}
	b.total = total
	b.render()
}

// Finish completes the bar and moves to a new line. Further Update
// calls are ignored.
func (b *DownloadBar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.done = true

	if writerIsTTY(b.writer) {
		b.render()
		fmt.Fprintln(b.writer)
	} else {
		// Non-TTY: emit a single summary line.
		fmt.Fprintf(b.writer, "downloaded %s %s\n", humanize.Bytes(uint64(b.received)), b.description)
	}
}

// Abort clears the bar without printing a completion line.
func (b *DownloadBar) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.done = true

	if writerIsTTY(b.writer) {
		fmt.Fprintf(b.writer, "\r%s\r", strings.Repeat(" ", b.width+40))
	}
}

// render draws the bar (must be called with lock held). Non-TTY
// writers get no incremental output; Finish prints the summary.
func (b *DownloadBar) render() {
	if !writerIsTTY(b.writer) {
		return
	}

	if b.total <= 0 {
		fmt.Fprintf(b.writer, "\r%s  %s", humanize.Bytes(uint64(b.received)), b.description)
		return
	}

	percentage := int(b.received * 100 / b.total)
	filled := int(b.received * int64(b.width) / b.total)

	bar := strings.Builder{}
	bar.WriteString("[")
	for i := 0; i < b.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteString("=")
		case i == filled-1:
			bar.WriteString(">")
		default:
			bar.WriteString(" ")
		}
	}
	bar.WriteString("]")

	fmt.Fprintf(b.writer, "\r%s %3d%%  %s / %s %s",
		bar.String(), percentage,
		humanize.Bytes(uint64(b.received)), humanize.Bytes(uint64(b.total)),
		b.description)
}
