// Package errlog persists pipeline errors as an append-only JSON array
// at a fixed path. Entries are never edited; the operator may clear
// the whole log, which rewrites it as an empty array.
package errlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// dateLayout is the timestamp format used in log entries.
const dateLayout = "2006-01-02 15:04:05"

// Entry is one logged error.
type Entry struct {
	Date  string `json:"date"`
	App   string `json:"app"`
	Error string `json:"error"`
}

// Log is an append-only error log backed by a JSON file.
type Log struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New creates a Log at path, creating the parent directory and an
// empty log file if they do not exist.
func New(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	l := &Log{path: path, now: time.Now}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.write(nil); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append records an error for an app with the current timestamp.
func (l *Log) Append(app, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}

	entries = append(entries, Entry{
		Date:  l.now().Format(dateLayout),
		App:   app,
		Error: message,
	})
	return l.write(entries)
}

// Entries returns all logged entries in append order.
func (l *Log) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// Clear removes all entries.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(nil)
}

func (l *Log) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading error log: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing error log: %w", err)
	}
	return entries, nil
}

// write replaces the log file atomically so a crash never leaves a
// truncated JSON document behind.
func (l *Log) write(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding error log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".errlog-*")
	if err != nil {
		return fmt.Errorf("creating temp log file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing error log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing error log: %w", err)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing error log: %w", err)
	}
	return nil
}
