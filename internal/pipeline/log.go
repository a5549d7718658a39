package pipeline

import (
	"fmt"
	"os"
)

// StageLog writes the per-input plain-text log: one labeled line per
// completed stage. Lines are flushed as they are written so partial progress
// stays visible when a later stage fails.
type StageLog struct {
	f *os.File
}

// NewStageLog creates (or truncates) the log file at path.
func NewStageLog(path string) (*StageLog, error) {
	f, err := os.Create(path) // #nosec G304 - path is derived from the input file stem
	if err != nil {
		return nil, fmt.Errorf("create stage log: %w", err)
	}
	return &StageLog{f: f}, nil
}

// Record appends one labeled line and flushes it to disk.
func (l *StageLog) Record(label, value string) error {
	if _, err := fmt.Fprintf(l.f, "%s: %s\n", label, value); err != nil {
		return fmt.Errorf("write stage log: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync stage log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *StageLog) Close() error {
	return l.f.Close()
}
