package stats

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSink appends JSON record lines to a file. The log can be replayed
// into another sink with ReplayLog.
type FileSink struct {
	*StdoutSink
	f *os.File
}

// NewFileSink opens path for appending, creating parent directories.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open stats log: %w", err)
	}
	return &FileSink{StdoutSink: NewWriterSink(f), f: f}, nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.f.Close()
}

var _ Sink = (*FileSink)(nil)
