package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"
)

// Output writes iteration records to streaming.csv under a directory.
type Output struct {
	mu            sync.Mutex
	file          *os.File
	headerWritten bool
}

// NewOutput creates the output directory and streaming.csv inside it.
// Returns nil if dir is empty (output disabled).
func NewOutput(dir string) (*Output, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "streaming.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating streaming.csv: %w", err)
	}
	return &Output{file: f}, nil
}

// WriteIteration appends one record. The first write emits the CSV header.
func (o *Output) WriteIteration(s IterationStats) error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	records := []IterationStats{s}
	if !o.headerWritten {
		if err := gocsv.Marshal(records, o.file); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		o.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, o.file); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (o *Output) Close() error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file.Close()
}
