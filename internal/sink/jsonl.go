package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"harvest/scraper/internal/domain"
)

// JSONLSink appends one JSON object per line, keeping nested values as they are.
type JSONLSink struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	return &JSONLSink{path: path, file: f}, nil
}

func (s *JSONLSink) Append(_ context.Context, record domain.Record) error {
	line, err := marshalJSON(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to append to %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
