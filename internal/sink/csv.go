package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"harvest/scraper/internal/domain"

	log "github.com/sirupsen/logrus"
)

// CSVSink appends records as rows with a fixed column set. The header is
// written once, when the file is new.
type CSVSink struct {
	path   string
	file   *os.File
	mu     sync.Mutex
	fields []string // Fixed once known; nil until the first record when derived

	dropped sync.Once
}

// NewCSVSink opens path for appending. With no fields the columns come from the
// existing header, or from the sorted keys of the first record of a new file.
func NewCSVSink(path string, fields []string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	existing, err := readHeader(path)
	if err != nil {
		return nil, err
	}

	switch {
	case existing != nil && len(fields) == 0:
		fields = existing
	case existing != nil && !slices.Equal(existing, fields):
		return nil, fmt.Errorf("%s already has columns %v, configured %v", path, existing, fields)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	s := &CSVSink{path: path, file: f}
	if len(fields) > 0 {
		s.fields = slices.Clone(fields)
		if existing == nil {
			if err := s.writeHeader(); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	return s, nil
}

func (s *CSVSink) Append(_ context.Context, record domain.Record) error {
	fields, err := s.columns(record)
	if err != nil {
		return err
	}

	row := make([]string, len(fields))
	present := 0
	for i, field := range fields {
		v, ok := record[field]
		if ok {
			present++
		}
		if row[i], err = cell(v); err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
	}

	if present < len(record) {
		s.dropped.Do(func() {
			log.Warnf("⚠️ Records carry fields outside the %d columns of %s, extra fields are not written", len(fields), s.path)
		})
	}

	line, err := encodeRow(row)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to append to %s: %w", s.path, err)
	}
	return nil
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// columns returns the fixed column set, deriving it from record on first use.
func (s *CSVSink) columns(record domain.Record) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fields == nil {
		s.fields = record.Keys()
		if err := s.writeHeader(); err != nil {
			return nil, err
		}
	}
	return s.fields, nil
}

func (s *CSVSink) writeHeader() error {
	line, err := encodeRow(s.fields)
	if err != nil {
		return err
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to write header to %s: %w", s.path, err)
	}
	return nil
}

func encodeRow(row []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// readHeader returns the first row of an existing, non-empty file.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return header, nil
}
