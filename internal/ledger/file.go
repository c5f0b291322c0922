package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"harvest/scraper/internal/domain"

	log "github.com/sirupsen/logrus"
)

// FileLedger appends failure lines to a text file, one writer at a time.
type FileLedger struct {
	path string
	mu   sync.Mutex
}

func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

func (l *FileLedger) Location() string {
	return l.path
}

func (l *FileLedger) Record(_ context.Context, id, reference string, cause error) error {
	line := FormatLine(id, reference, cause)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger %s: %w", l.path, err)
	}

	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to ledger %s: %w", l.path, err)
	}

	return f.Close()
}

// ReadAll returns every well-formed entry in file order. A missing file is an
// empty ledger; malformed lines are skipped.
func (l *FileLedger) ReadAll(ctx context.Context) ([]domain.FailureEntry, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.FailureEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", l.path, err)
	}
	defer f.Close()

	entries := make([]domain.FailureEntry, 0)
	skipped := 0

	reader := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, readErr := reader.ReadString('\n')
		if line != "" {
			if entry, ok := ParseLine(line); ok {
				entries = append(entries, entry)
			} else if strings.TrimSpace(line) != "" {
				skipped++
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read ledger %s: %w", l.path, readErr)
		}
	}

	if skipped > 0 {
		log.Warnf("⚠️ Skipped %d malformed lines in %s", skipped, l.path)
	}

	return entries, nil
}
