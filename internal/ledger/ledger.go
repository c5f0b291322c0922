// Package ledger keeps the append-only log of items that could not be harvested.
//
// A ledger is history, not a queue: entries are never removed, and a later retry
// run that succeeds leaves the original entry in place. Readers must expect the
// same identity more than once.
package ledger

import (
	"fmt"
	"strings"

	"harvest/scraper/internal/domain"
)

const separator = " -- "

// FormatLine renders one failure as "identity, reference -- error".
// Line breaks inside any field are flattened so every entry stays on one line.
func FormatLine(id, reference string, cause error) string {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return fmt.Sprintf("%s, %s%s%s\n", flatten(id), flatten(reference), separator, flatten(msg))
}

// ParseLine reads a line written by FormatLine. It also accepts the older
// "identity,reference -- error" form without the space. ok is false for lines
// that do not fit the shape.
func ParseLine(line string) (entry domain.FailureEntry, ok bool) {
	line = strings.TrimSpace(line)

	head, msg, found := strings.Cut(line, separator)
	if !found {
		return entry, false
	}

	// Identities are display names and may contain commas, references are URLs.
	i := strings.LastIndex(head, ",")
	if i < 0 {
		return entry, false
	}

	entry.ID = strings.TrimSpace(head[:i])
	entry.Target = strings.TrimSpace(head[i+1:])
	entry.Error = strings.TrimSpace(msg)

	if entry.ID == "" || entry.Target == "" {
		return domain.FailureEntry{}, false
	}
	return entry, true
}

func flatten(s string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(s)), " ")
}
