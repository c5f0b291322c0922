package domain

import "time"

// FailureEntry is one durable line in a failure ledger.
// The same ID may appear many times across retry generations.
type FailureEntry struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp,omitzero"` // Zero when the backend does not keep one
}

// WorkItem rebuilds the unit of work the entry was recorded for.
func (e FailureEntry) WorkItem() WorkItem {
	return WorkItem{ID: e.ID, Target: e.Target}
}
