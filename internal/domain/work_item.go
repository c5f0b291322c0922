package domain

// WorkItem is one detail-fetch unit derived from a Source's pages or from a prior failure.
type WorkItem struct {
	ID       string         `json:"id"`                 // Stable identity, e.g. business name or advert GUID
	Target   string         `json:"target"`             // Detail URL to fetch
	Metadata map[string]any `json:"metadata,omitempty"` // Fields copied forward from collection
}
