package domain

// Source is one pagination root to be fully walked, e.g. one category.
type Source struct {
	Name   string `json:"name"`             // Category or listing name
	URL    string `json:"url"`              // Entry reference (first page)
	Cursor string `json:"cursor,omitempty"` // Saved page reference to resume from
}

// Start returns the reference the walk begins at.
func (s Source) Start() string {
	if s.Cursor != "" {
		return s.Cursor
	}
	return s.URL
}
