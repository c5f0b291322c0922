package domain

import (
	"maps"
	"slices"
)

// Record is the structured result of fetching and extracting one WorkItem.
// Values are scalars, []any/[]string lists or map[string]any mappings.
type Record map[string]any

// With returns a copy of r with fields laid over it. r itself is left untouched.
func (r Record) With(fields map[string]any) Record {
	out := make(Record, len(r)+len(fields))
	maps.Copy(out, r)
	maps.Copy(out, fields)
	return out
}

// Keys returns the field names in sorted order.
func (r Record) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}
