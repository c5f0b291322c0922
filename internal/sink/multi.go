// Package sink holds the append-only record destinations.
//
// Every sink is safe for concurrent Append calls and never rewrites what it has
// written: re-running the pipeline over the same items adds rows. Consumers that
// need one row per identity deduplicate downstream, e.g. last write wins.
package sink

import (
	"context"
	"errors"

	"harvest/scraper/internal/domain"
	"harvest/scraper/internal/pipeline"
)

// Closer is a sink that owns a resource.
type Closer interface {
	pipeline.Sink
	Close() error
}

// Multi writes every record to each of its sinks in order.
type Multi []Closer

func (m Multi) Append(ctx context.Context, record domain.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
