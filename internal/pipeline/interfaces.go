package pipeline

import (
	"context"

	"harvest/scraper/internal/domain"
)

// Fetcher retrieves one document. A completed request returns its status in the
// response even when it is not 2xx; transport failures return *domain.FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*domain.Response, error)
}

// ListingExtractor turns one listing page into work items and the next page
// reference, or "" when the page is the last one.
type ListingExtractor interface {
	ExtractListing(src domain.Source, ref string, body []byte) ([]domain.WorkItem, string, error)
}

// RecordExtractor turns one detail document into records. It must not do I/O and
// must report missing structure as an error wrapping domain.ErrUnexpectedShape.
type RecordExtractor interface {
	ExtractRecords(item domain.WorkItem, body []byte) ([]domain.Record, error)
}

// HeaderProvider is implemented by record extractors whose detail requests need
// per-item headers.
type HeaderProvider interface {
	RequestHeaders(item domain.WorkItem) map[string]string
}

// Sink is an append-only record destination safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, record domain.Record) error
}

// Ledger is an append-only failure log safe for concurrent use.
type Ledger interface {
	Record(ctx context.Context, id, reference string, cause error) error
	ReadAll(ctx context.Context) ([]domain.FailureEntry, error)
	Location() string
}

// Checkpoints remembers the next page reference of partially walked sources.
type Checkpoints interface {
	Get(ctx context.Context, source string) (string, error)
	Set(ctx context.Context, source, ref string) error
	Clear(ctx context.Context, source string) error
}
