package pipeline_test

import (
	"context"
	"sync"
	"time"

	"harvest/scraper/internal/domain"
)

type stubFetcher struct {
	FetchFn func(ctx context.Context, url string, headers map[string]string) (*domain.Response, error)
}

func (f *stubFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*domain.Response, error) {
	return f.FetchFn(ctx, url, headers)
}

type stubListing struct {
	ExtractFn func(src domain.Source, ref string, body []byte) ([]domain.WorkItem, string, error)
}

func (e *stubListing) ExtractListing(src domain.Source, ref string, body []byte) ([]domain.WorkItem, string, error) {
	return e.ExtractFn(src, ref, body)
}

type stubRecords struct {
	ExtractFn func(item domain.WorkItem, body []byte) ([]domain.Record, error)
}

func (e *stubRecords) ExtractRecords(item domain.WorkItem, body []byte) ([]domain.Record, error) {
	return e.ExtractFn(item, body)
}

// titleExtractor produces one record per document carrying the body as its title.
func titleExtractor() *stubRecords {
	return &stubRecords{
		ExtractFn: func(item domain.WorkItem, body []byte) ([]domain.Record, error) {
			return []domain.Record{{"id": item.ID, "title": string(body)}}, nil
		},
	}
}

type memorySink struct {
	mu      sync.Mutex
	records []domain.Record
}

func (s *memorySink) Append(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *memorySink) Records() []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Record(nil), s.records...)
}

type memoryLedger struct {
	mu      sync.Mutex
	name    string
	entries []domain.FailureEntry
}

func (l *memoryLedger) Record(_ context.Context, id, reference string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, domain.FailureEntry{ID: id, Target: reference, Error: cause.Error(), Timestamp: time.Now()})
	return nil
}

func (l *memoryLedger) ReadAll(context.Context) ([]domain.FailureEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.FailureEntry(nil), l.entries...), nil
}

func (l *memoryLedger) Location() string {
	return l.name
}

type memoryCheckpoints struct {
	mu   sync.Mutex
	refs map[string]string
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{refs: make(map[string]string)}
}

func (c *memoryCheckpoints) Get(_ context.Context, source string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs[source], nil
}

func (c *memoryCheckpoints) Set(_ context.Context, source, ref string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[source] = ref
	return nil
}

func (c *memoryCheckpoints) Clear(_ context.Context, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.refs, source)
	return nil
}

// sleepRecorder stands in for real sleeps and remembers every requested delay.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *sleepRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func okResponse(body string) *domain.Response {
	return &domain.Response{Status: 200, Body: []byte(body)}
}

func statusResponse(code int) *domain.Response {
	return &domain.Response{Status: code}
}
