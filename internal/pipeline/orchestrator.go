package pipeline

import (
	"context"
	"fmt"
	"time"

	"harvest/scraper/internal/domain"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SourceLister produces the sources of a run.
type SourceLister interface {
	Sources(ctx context.Context) ([]domain.Source, error)
}

// Report is the outcome of one run, printed for the operator at the end.
type Report struct {
	RunID          string
	Sources        int
	Collected      int // Work items gathered in the collect phase
	PartialSources int
	FailedSources  int
	Succeeded      int
	Failed         int
	Ledger         string // Where item failures went
	SourceLedger   string // Where collection failures went
	Duration       time.Duration
}

// Log prints the report in the same shape for every entry point.
func (r *Report) Log() {
	log.Infof("✅ Run %s done in %v: %d sources, %d items collected, %d saved, %d failed",
		r.RunID, r.Duration.Round(time.Millisecond), r.Sources, r.Collected, r.Succeeded, r.Failed)

	if r.PartialSources > 0 || r.FailedSources > 0 {
		log.Warnf("⚠️ %d sources partially collected, %d failed. See: %s",
			r.PartialSources, r.FailedSources, r.SourceLedger)
	}
	if r.Failed > 0 {
		log.Warnf("⚠️ Failed items logged to: %s", r.Ledger)
	}
}

// Orchestrator composes enumerate, collect, enrich and report.
type Orchestrator struct {
	RunID              string
	Sources            SourceLister
	Collector          *Collector
	Pool               *Pool  // Pool.Ledger receives item failures of a normal run
	SourceLedger       Ledger // Receives collection failures
	Checkpoints        Checkpoints
	CollectConcurrency int
}

// Run executes a full harvest. The only error it returns is a failure to
// enumerate sources, which happens before any page is fetched.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	sources, err := o.Sources.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate sources: %w", err)
	}
	log.Infof("📦 Found %d sources", len(sources))

	sources = o.resume(ctx, sources)

	report := o.harvest(ctx, sources, o.Pool, o.SourceLedger)
	report.Duration = time.Since(start)
	return report, nil
}

// Retry re-runs the items recorded in input, sending new failures to output.
func (o *Orchestrator) Retry(ctx context.Context, input, output Ledger, distinct bool) (*Report, error) {
	start := time.Now()

	entries, err := input.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read failure ledger %s: %w", input.Location(), err)
	}
	if distinct {
		entries = Distinct(entries)
	}

	items := make([]domain.WorkItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, entry.WorkItem())
	}

	log.Infof("🔁 Retrying %d failed items from %s", len(items), input.Location())

	pool := *o.Pool
	pool.Ledger = output
	summary := pool.Run(ctx, items)

	report := &Report{
		RunID:     o.RunID,
		Collected: len(items),
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Ledger:    output.Location(),
		Duration:  time.Since(start),
	}
	return report, nil
}

// RetrySources re-walks sources whose collection failed, starting at the page
// that failed, and enriches whatever they yield.
func (o *Orchestrator) RetrySources(ctx context.Context, input, output Ledger, distinct bool) (*Report, error) {
	start := time.Now()

	entries, err := input.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read source ledger %s: %w", input.Location(), err)
	}
	if distinct {
		entries = latestSources(entries)
	}

	sources := make([]domain.Source, 0, len(entries))
	for _, entry := range entries {
		sources = append(sources, domain.Source{Name: entry.ID, URL: entry.Target})
	}

	log.Infof("🔁 Retrying %d failed sources from %s", len(sources), input.Location())

	report := o.harvest(ctx, sources, o.Pool, output)
	report.Duration = time.Since(start)
	return report, nil
}

func (o *Orchestrator) harvest(ctx context.Context, sources []domain.Source, pool *Pool, sourceLedger Ledger) *Report {
	report := &Report{
		RunID:   o.RunID,
		Sources: len(sources),
	}
	if pool.Ledger != nil {
		report.Ledger = pool.Ledger.Location()
	}
	if sourceLedger != nil {
		report.SourceLedger = sourceLedger.Location()
	}

	results := o.collectAll(ctx, sources)

	items := make([]domain.WorkItem, 0)
	for _, result := range results {
		items = append(items, result.Items...)

		switch result.Status {
		case Exhausted:
			log.Infof("✅ Completed %s: %d pages, %d items", result.Source.Name, result.Pages, len(result.Items))
			continue
		case PartiallyCollected:
			report.PartialSources++
		case Failed:
			report.FailedSources++
		}

		if sourceLedger == nil {
			continue
		}
		if err := sourceLedger.Record(ctx, result.Source.Name, result.LastRef, result.Err); err != nil {
			log.Errorf("❌ Failed to write %s to the source ledger: %v", result.Source.Name, err)
		}
	}
	report.Collected = len(items)

	summary := pool.Run(ctx, items)
	report.Succeeded = summary.Succeeded
	report.Failed = summary.Failed

	o.saveProgress(ctx, results)

	return report
}

func (o *Orchestrator) collectAll(ctx context.Context, sources []domain.Source) []*CollectResult {
	results := make([]*CollectResult, len(sources))

	g := new(errgroup.Group)
	g.SetLimit(max(o.CollectConcurrency, 1))

	for i, src := range sources {
		g.Go(func() error {
			log.Infof("🔄 Processing source: %s", src.Name)
			results[i] = o.Collector.Collect(ctx, src)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// resume points sources at their saved page reference when a previous run
// stopped partway through them.
func (o *Orchestrator) resume(ctx context.Context, sources []domain.Source) []domain.Source {
	if o.Checkpoints == nil {
		return sources
	}

	out := make([]domain.Source, 0, len(sources))
	for _, src := range sources {
		ref, err := o.Checkpoints.Get(ctx, src.Name)
		if err != nil {
			log.Warnf("⚠️ Failed to read progress for %s: %v", src.Name, err)
		} else if ref != "" {
			log.Infof("🔄 Continue %s from %s", src.Name, ref)
			src.Cursor = ref
		}
		out = append(out, src)
	}
	return out
}

// saveProgress must run after enrichment: a resumed source skips every page
// before its saved reference.
func (o *Orchestrator) saveProgress(ctx context.Context, results []*CollectResult) {
	if o.Checkpoints == nil {
		return
	}

	for _, result := range results {
		var err error
		switch result.Status {
		case Exhausted:
			err = o.Checkpoints.Clear(ctx, result.Source.Name)
		case PartiallyCollected:
			err = o.Checkpoints.Set(ctx, result.Source.Name, result.LastRef)
		}
		if err != nil {
			log.Warnf("⚠️ Failed to save progress for %s: %v", result.Source.Name, err)
		}
	}
}

// Distinct keeps the latest entry for each identity and target, in first-seen
// order. Display names repeat across businesses, so the name alone is not a key.
func Distinct(entries []domain.FailureEntry) []domain.FailureEntry {
	type key struct{ id, target string }
	return latestBy(entries, func(e domain.FailureEntry) key { return key{e.ID, e.Target} })
}

// latestSources keeps the latest failure of each source: its reference moves
// forward as the source is retried.
func latestSources(entries []domain.FailureEntry) []domain.FailureEntry {
	return latestBy(entries, func(e domain.FailureEntry) string { return e.ID })
}

func latestBy[K comparable](entries []domain.FailureEntry, keyOf func(domain.FailureEntry) K) []domain.FailureEntry {
	index := make(map[K]int, len(entries))
	out := make([]domain.FailureEntry, 0, len(entries))

	for _, entry := range entries {
		k := keyOf(entry)
		if i, ok := index[k]; ok {
			out[i] = entry
			continue
		}
		index[k] = len(out)
		out = append(out, entry)
	}
	return out
}
