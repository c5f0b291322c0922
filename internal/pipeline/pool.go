package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"harvest/scraper/internal/domain"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const progressInterval = 100

// Summary counts the outcome of one pool run.
type Summary struct {
	Succeeded int
	Failed    int
}

// Pool runs fetch, extract and persist for each work item on a fixed number of
// workers. A failing item is written to the ledger and never affects its siblings.
type Pool struct {
	Fetcher        Fetcher
	Extractor      RecordExtractor
	Sink           Sink
	Ledger         Ledger
	Retry          RetryPolicy
	MaxConcurrency int
}

func (p *Pool) Run(ctx context.Context, items []domain.WorkItem) Summary {
	if len(items) == 0 {
		return Summary{}
	}

	workers := min(max(p.MaxConcurrency, 1), len(items))
	queue := make(chan domain.WorkItem)

	var succeeded, failed, done atomic.Int64

	log.Infof("🚀 Enriching %d items with %d workers", len(items), workers)

	g := new(errgroup.Group)
	for workerID := 1; workerID <= workers; workerID++ {
		g.Go(func() error {
			for item := range queue {
				if err := p.process(ctx, item); err != nil {
					failed.Add(1)
					p.recordFailure(ctx, item, err)
				} else {
					succeeded.Add(1)
				}

				if n := done.Add(1); n%progressInterval == 0 {
					log.Infof("🔄 Processed %d/%d items", n, len(items))
				}
			}
			log.Debugf("Worker %d drained the queue", workerID)
			return nil
		})
	}

	for _, item := range items {
		queue <- item
	}
	close(queue)

	_ = g.Wait()

	return Summary{
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}
}

func (p *Pool) process(ctx context.Context, item domain.WorkItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", item.ID, r)
		}
	}()

	var headers map[string]string
	if hp, ok := p.Extractor.(HeaderProvider); ok {
		headers = hp.RequestHeaders(item)
	}

	var records []domain.Record
	err = p.Retry.Do(ctx, item.ID, func(ctx context.Context) error {
		body, err := FetchDocument(ctx, p.Fetcher, item.Target, headers)
		if err != nil {
			return err
		}

		records, err = p.Extractor.ExtractRecords(item, body)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", item.Target, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, record := range records {
		if len(item.Metadata) > 0 {
			record = record.With(item.Metadata)
		}

		if err := p.Sink.Append(ctx, record); err != nil {
			return fmt.Errorf("failed to save record for %s: %w", item.ID, err)
		}
	}

	log.Debugf("Saved %d records for %s", len(records), item.ID)
	return nil
}

func (p *Pool) recordFailure(ctx context.Context, item domain.WorkItem, cause error) {
	log.Errorf("❌ Failed %s (%s): %v", item.ID, item.Target, cause)

	if p.Ledger == nil {
		return
	}

	if err := p.Ledger.Record(ctx, item.ID, item.Target, cause); err != nil {
		log.Errorf("❌ Failed to write %s to the failure ledger: %v", item.ID, err)
	}
}
