package pipeline

import (
	"context"
	"fmt"
	"time"

	"harvest/scraper/internal/domain"

	log "github.com/sirupsen/logrus"
)

type CollectStatus int

const (
	Exhausted          CollectStatus = iota // Walked to the last page
	PartiallyCollected                      // A later page failed, earlier items kept
	Failed                                  // Failed before any page succeeded
)

func (s CollectStatus) String() string {
	switch s {
	case Exhausted:
		return "exhausted"
	case PartiallyCollected:
		return "partially collected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// CollectResult is the outcome of walking one source.
type CollectResult struct {
	Source  domain.Source
	Items   []domain.WorkItem
	Pages   int
	Status  CollectStatus
	LastRef string // Page that failed, set unless Exhausted
	Err     error
}

// Collector walks a source's pagination one page at a time.
type Collector struct {
	Fetcher   Fetcher
	Extractor ListingExtractor
	Retry     RetryPolicy
	PageDelay time.Duration
	MaxPages  int // 0 means no limit
	Headers   map[string]string
}

// Collect never returns an error of its own; failures are reported in the result
// alongside whatever was collected before them.
func (c *Collector) Collect(ctx context.Context, src domain.Source) *CollectResult {
	result := &CollectResult{
		Source: src,
		Items:  make([]domain.WorkItem, 0),
	}

	sleep := c.Retry.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	visited := make(map[string]struct{})
	ref := src.Start()

	for ref != "" {
		visited[ref] = struct{}{}

		items, next, err := c.collectPage(ctx, src, ref)
		if err != nil {
			result.LastRef = ref
			result.Err = err
			if result.Pages == 0 {
				result.Status = Failed
			} else {
				result.Status = PartiallyCollected
			}
			log.Errorf("❌ Failed page %s for %s after %d pages: %v", ref, src.Name, result.Pages, err)
			return result
		}

		result.Pages++
		result.Items = append(result.Items, items...)
		log.Debugf("Collected %d items from %s page %d", len(items), src.Name, result.Pages)

		if _, seen := visited[next]; next != "" && seen {
			log.Warnf("⚠️ %s links back to already visited page %s, stopping", src.Name, next)
			next = ""
		}

		if next != "" && c.MaxPages > 0 && result.Pages >= c.MaxPages {
			log.Warnf("⚠️ %s reached the page cap of %d", src.Name, c.MaxPages)
			next = ""
		}

		if next != "" && c.PageDelay > 0 {
			if err := sleep(ctx, c.PageDelay); err != nil {
				result.LastRef = next
				result.Err = err
				result.Status = PartiallyCollected
				return result
			}
		}

		ref = next
	}

	result.Status = Exhausted
	return result
}

func (c *Collector) collectPage(ctx context.Context, src domain.Source, ref string) ([]domain.WorkItem, string, error) {
	var (
		items []domain.WorkItem
		next  string
	)

	err := c.Retry.Do(ctx, ref, func(ctx context.Context) error {
		body, err := FetchDocument(ctx, c.Fetcher, ref, c.Headers)
		if err != nil {
			return err
		}

		items, next, err = c.Extractor.ExtractListing(src, ref, body)
		if err != nil {
			return fmt.Errorf("failed to extract listing %s: %w", ref, err)
		}
		return nil
	})

	return items, next, err
}
