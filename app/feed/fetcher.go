package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/infohub/newsfeed/app/proxy"
	"github.com/infohub/newsfeed/app/sources"
)

// FetcherInterface is the refresh contract consumed by the freshness
// controller.
type FetcherInterface interface {
	Refresh(ctx context.Context, source *sources.Source) ([]Item, error)
}

var _ FetcherInterface = (*Fetcher)(nil)

type Fetcher struct {
	resolver *proxy.Resolver
	parser   *Parser
}

func NewFetcher(resolver *proxy.Resolver) *Fetcher {
	return &Fetcher{
		resolver: resolver,
		parser:   NewParser(),
	}
}

// Refresh fetches every feed URL configured for the source concurrently,
// waits for all of them to settle, and merges the results in configured URL
// order. A single unreachable upstream does not block the others; only total
// failure of every URL returns a FetchError. There are no retries inside one
// cycle, the next freshness check is the retry.
func (f *Fetcher) Refresh(ctx context.Context, source *sources.Source) ([]Item, error) {
	results := make([][]Item, len(source.FeedURLs))
	failures := make([]error, len(source.FeedURLs))

	var wg sync.WaitGroup
	for i, feedURL := range source.FeedURLs {
		wg.Add(1)
		go func(i int, feedURL string) {
			defer wg.Done()

			data, err := f.resolver.FetchWithFallback(ctx, feedURL)
			if err != nil {
				failures[i] = err
				return
			}

			items, err := f.parser.Run(data)
			if err != nil {
				failures[i] = err
				return
			}

			results[i] = items
		}(i, feedURL)
	}
	wg.Wait()

	var merged []Item
	succeeded := 0
	for i := range source.FeedURLs {
		if failures[i] != nil {
			slog.Warn("Feed URL failed", "source", source.Key, "url", source.FeedURLs[i], "error", failures[i])
			continue
		}
		succeeded++
		merged = append(merged, results[i]...)
	}

	if succeeded == 0 {
		return nil, &FetchError{Source: source.Key, Err: errors.Join(failures...)}
	}

	for i := range merged {
		merged[i].Source = source.Key
	}

	merged = dedupe(merged)
	SortByPublished(merged)

	slog.Debug("Source refreshed", "source", source.Key, "urls_ok", succeeded, "urls_total", len(source.FeedURLs), "items", len(merged))

	return merged, nil
}

// dedupe collapses entries sharing a derived id. The last-seen entry wins so
// overlapping upstream feeds can supersede each other's content, while the
// first-seen position is kept to preserve aggregation order for the sort
// tie-break.
func dedupe(items []Item) []Item {
	deduped := make([]Item, 0, len(items))
	position := make(map[string]int, len(items))

	for _, item := range items {
		if at, seen := position[item.ID]; seen {
			deduped[at] = item
			continue
		}
		position[item.ID] = len(deduped)
		deduped = append(deduped, item)
	}

	return deduped
}
