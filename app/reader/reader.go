// Package reader is the consumer-facing read API: paginated list views over
// cached items and full-article detail resolution.
package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/infohub/newsfeed/app/cache"
	"github.com/infohub/newsfeed/app/feed"
	"github.com/infohub/newsfeed/app/proxy"
	"github.com/infohub/newsfeed/app/sources"
)

// Page is one slice of a source's cached item list.
type Page struct {
	Items      []feed.Item `json:"items"`
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
}

// Detail is the resolved full-article view for one item. Available is false
// when the article could not be fetched or no content region was found; the
// caller is expected to fall back to linking the original source.
type Detail struct {
	Available bool   `json:"available"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	HTML      string `json:"html,omitempty"`
}

// ErrItemNotFound marks a detail request for an id the cache does not hold.
var ErrItemNotFound = errors.New("item not found in cache")

type Reader struct {
	store     cache.Store
	registry  *sources.Registry
	resolver  *proxy.Resolver
	extractor *Extractor
}

func NewReader(store cache.Store, registry *sources.Registry, resolver *proxy.Resolver) *Reader {
	return &Reader{
		store:     store,
		registry:  registry,
		resolver:  resolver,
		extractor: NewExtractor(),
	}
}

// ListPage reads the source's cached items, sorted by published date
// descending with undated items last, and returns the requested slice.
// Pages are 1-based and clamped to [1, totalPages].
func (r *Reader) ListPage(key string, page, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = 10
	}

	items, err := r.store.ReadItems(key)
	if err != nil {
		return Page{}, err
	}

	feed.SortByPublished(items)

	totalPages := (len(items) + pageSize - 1) / pageSize
	if totalPages == 0 {
		return Page{Items: []feed.Item{}, Page: 1, TotalPages: 0}, nil
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}

	return Page{Items: items[start:end], Page: page, TotalPages: totalPages}, nil
}

// LoadDetail fetches the item's article page and extracts the main content
// region. Fetch or extraction failure yields an explicit unavailable state
// rather than an error; the context cancels an in-flight fetch when the
// caller navigates away.
func (r *Reader) LoadDetail(ctx context.Context, key, id string) (Detail, error) {
	item, err := r.store.ReadItem(key, id)
	if err != nil {
		return Detail{}, err
	}
	if item == nil {
		return Detail{}, fmt.Errorf("%w: %s/%s", ErrItemNotFound, key, id)
	}

	detail := Detail{Title: item.Title, Link: item.Link}

	var selectors []string
	if source, err := r.registry.Get(key); err == nil {
		selectors = source.Selectors
	}

	data, err := r.resolver.FetchWithFallback(ctx, item.Link)
	if err != nil {
		if ctx.Err() != nil {
			return Detail{}, ctx.Err()
		}
		slog.Warn("Detail fetch failed", "source", key, "id", id, "error", err)
		return detail, nil
	}

	content, err := r.extractor.Run(data, item.Link, selectors)
	if err != nil {
		slog.Warn("Detail extraction failed", "source", key, "id", id, "error", err)
		return detail, nil
	}

	detail.Available = true
	detail.HTML = content

	return detail, nil
}
