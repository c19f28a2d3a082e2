// Package freshness gates source refreshes behind a TTL window so callers
// can trigger checks on every page load without hammering upstream feeds.
package freshness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/infohub/newsfeed/app/cache"
	"github.com/infohub/newsfeed/app/feed"
	"github.com/infohub/newsfeed/app/sources"
)

type Controller struct {
	registry *sources.Registry
	fetcher  feed.FetcherInterface
	store    cache.Store

	mu       sync.Mutex
	inFlight map[string]bool

	now func() time.Time
}

func NewController(registry *sources.Registry, fetcher feed.FetcherInterface, store cache.Store) *Controller {
	return &Controller{
		registry: registry,
		fetcher:  fetcher,
		store:    store,
		inFlight: make(map[string]bool),
		now:      time.Now,
	}
}

// EnsureFresh refreshes the source when its cached data is older than the
// source's TTL, and no-ops otherwise. It is safe to call on every read. A
// failed refresh leaves the last-known-good cache untouched and is only
// logged; the read path keeps serving stale data.
func (c *Controller) EnsureFresh(ctx context.Context, key string) error {
	source, err := c.registry.Get(key)
	if err != nil {
		return err
	}

	stale, err := c.isStale(source)
	if err != nil {
		return err
	}
	if !stale {
		return nil
	}

	if !c.acquire(key) {
		slog.Debug("Refresh already in flight, skipping", "source", key)
		return nil
	}
	defer c.release(key)

	if err := c.refresh(ctx, source); err != nil {
		slog.Error("Source refresh failed, keeping cached data", "source", key, "error", err)
	}

	return nil
}

// ForceRefresh refreshes the source regardless of TTL. Used for explicit
// user-initiated refresh triggers, so failures are returned to the caller.
func (c *Controller) ForceRefresh(ctx context.Context, key string) error {
	source, err := c.registry.Get(key)
	if err != nil {
		return err
	}

	if !c.acquire(key) {
		slog.Debug("Refresh already in flight, skipping", "source", key)
		return nil
	}
	defer c.release(key)

	return c.refresh(ctx, source)
}

func (c *Controller) refresh(ctx context.Context, source *sources.Source) error {
	items, err := c.fetcher.Refresh(ctx, source)
	if err != nil {
		return err
	}

	if err := c.store.WriteAll(source.Key, items, c.now()); err != nil {
		return err
	}

	slog.Info("Source refreshed", "source", source.Key, "items", len(items))

	return nil
}

func (c *Controller) isStale(source *sources.Source) (bool, error) {
	last, err := c.store.LastFetchedAt(source.Key)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}

	ttl := time.Duration(source.TTL) * time.Second
	return c.now().Sub(*last) >= ttl, nil
}

// acquire marks a per-source refresh as in flight. Overlapping triggers for
// the same source are skipped; distinct sources never block each other.
func (c *Controller) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[key] {
		return false
	}
	c.inFlight[key] = true
	return true
}

func (c *Controller) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)
}
