package cache

import (
	"time"

	"github.com/infohub/newsfeed/app/feed"
)

// Store is the cache contract consumed by the freshness controller, the
// reader, and the HTTP handlers. Entries are partitioned by source key, so
// operations on distinct sources never contend.
type Store interface {
	ReadIndex(source string) (*CacheRecord, error)
	ReadItems(source string) ([]feed.Item, error)
	ReadItem(source, id string) (*feed.Item, error)
	WriteAll(source string, items []feed.Item, fetchedAt time.Time) error
	LastFetchedAt(source string) (*time.Time, error)
	PruneOrphans(source string) (int, error)
	Subscribe() (<-chan Update, func())
	GetStats(sourceKeys []string) (Stats, error)
}
