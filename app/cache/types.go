package cache

import (
	"fmt"
	"time"

	"github.com/infohub/newsfeed/app/feed"
)

// CacheRecord is the per-source index: the ordered item ids that make up the
// source's current visible set, plus the last successful fetch time.
type CacheRecord struct {
	FetchedAt time.Time `json:"fetched_at"`
	ItemIDs   []string  `json:"ids"`
}

// legacyRecord is the flat single-blob layout some sources were cached with
// before the indexed layout existed. Read-only compatibility; never written.
type legacyRecord struct {
	Items     []feed.Item `json:"items"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// Update is broadcast to subscribers after a successful cache write.
type Update struct {
	Source string
}

// Stats summarizes cache contents for the health/stats endpoints.
type Stats struct {
	Entries int            `json:"entries"`
	Items   map[string]int `json:"items_per_source"`
}

func indexKey(source string) string {
	return fmt.Sprintf("rss:%s:index", source)
}

func itemKey(source, id string) string {
	return fmt.Sprintf("rss:%s:item:%s", source, id)
}

func itemKeyPrefix(source string) string {
	return fmt.Sprintf("rss:%s:item:", source)
}

func legacyKey(source string) string {
	return fmt.Sprintf("rss:%s:home", source)
}
