package feed

import (
	"crypto/sha256"
	"encoding/base64"
	"sort"
	"time"
)

// Item is a normalized article reference. Items are serialized as JSON into
// the cache store, so field tags define the persisted layout.
type Item struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description"`
	PublishedAt *time.Time `json:"pub_date,omitempty"`
	Image       string     `json:"image,omitempty"`
	Source      string     `json:"source"`
}

// DeriveID produces a stable identifier from the item's canonical link, or
// its title when no link is present. The same upstream item must map to the
// same id across refreshes, so ingestion stays idempotent.
func DeriveID(link, title string) string {
	key := link
	if key == "" {
		key = title
	}
	sum := sha256.Sum256([]byte(key))
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}

// SortByPublished orders items by published date descending. Items without a
// date sort after all dated items, keeping their original relative order.
func SortByPublished(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedAt, items[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
