package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/infohub/newsfeed/app/feed"
)

var _ Store = (*CacheStore)(nil)

// CacheStore persists fetched items in a two-tier layout: one index record
// per source plus individually addressable item records. The index is the
// source of truth for what is visible; item records not referenced by it may
// linger until pruned but are never surfaced to readers.
type CacheStore struct {
	db       *DB
	notifier *Notifier
}

func NewStore(db *DB) *CacheStore {
	return &CacheStore{
		db:       db,
		notifier: NewNotifier(),
	}
}

// ReadIndex returns the index record for a source, or nil when the source
// has never been cached in the indexed layout.
func (s *CacheStore) ReadIndex(source string) (*CacheRecord, error) {
	value, err := s.get(indexKey(source))
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}

	var record CacheRecord
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return nil, fmt.Errorf("failed to decode index for source %s: %w", source, err)
	}

	return &record, nil
}

// ReadItems resolves the index into item records, preserving index order.
// Ids referenced by the index with no stored record are skipped rather than
// failing the whole list. When no index exists the legacy flat layout is
// consulted instead.
func (s *CacheStore) ReadItems(source string) ([]feed.Item, error) {
	record, err := s.ReadIndex(source)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return s.readLegacyItems(source)
	}

	stored, err := s.readItemRecords(source)
	if err != nil {
		return nil, err
	}

	items := make([]feed.Item, 0, len(record.ItemIDs))
	for _, id := range record.ItemIDs {
		item, ok := stored[id]
		if !ok {
			slog.Warn("Index references missing item record, skipping", "source", source, "id", id)
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// ReadItem returns a single indexed item record, or nil when it does not
// exist. The legacy layout is searched when the indexed record is absent.
func (s *CacheStore) ReadItem(source, id string) (*feed.Item, error) {
	value, err := s.get(itemKey(source, id))
	if err != nil {
		return nil, err
	}
	if value != "" {
		var item feed.Item
		if err := json.Unmarshal([]byte(value), &item); err != nil {
			return nil, fmt.Errorf("failed to decode item %s for source %s: %w", id, source, err)
		}
		return &item, nil
	}

	legacy, err := s.readLegacyItems(source)
	if err != nil {
		return nil, err
	}
	for i := range legacy {
		if legacy[i].ID == id {
			return &legacy[i], nil
		}
	}

	return nil, nil
}

// WriteAll replaces the source's visible set in one transaction. Item
// records are written before the index so a reader never observes an index
// entry pointing at a record that was never stored. Subscribers are notified
// only after the transaction commits.
func (s *CacheStore) WriteAll(source string, items []feed.Item, fetchedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(items))
	for _, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
		}
		if err := upsert(tx, itemKey(source, item.ID), string(encoded)); err != nil {
			return err
		}
		ids = append(ids, item.ID)
	}

	record := CacheRecord{FetchedAt: fetchedAt.UTC(), ItemIDs: ids}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode index for source %s: %w", source, err)
	}
	if err := upsert(tx, indexKey(source), string(encoded)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache write: %w", err)
	}

	s.notifier.Broadcast(Update{Source: source})

	return nil
}

// LastFetchedAt returns the source's last successful fetch time, or nil when
// the source has never been cached in either layout.
func (s *CacheStore) LastFetchedAt(source string) (*time.Time, error) {
	record, err := s.ReadIndex(source)
	if err != nil {
		return nil, err
	}
	if record != nil {
		fetchedAt := record.FetchedAt
		return &fetchedAt, nil
	}

	legacy, err := s.readLegacyRecord(source)
	if err != nil {
		return nil, err
	}
	if legacy != nil {
		fetchedAt := legacy.FetchedAt
		return &fetchedAt, nil
	}

	return nil, nil
}

// PruneOrphans deletes item records the current index no longer references.
// Sources without an index are left untouched.
func (s *CacheStore) PruneOrphans(source string) (int, error) {
	record, err := s.ReadIndex(source)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}

	indexed := make(map[string]bool, len(record.ItemIDs))
	for _, id := range record.ItemIDs {
		indexed[id] = true
	}

	stored, err := s.readItemRecords(source)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for id := range stored {
		if indexed[id] {
			continue
		}
		if _, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, itemKey(source, id)); err != nil {
			return pruned, fmt.Errorf("failed to prune item %s for source %s: %w", id, source, err)
		}
		pruned++
	}

	return pruned, nil
}

// Subscribe registers a listener for post-write change notifications.
func (s *CacheStore) Subscribe() (<-chan Update, func()) {
	return s.notifier.Subscribe()
}

// GetStats reports total entry count and per-source visible item counts.
func (s *CacheStore) GetStats(sourceKeys []string) (Stats, error) {
	stats := Stats{Items: make(map[string]int, len(sourceKeys))}

	err := s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&stats.Entries)
	if err != nil {
		return stats, fmt.Errorf("failed to count cache entries: %w", err)
	}

	for _, source := range sourceKeys {
		items, err := s.ReadItems(source)
		if err != nil {
			return stats, err
		}
		stats.Items[source] = len(items)
	}

	return stats, nil
}

func (s *CacheStore) readItemRecords(source string) (map[string]feed.Item, error) {
	prefix := itemKeyPrefix(source)
	rows, err := s.db.Query(`SELECT key, value FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to read item records for source %s: %w", source, err)
	}
	defer rows.Close()

	stored := make(map[string]feed.Item)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan item record: %w", err)
		}

		var item feed.Item
		if err := json.Unmarshal([]byte(value), &item); err != nil {
			slog.Warn("Failed to decode stored item, skipping", "source", source, "key", key, "error", err)
			continue
		}
		stored[strings.TrimPrefix(key, prefix)] = item
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item records: %w", err)
	}

	return stored, nil
}

// readLegacyItems reads the flat single-blob layout and synthesizes stable
// ids for items stored without one.
func (s *CacheStore) readLegacyItems(source string) ([]feed.Item, error) {
	record, err := s.readLegacyRecord(source)
	if err != nil || record == nil {
		return nil, err
	}

	items := make([]feed.Item, 0, len(record.Items))
	for _, item := range record.Items {
		if item.ID == "" {
			item.ID = feed.DeriveID(item.Link, item.Title)
		}
		if item.Source == "" {
			item.Source = source
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *CacheStore) readLegacyRecord(source string) (*legacyRecord, error) {
	value, err := s.get(legacyKey(source))
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}

	var record legacyRecord
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return nil, fmt.Errorf("failed to decode legacy record for source %s: %w", source, err)
	}

	return &record, nil
}

func (s *CacheStore) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	return value, nil
}

func upsert(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`
		INSERT INTO cache_entries (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry %s: %w", key, err)
	}
	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
