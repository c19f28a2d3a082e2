package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/infohub/newsfeed/app/cache"
	"github.com/infohub/newsfeed/app/cfg"
	"github.com/infohub/newsfeed/app/feed"
	"github.com/infohub/newsfeed/app/freshness"
	"github.com/infohub/newsfeed/app/proxy"
	"github.com/infohub/newsfeed/app/reader"
	"github.com/infohub/newsfeed/app/sources"
)

type stubFetcher struct {
	items []feed.Item
	err   error
}

func (f *stubFetcher) Refresh(ctx context.Context, source *sources.Source) ([]feed.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func testServer(t *testing.T, fetcher feed.FetcherInterface, apiAccessKey string) (*gin.Engine, cache.Store) {
	t.Helper()

	cfg.Set(&cfg.Cfg{Version: "test", DefaultTTL: 300})

	dir := t.TempDir()
	config := "label: Demo\nfeed_urls:\n  - https://news.example.com/rss\nttl: 300\n"
	if err := os.WriteFile(filepath.Join(dir, "demo.yml"), []byte(config), 0o644); err != nil {
		t.Fatalf("Failed to write source config: %v", err)
	}

	registry := sources.NewRegistry(dir, 300)
	if err := registry.Run(); err != nil {
		t.Fatalf("Failed to load registry: %v", err)
	}

	db, err := cache.NewConnection(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := cache.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	store := cache.NewStore(db)

	resolver := proxy.NewResolver("", "", "", "test", time.Second)
	controller := freshness.NewController(registry, fetcher, store)
	feedReader := reader.NewReader(store, registry, resolver)

	handler := NewHandler(registry, store, controller, feedReader)
	return NewServer(handler, apiAccessKey), store
}

func seedItems() []feed.Item {
	published := time.Date(2023, 7, 3, 12, 0, 0, 0, time.UTC)
	return []feed.Item{{
		ID:          feed.DeriveID("https://news.example.com/a", ""),
		Title:       "Article A",
		Link:        "https://news.example.com/a",
		PublishedAt: &published,
		Source:      "demo",
	}}
}

func TestGetSources(t *testing.T) {
	server, _ := testServer(t, &stubFetcher{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/sources", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var response struct {
		Total int `json:"total"`
		Sources []struct {
			Key   string `json:"key"`
			Label string `json:"label"`
		} `json:"sources"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Total != 1 || response.Sources[0].Key != "demo" {
		t.Errorf("Unexpected response: %s", w.Body.String())
	}
}

func TestGetItems_ServesCache(t *testing.T) {
	server, store := testServer(t, &stubFetcher{}, "")

	if err := store.WriteAll("demo", seedItems(), time.Now()); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/sources/demo/items?page=1&page_size=10", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var page struct {
		Items      []feed.Item `json:"items"`
		TotalPages int         `json:"total_pages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(page.Items) != 1 || page.TotalPages != 1 {
		t.Errorf("Unexpected page: %s", w.Body.String())
	}
}

func TestGetItems_StaleCacheSurvivesFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: &feed.FetchError{Source: "demo"}}
	server, store := testServer(t, fetcher, "")

	if err := store.WriteAll("demo", seedItems(), time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/sources/demo/items", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected last-known-good data served, got %d", w.Code)
	}

	var page struct {
		Items []feed.Item `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("Expected cached item served despite fetch failure, got %d", len(page.Items))
	}
}

func TestGetItems_UnknownSource(t *testing.T) {
	server, _ := testServer(t, &stubFetcher{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/sources/unknown/items", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown source, got %d", w.Code)
	}
}

func TestRefreshSource_RequiresAPIKey(t *testing.T) {
	server, _ := testServer(t, &stubFetcher{items: seedItems()}, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/sources/demo/refresh", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without key, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/sources/demo/refresh", nil)
	req.Header.Set("X-API-Key", "secret")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 with key, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRefreshSource_TotalFailureIsBadGateway(t *testing.T) {
	fetcher := &stubFetcher{err: &feed.FetchError{Source: "demo"}}
	server, _ := testServer(t, fetcher, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/sources/demo/refresh", nil)
	req.Header.Set("X-API-Key", "secret")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 when every feed URL fails, got %d", w.Code)
	}
}

func TestGetHealth(t *testing.T) {
	server, _ := testServer(t, &stubFetcher{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var health struct {
		Sources int `json:"sources"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if health.Sources != 1 {
		t.Errorf("Expected 1 source reported, got %d", health.Sources)
	}
}

func TestGetStats(t *testing.T) {
	server, store := testServer(t, &stubFetcher{}, "")

	if err := store.WriteAll("demo", seedItems(), time.Now()); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/stats", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var stats struct {
		Cache struct {
			Items map[string]int `json:"items_per_source"`
		} `json:"cache"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats.Cache.Items["demo"] != 1 {
		t.Errorf("Expected 1 cached item for demo, got %d", stats.Cache.Items["demo"])
	}
}
