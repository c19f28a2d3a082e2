package sources

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestRegistry_LoadsSources(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "cafebiz.yml", `label: CafeBiz
language: vi
feed_urls:
  - https://cafebiz.example.com/rss/home.rss
  - https://cafebiz.example.com/rss/markets.rss
ttl: 600
selectors:
  - ".detail-content"
`)
	writeSource(t, dir, "vietstock.yml", `label: Vietstock
feed_urls:
  - https://vietstock.example.com/rss
`)

	registry := NewRegistry(dir, 300)
	if err := registry.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if registry.Count() != 2 {
		t.Fatalf("Expected 2 sources, got %d", registry.Count())
	}

	cafebiz, err := registry.Get("cafebiz")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cafebiz.Label != "CafeBiz" {
		t.Errorf("Expected label CafeBiz, got: %s", cafebiz.Label)
	}
	if len(cafebiz.FeedURLs) != 2 {
		t.Errorf("Expected 2 feed URLs, got %d", len(cafebiz.FeedURLs))
	}
	if cafebiz.TTL != 600 {
		t.Errorf("Expected ttl 600, got %d", cafebiz.TTL)
	}
	if len(cafebiz.Selectors) != 1 {
		t.Errorf("Expected 1 selector, got %d", len(cafebiz.Selectors))
	}

	vietstock, err := registry.Get("vietstock")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if vietstock.TTL != 300 {
		t.Errorf("Expected default ttl 300, got %d", vietstock.TTL)
	}
}

func TestRegistry_DefaultLabel(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "plain.yml", "feed_urls:\n  - https://plain.example.com/rss\n")

	registry := NewRegistry(dir, 300)
	if err := registry.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	source, err := registry.Get("plain")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if source.Label != "plain" {
		t.Errorf("Expected key used as default label, got: %s", source.Label)
	}
}

func TestRegistry_NormalizesLanguage(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "demo.yml", "language: VI\nfeed_urls:\n  - https://demo.example.com/rss\n")

	registry := NewRegistry(dir, 300)
	if err := registry.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	source, err := registry.Get("demo")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if source.Language != "vi" {
		t.Errorf("Expected normalized language tag 'vi', got: %s", source.Language)
	}
}

func TestRegistry_RejectsMissingFeedURLs(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "broken.yml", "label: Broken\n")

	registry := NewRegistry(dir, 300)
	if err := registry.Run(); err == nil {
		t.Fatal("Expected error for source without feed URLs")
	}
}

func TestRegistry_UnknownSource(t *testing.T) {
	registry := NewRegistry(t.TempDir(), 300)
	if err := registry.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, err := registry.Get("nope"); err == nil {
		t.Fatal("Expected error for unknown source")
	}
}

func TestRegistry_ListSortedByKey(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "zeta.yml", "feed_urls:\n  - https://zeta.example.com/rss\n")
	writeSource(t, dir, "alpha.yml", "feed_urls:\n  - https://alpha.example.com/rss\n")

	registry := NewRegistry(dir, 300)
	if err := registry.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	list := registry.List()
	if len(list) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(list))
	}
	if list[0].Key != "alpha" || list[1].Key != "zeta" {
		t.Errorf("Expected keys sorted, got: %s, %s", list[0].Key, list[1].Key)
	}
}

func TestRegistry_MissingDirectory(t *testing.T) {
	registry := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist"), 300)
	if err := registry.Run(); err != nil {
		t.Fatalf("Expected missing directory tolerated, got: %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("Expected no sources, got %d", registry.Count())
	}
}
