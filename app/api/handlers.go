package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/infohub/newsfeed/app/cache"
	"github.com/infohub/newsfeed/app/cfg"
	"github.com/infohub/newsfeed/app/feed"
	"github.com/infohub/newsfeed/app/freshness"
	"github.com/infohub/newsfeed/app/reader"
	"github.com/infohub/newsfeed/app/sources"
)

func NewHandler(registry *sources.Registry, store cache.Store,
	controller *freshness.Controller, rd *reader.Reader) *Handler {
	return &Handler{
		registry:   registry,
		store:      store,
		controller: controller,
		reader:     rd,
	}
}

func (h *Handler) GetSources(c *gin.Context) {
	list := h.registry.List()

	response := make([]sourceResponse, 0, len(list))
	for _, source := range list {
		response = append(response, sourceResponse{
			Key:      source.Key,
			Label:    source.Label,
			Language: source.Language,
			FeedURLs: len(source.FeedURLs),
			TTL:      source.TTL,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sources": response, "total": len(response)})
}

// GetItems serves one page of a source's cached items. The freshness check
// runs first, so a stale cache is refreshed before reading; a failed refresh
// still serves last-known-good data.
func (h *Handler) GetItems(c *gin.Context) {
	key := c.Param("key")

	if _, err := h.registry.Get(key); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	if err := h.controller.EnsureFresh(c.Request.Context(), key); err != nil {
		slog.Error("Freshness check failed", "source", key, "error", err)
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	result, err := h.reader.ListPage(key, page, pageSize)
	if err != nil {
		slog.Error("Cache read failed", "source", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cache read failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetItemDetail resolves a single item's full article content. Extraction
// failure is an explicit unavailable state, not an error status, so the
// caller can show the original link instead.
func (h *Handler) GetItemDetail(c *gin.Context) {
	key := c.Param("key")
	id := c.Param("id")

	detail, err := h.reader.LoadDetail(c.Request.Context(), key, id)
	if err != nil {
		if errors.Is(err, reader.ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		if c.Request.Context().Err() != nil {
			// Client went away; the fetch was cancelled with it.
			c.Status(http.StatusRequestTimeout)
			return
		}
		slog.Error("Detail load failed", "source", key, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Detail load failed"})
		return
	}

	c.JSON(http.StatusOK, detail)
}

// RefreshSource forces a refresh regardless of TTL. Explicit user action, so
// fetch failures are reported back.
func (h *Handler) RefreshSource(c *gin.Context) {
	key := c.Param("key")

	if _, err := h.registry.Get(key); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	if err := h.controller.ForceRefresh(c.Request.Context(), key); err != nil {
		var fetchErr *feed.FetchError
		if errors.As(err, &fetchErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "All feed URLs failed", "source": key})
			return
		}
		slog.Error("Forced refresh failed", "source", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "refreshed", "source": key})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.Get().Version,
		"sources":   h.registry.Count(),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	keys := make([]string, 0, h.registry.Count())
	for _, source := range h.registry.List() {
		keys = append(keys, source.Key)
	}

	stats, err := h.store.GetStats(keys)
	if err != nil {
		slog.Error("Stats read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stats read failed"})
		return
	}

	lastFetched := make(map[string]string, len(keys))
	for _, key := range keys {
		if at, err := h.store.LastFetchedAt(key); err == nil && at != nil {
			lastFetched[key] = at.Format(time.RFC3339)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"cache":        stats,
		"last_fetched": lastFetched,
	})
}
