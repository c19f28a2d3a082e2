package api

import (
	"github.com/infohub/newsfeed/app/cache"
	"github.com/infohub/newsfeed/app/freshness"
	"github.com/infohub/newsfeed/app/reader"
	"github.com/infohub/newsfeed/app/sources"
)

type Handler struct {
	registry   *sources.Registry
	store      cache.Store
	controller *freshness.Controller
	reader     *reader.Reader
}

type sourceResponse struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Language string `json:"language,omitempty"`
	FeedURLs int    `json:"feed_urls"`
	TTL      int    `json:"ttl"`
}
