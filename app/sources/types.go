package sources

// Source is one logical news source, possibly aggregated from several
// syndication endpoints. Defined by a YAML file in the sources directory and
// immutable for the process lifetime.
type Source struct {
	Key       string   // Derived from filename (without .yml extension)
	Label     string   `yaml:"label"`
	FeedURLs  []string `yaml:"feed_urls"`
	Language  string   `yaml:"language"`
	TTL       int      `yaml:"ttl"` // seconds; 0 means the configured default
	Selectors []string `yaml:"selectors"`
}
