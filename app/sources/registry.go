package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Registry is the static source catalog. Sources are loaded once from the
// sources directory at startup; there is no dynamic registration.
type Registry struct {
	sourcesDir string
	defaultTTL int
	sources    map[string]*Source
}

func NewRegistry(sourcesDir string, defaultTTL int) *Registry {
	return &Registry{
		sourcesDir: sourcesDir,
		defaultTTL: defaultTTL,
		sources:    make(map[string]*Source),
	}
}

func (r *Registry) Run() error {
	if _, err := os.Stat(r.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(r.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		key := strings.TrimSuffix(fileName, ".yml")

		source, err := r.loadSource(key, file)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
		r.sources[key] = source

		slog.Debug("Source loaded", "source", key, "feed_urls", len(source.FeedURLs), "ttl", source.TTL)
	}

	return nil
}

func (r *Registry) Get(key string) (*Source, error) {
	source, ok := r.sources[key]
	if !ok {
		return nil, fmt.Errorf("source with key '%s' not found", key)
	}
	return source, nil
}

// List returns all sources ordered by key for stable output.
func (r *Registry) List() []*Source {
	keys := make([]string, 0, len(r.sources))
	for k := range r.sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]*Source, 0, len(keys))
	for _, k := range keys {
		list = append(list, r.sources[k])
	}
	return list
}

func (r *Registry) Count() int {
	return len(r.sources)
}

func (r *Registry) loadSource(key, file string) (*Source, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var source Source
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	source.Key = key
	if source.TTL == 0 {
		source.TTL = r.defaultTTL
	}
	if source.Label == "" {
		source.Label = key
	}
	if source.Language != "" {
		tag, err := language.Parse(source.Language)
		if err != nil {
			return nil, fmt.Errorf("invalid language '%s': %w", source.Language, err)
		}
		source.Language = tag.String()
	}

	if err := r.validateSource(&source); err != nil {
		return nil, fmt.Errorf("invalid source config %s: %w", file, err)
	}

	return &source, nil
}

func (r *Registry) validateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("source is nil")
	}
	if source.Key == "" {
		return fmt.Errorf("source key is required")
	}
	if len(source.FeedURLs) == 0 {
		return fmt.Errorf("at least one feed URL is required")
	}
	for i, feedURL := range source.FeedURLs {
		if strings.TrimSpace(feedURL) == "" {
			return fmt.Errorf("feed URL at index %d is empty", i)
		}
	}
	if source.TTL < 0 {
		return fmt.Errorf("ttl must be non-negative")
	}
	return nil
}
