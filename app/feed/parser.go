package feed

import (
	"bytes"
	"encoding/xml"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

var imgSrcPattern = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses a feed document into normalized items. Malformed XML falls back
// to per-item salvage so a partially broken document still yields whatever
// entries can be decoded. A document that yields nothing returns ErrNoItems.
func (p *Parser) Run(data []byte) ([]Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))

	var items []Item
	if err == nil {
		items = make([]Item, 0, len(parsed.Items))
		for _, raw := range parsed.Items {
			items = append(items, p.normalizeItem(raw))
		}
	} else {
		items = p.salvageItems(data)
	}

	if len(items) == 0 {
		return nil, ErrNoItems
	}

	return items, nil
}

func (p *Parser) normalizeItem(raw *gofeed.Item) Item {
	item := Item{
		ID:          DeriveID(raw.Link, raw.Title),
		Title:       strings.TrimSpace(raw.Title),
		Link:        raw.Link,
		Description: raw.Description,
	}

	if raw.PublishedParsed != nil {
		item.PublishedAt = raw.PublishedParsed
	} else if raw.UpdatedParsed != nil {
		item.PublishedAt = raw.UpdatedParsed
	}

	item.Image = p.extractImage(raw)

	return item
}

// extractImage picks a thumbnail in priority order: a declared image,
// an image enclosure, then the first <img> embedded in the description.
func (p *Parser) extractImage(raw *gofeed.Item) string {
	if raw.Image != nil && raw.Image.URL != "" {
		return raw.Image.URL
	}

	for _, enclosure := range raw.Enclosures {
		if enclosure == nil {
			continue
		}
		if strings.HasPrefix(enclosure.Type, "image/") && enclosure.URL != "" {
			return enclosure.URL
		}
	}

	if match := imgSrcPattern.FindStringSubmatch(raw.Description); match != nil {
		return html.UnescapeString(match[1])
	}
	if match := imgSrcPattern.FindStringSubmatch(raw.Content); match != nil {
		return html.UnescapeString(match[1])
	}

	return ""
}

// rawRSSItem mirrors the subset of RSS 2.0 item fields the salvage path can
// recover from a broken document.
type rawRSSItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Enclosure   struct {
		URL  string `xml:"url,attr"`
		Type string `xml:"type,attr"`
	} `xml:"enclosure"`
}

var itemBlockPattern = regexp.MustCompile(`(?is)<item[\s>].*?</item>|<item>.*?</item>`)

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// salvageItems scans a malformed document for <item> blocks and decodes each
// one independently, skipping blocks that still fail to parse.
func (p *Parser) salvageItems(data []byte) []Item {
	blocks := itemBlockPattern.FindAll(data, -1)

	var items []Item
	for _, block := range blocks {
		var raw rawRSSItem
		if err := xml.Unmarshal(block, &raw); err != nil {
			continue
		}

		title := strings.TrimSpace(html.UnescapeString(raw.Title))
		link := strings.TrimSpace(raw.Link)
		if title == "" && link == "" {
			continue
		}

		item := Item{
			ID:          DeriveID(link, title),
			Title:       title,
			Link:        link,
			Description: raw.Description,
		}

		if parsed := parsePubDate(raw.PubDate); parsed != nil {
			item.PublishedAt = parsed
		}

		if strings.HasPrefix(raw.Enclosure.Type, "image/") {
			item.Image = raw.Enclosure.URL
		} else if match := imgSrcPattern.FindStringSubmatch(raw.Description); match != nil {
			item.Image = html.UnescapeString(match[1])
		}

		items = append(items, item)
	}

	return items
}

func parsePubDate(value string) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	for _, layout := range pubDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return &parsed
		}
	}
	return nil
}
