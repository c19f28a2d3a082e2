package reader

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrContentUnavailable marks a page where no candidate selector matched and
// the readability fallback produced nothing either.
var ErrContentUnavailable = errors.New("no article content could be extracted")

// defaultSelectors are generic content-region candidates tried after the
// source-specific ones. Publisher markup varies wildly, so extraction is
// best effort.
var defaultSelectors = []string{
	"article",
	".detail-content",
	".article-body",
	".fck_detail",
	".content-detail",
	"#main-content",
	"main",
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Run locates the main content region of an article page, preferring the
// source's own selectors, with the longest extracted text winning among
// matches. Script and style nodes are stripped and relative URLs rewritten
// absolute against the article link.
func (e *Extractor) Run(data []byte, baseURL string, selectors []string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	candidates := make([]string, 0, len(selectors)+len(defaultSelectors))
	candidates = append(candidates, selectors...)
	candidates = append(candidates, defaultSelectors...)

	var best *goquery.Selection
	bestLen := 0
	for _, selector := range candidates {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		textLen := len(strings.TrimSpace(sel.Text()))
		if textLen > bestLen {
			best = sel
			bestLen = textLen
		}
	}

	if best == nil || bestLen == 0 {
		return e.fallback(data, baseURL)
	}

	best.Find("script, style, noscript, iframe").Remove()
	e.rewriteURLs(best, baseURL)

	content, err := goquery.OuterHtml(best)
	if err != nil {
		return "", fmt.Errorf("failed to render extracted content: %w", err)
	}

	return content, nil
}

// fallback hands the whole page to readability when no selector matched.
func (e *Extractor) fallback(data []byte, baseURL string) (string, error) {
	pageURL, _ := url.Parse(baseURL)

	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	if article.Content == "" {
		return "", ErrContentUnavailable
	}

	return article.Content, nil
}

// rewriteURLs resolves relative img/anchor URLs against the article link,
// marks images non-referrer, and makes links open in a new context.
func (e *Extractor) rewriteURLs(sel *goquery.Selection, baseURL string) {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			img.SetAttr("src", resolveURL(base, src))
		} else if dataSrc, ok := img.Attr("data-src"); ok {
			img.SetAttr("src", resolveURL(base, dataSrc))
		}
		img.SetAttr("referrerpolicy", "no-referrer")
	})

	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			a.SetAttr("href", resolveURL(base, href))
		}
		a.SetAttr("target", "_blank")
		a.SetAttr("rel", "noopener noreferrer")
	})
}

func resolveURL(base *url.URL, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || base == nil {
		return raw
	}
	ref, err := url.Parse(trimmed)
	if err != nil {
		return raw
	}
	if ref.IsAbs() {
		return raw
	}
	return base.ResolveReference(ref).String()
}
