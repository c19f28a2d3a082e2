// Package proxy builds an ordered list of alternate fetch routes for a
// target URL and walks them until one succeeds. Upstream publishers block
// cross-origin requests inconsistently, so every network read in the
// pipeline goes through FetchWithFallback instead of a plain GET.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxBodyBytes = 10 << 20

type Resolver struct {
	primaryProxyURL string
	corsProxyURL    string
	readerProxyURL  string
	userAgent       string
	timeout         time.Duration
	client          *http.Client
}

func NewResolver(primaryProxyURL, corsProxyURL, readerProxyURL, userAgent string, timeout time.Duration) *Resolver {
	return &Resolver{
		primaryProxyURL: primaryProxyURL,
		corsProxyURL:    corsProxyURL,
		readerProxyURL:  readerProxyURL,
		userAgent:       userAgent,
		timeout:         timeout,
		client:          &http.Client{},
	}
}

// Candidates returns the fetch routes for rawURL in attempt order: the
// configured primary proxy (when present), the public CORS relay, the direct
// URL, and the text-extraction relay with the scheme stripped.
func (r *Resolver) Candidates(rawURL string) []string {
	target := NormalizeURL(rawURL)

	var candidates []string

	if r.primaryProxyURL != "" {
		candidates = append(candidates, appendTarget(r.primaryProxyURL, target))
	}

	if r.corsProxyURL != "" {
		candidates = append(candidates, r.corsProxyURL+url.QueryEscape(target))
	}

	candidates = append(candidates, target)

	if r.readerProxyURL != "" {
		stripped := strings.TrimPrefix(strings.TrimPrefix(target, "https://"), "http://")
		candidates = append(candidates, r.readerProxyURL+stripped)
	}

	return candidates
}

// FetchWithFallback attempts each candidate route strictly in order and
// returns the first successful response body. Every candidate failing
// returns an ExhaustedError wrapping the last error seen.
func (r *Resolver) FetchWithFallback(ctx context.Context, rawURL string) ([]byte, error) {
	candidates := r.Candidates(rawURL)

	var lastErr error
	for _, candidate := range candidates {
		data, err := r.fetchOne(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		return data, nil
	}

	return nil, &ExhaustedError{URL: rawURL, Attempts: len(candidates), Last: lastErr}
}

func (r *Resolver) fetchOne(ctx context.Context, candidate string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", candidate, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", candidate, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// NormalizeURL upgrades plain http URLs to https. Loopback hosts are left
// untouched so local development endpoints keep working.
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(trimmed, "http://") {
		return trimmed
	}
	if parsed, err := url.Parse(trimmed); err == nil {
		host := parsed.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return trimmed
		}
	}
	return "https://" + strings.TrimPrefix(trimmed, "http://")
}

// appendTarget attaches the target as a url= query parameter, respecting an
// existing query string on the proxy endpoint.
func appendTarget(proxyURL, target string) string {
	sep := "?"
	if strings.Contains(proxyURL, "?") {
		sep = "&"
	}
	if strings.HasSuffix(proxyURL, "?") || strings.HasSuffix(proxyURL, "&") || strings.HasSuffix(proxyURL, "=") {
		return proxyURL + url.QueryEscape(target)
	}
	return proxyURL + sep + "url=" + url.QueryEscape(target)
}
