package ingestion_engine

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"code.sajari.com/docconv"
	"github.com/PuerkitoBio/goquery"

	"github.com/klvl/alynappi/internal/core"
)

var _ core.WebFetcher = (*HTTPWebFetcher)(nil)

const (
	maxPageBytes   = 10 << 20
	fetchUserAgent = "alynappi-ingest/1.0"
)

// HTTPWebFetcher reads sitemaps and converts HTML pages to readable text with docconv.
type HTTPWebFetcher struct {
	client         *http.Client
	useReadability bool
}

func NewHTTPWebFetcher(client *http.Client, useReadability bool) *HTTPWebFetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPWebFetcher{client: client, useReadability: useReadability}
}

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// SitemapURLs returns every <loc> of a urlset sitemap.
func (f *HTTPWebFetcher) SitemapURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	body, err := f.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}
	out := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out, nil
}

// FetchPage downloads pageURL and returns its title and main text.
func (f *HTTPWebFetcher) FetchPage(ctx context.Context, pageURL string) (*core.WebPage, error) {
	body, err := f.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	text, _, err := docconv.ConvertHTML(bytes.NewReader(body), f.useReadability)
	if err != nil {
		return nil, fmt.Errorf("docconv %s: %w", pageURL, err)
	}

	title := pageURL
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
			title = t
		}
	}

	return &core.WebPage{URL: pageURL, Title: title, Text: strings.TrimSpace(text)}, nil
}

func (f *HTTPWebFetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

// FilterPageURLs keeps urls that contain one of the allowed paths (case-insensitive) and
// match none of the exclusions. Exclusions starting with "." are file suffixes, others substrings.
func FilterPageURLs(urls, allowed, excluded []string) []string {
	var out []string
	for _, u := range urls {
		lower := strings.ToLower(u)
		if !containsAny(lower, allowed) || isExcluded(lower, excluded) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

func isExcluded(s string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.ToLower(p)
		if strings.HasPrefix(p, ".") {
			if strings.HasSuffix(s, p) {
				return true
			}
			continue
		}
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
