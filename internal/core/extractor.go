package core

import "context"

// OCRPage is the text of one page. PageNumber is 0 when the extractor could not tell.
type OCRPage struct {
	PageNumber int
	Text       string
}

// OCRResult is the per-page text of one document.
type OCRResult struct {
	Pages []OCRPage
}

// DocumentExtractor turns the raw bytes of a PDF into per-page text.
type DocumentExtractor interface {
	ExtractPages(ctx context.Context, fileName string, data []byte) (*OCRResult, error)
}

// WebPage is the readable text of one fetched HTML page.
type WebPage struct {
	URL   string
	Title string
	Text  string
}

// WebFetcher lists sitemap entries and fetches pages as text.
type WebFetcher interface {
	SitemapURLs(ctx context.Context, sitemapURL string) ([]string, error)
	FetchPage(ctx context.Context, pageURL string) (*WebPage, error)
}
