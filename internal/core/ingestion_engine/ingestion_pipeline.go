package ingestion_engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/klvl/alynappi/internal/config"
	"github.com/klvl/alynappi/internal/core"
	objectclient "github.com/klvl/alynappi/internal/core/object-client"
	"github.com/klvl/alynappi/internal/models"
)

// jobTimeout bounds one background document: upload to OCR, embedding and the insert.
const jobTimeout = 15 * time.Minute

// NewDocumentIngestor constructs the ingestor with a bounded job queue (64).
// obj and web may be nil.
func NewDocumentIngestor(db core.DbClient, obj core.ObjectClient, emb core.EmbeddingProvider, extractor core.DocumentExtractor, web core.WebFetcher, cfg *IngestConfig) *DocumentIngestor {
	if cfg == nil {
		cfg = DefaultIngestConfig()
	}
	return &DocumentIngestor{
		db: db, obj: obj, embedder: emb, extractor: extractor, web: web, cfg: cfg,
		jobs: make(chan Job, 64),
		now:  time.Now,
	}
}

// Start runs the single worker goroutine reading from the jobs channel.
// Documents are processed one at a time; a failing job is logged and the worker moves on.
func (i *DocumentIngestor) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("ingest worker shutting down")
				return
			case job := <-i.jobs:
				log.Info().Str("file", job.FileName).Str("category", job.Category).Msg("processing uploaded document")
				if err := i.processJob(ctx, job); err != nil {
					log.Error().Err(err).Str("file", job.FileName).Msg("uploaded document failed")
				}
			}
		}
	}()
}

// Enqueue schedules an uploaded PDF. It blocks while the queue is full, until ctx is done.
func (i *DocumentIngestor) Enqueue(ctx context.Context, job Job) error {
	select {
	case i.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *DocumentIngestor) processJob(ctx context.Context, job Job) error {
	if i.obj == nil {
		return errors.New("object storage not configured")
	}
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	data, err := i.obj.GetFile(jobCtx, job.Key)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", job.Key, err)
	}
	doc, err := i.ProcessPDF(jobCtx, PDFSource{
		FileName:   job.FileName,
		Category:   job.Category,
		Data:       data,
		StorageURL: job.StorageURL,
	})
	if errors.Is(err, ErrAlreadyIngested) {
		log.Info().Str("file", job.FileName).Msg("already ingested, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("document_id", doc.ID).Str("title", doc.Title).Msg("uploaded document ingested")
	return nil
}

// ProcessPDF runs one PDF through the whole pipeline. Either the document and all of its
// sections are stored, or nothing is.
func (i *DocumentIngestor) ProcessPDF(ctx context.Context, src PDFSource) (*models.Document, error) {
	title := TitleFromFilename(src.FileName)
	logger := log.With().Str("file", src.FileName).Str("category", src.Category).Logger()

	existing, err := i.db.FindDocumentByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyIngested
	}

	res, err := i.extractor.ExtractPages(ctx, src.FileName, src.Data)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	text, boundaries := BuildPageText(res.Pages)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", src.FileName, ErrNoText)
	}
	logger.Info().Int("pages", len(boundaries)).Int("chars", utf8.RuneCountInString(text)).Msg("text extracted")

	chunks, err := Segment(text, i.cfg.ChunkSize, i.cfg.ChunkOverlap, boundaries)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", src.FileName, ErrNoText)
	}

	vecs, err := EmbedInBatches(ctx, i.embedder, chunkContents(chunks), i.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	// archived only once everything but the insert has succeeded
	storageURL := src.StorageURL
	if storageURL == "" && i.obj != nil {
		key := objectclient.ObjectKey(src.Category, src.FileName)
		storageURL, err = i.obj.UploadFile(ctx, key, bytes.NewReader(src.Data), "application/pdf")
		if err != nil {
			return nil, fmt.Errorf("archive %s: %w", src.FileName, err)
		}
		logger.Debug().Str("url", storageURL).Msg("archived")
	}

	issue, year := ParseFilename(src.FileName)
	doc := &models.Document{
		Title:      title,
		SourceType: models.SourceTypePrint,
		Year:       year,
		Issue:      issue,
	}
	if storageURL != "" {
		doc.StorageURL = &storageURL
	}

	sections := make([]models.Section, len(chunks))
	for n, c := range chunks {
		sections[n] = models.Section{
			Content:    c.Content,
			Category:   stringPtr(src.Category),
			PageNumber: c.PageNumber,
			Embedding:  vecs[n],
		}
	}

	if err := i.db.CreateDocumentWithSections(ctx, doc, sections); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	logger.Info().Str("document_id", doc.ID).Int("sections", len(sections)).Msg("document ingested")
	return doc, nil
}

// IngestDirectory processes every PDF under the folders of the sources table, one at a time.
// A failing document is logged and counted; the run goes on.
func (i *DocumentIngestor) IngestDirectory(ctx context.Context, src *config.Sources) (RunReport, error) {
	var report RunReport
	for _, folder := range src.Folders {
		dir := src.FolderPath(folder)
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("skipping folder")
			continue
		}

		log.Info().Str("dir", dir).Str("category", folder.Category).Msg("ingesting folder")
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}
			path := filepath.Join(dir, e.Name())
			if err := i.ingestFile(ctx, path, folder.Category); err != nil {
				report.record(err, log.With().Str("file", path).Logger())
				continue
			}
			report.Processed++
		}
	}
	log.Info().Int("processed", report.Processed).Int("skipped", report.Skipped).Int("failed", report.Failed).Msg("pdf ingestion finished")
	return report, nil
}

// IngestFiles processes explicitly named PDFs with one category.
func (i *DocumentIngestor) IngestFiles(ctx context.Context, paths []string, category string) (RunReport, error) {
	var report RunReport
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := i.ingestFile(ctx, path, category); err != nil {
			report.record(err, log.With().Str("file", path).Logger())
			continue
		}
		report.Processed++
	}
	return report, nil
}

func (i *DocumentIngestor) ingestFile(ctx context.Context, path, category string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = i.ProcessPDF(ctx, PDFSource{FileName: filepath.Base(path), Category: category, Data: data})
	return err
}

// IngestWeb crawls the whitelisted pages of the configured sitemaps.
func (i *DocumentIngestor) IngestWeb(ctx context.Context, src *config.Sources) (RunReport, error) {
	var report RunReport
	if i.web == nil {
		return report, errors.New("web fetcher not configured")
	}

	seen := make(map[string]struct{})
	for _, sitemap := range src.Web.Sitemaps {
		urls, err := i.web.SitemapURLs(ctx, sitemap)
		if err != nil {
			log.Warn().Err(err).Str("sitemap", sitemap).Msg("skipping sitemap")
			continue
		}
		pages := FilterPageURLs(urls, src.Web.AllowedPaths, src.Web.Excluded)
		log.Info().Str("sitemap", sitemap).Int("urls", len(urls)).Int("whitelisted", len(pages)).Msg("sitemap read")

		for _, u := range pages {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := i.processWebPage(ctx, u, src.Web.Category); err != nil {
				report.record(err, log.With().Str("url", u).Logger())
				continue
			}
			report.Processed++
		}
	}
	log.Info().Int("processed", report.Processed).Int("skipped", report.Skipped).Int("failed", report.Failed).Msg("web ingestion finished")
	return report, nil
}

func (i *DocumentIngestor) processWebPage(ctx context.Context, pageURL, category string) error {
	existing, err := i.db.FindDocumentByURL(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if existing != nil {
		return ErrAlreadyIngested
	}

	page, err := i.web.FetchPage(ctx, pageURL)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(page.Text) < i.cfg.MinWebContentChars {
		return ErrTooShort
	}

	chunks, err := Segment(page.Text, i.cfg.ChunkSize, i.cfg.ChunkOverlap, nil)
	if err != nil {
		return err
	}
	kept := chunks[:0]
	for _, c := range chunks {
		if utf8.RuneCountInString(c.Content) >= i.cfg.MinWebChunkChars {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return ErrTooShort
	}

	vecs, err := EmbedInBatches(ctx, i.embedder, chunkContents(kept), i.cfg.BatchSize)
	if err != nil {
		return err
	}

	year := i.now().Year()
	doc := &models.Document{
		Title:      page.Title,
		SourceType: models.SourceTypeWeb,
		URL:        stringPtr(pageURL),
		Year:       &year,
	}
	sections := make([]models.Section, len(kept))
	for n, c := range kept {
		sections[n] = models.Section{Content: c.Content, Category: stringPtr(category), Embedding: vecs[n]}
	}
	if err := i.db.CreateDocumentWithSections(ctx, doc, sections); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	log.Info().Str("url", pageURL).Str("title", page.Title).Int("sections", len(sections)).Msg("web page ingested")
	return nil
}

// record counts a failed or skipped item and logs why.
func (r *RunReport) record(err error, logger zerolog.Logger) {
	switch {
	case errors.Is(err, ErrAlreadyIngested):
		r.Skipped++
		logger.Info().Msg("already ingested, skipping")
	case errors.Is(err, ErrTooShort):
		r.Skipped++
		logger.Info().Msg("too little content, skipping")
	default:
		r.Failed++
		logger.Error().Err(err).Msg("ingestion failed")
	}
}

func chunkContents(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for n, c := range chunks {
		out[n] = c.Content
	}
	return out
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
