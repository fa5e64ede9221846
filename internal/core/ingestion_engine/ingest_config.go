package ingestion_engine

import (
	"errors"
	"time"

	"github.com/klvl/alynappi/internal/core"
)

var (
	// ErrAlreadyIngested marks a document skipped because its title or URL is already stored.
	ErrAlreadyIngested = errors.New("document already ingested")
	// ErrNoText is returned when extraction yields no usable text.
	ErrNoText = errors.New("no text extracted")
	// ErrTooShort marks a web page skipped for having too little content.
	ErrTooShort = errors.New("content too short")
)

// IngestConfig tunes the pipeline.
//
// ChunkSize/ChunkOverlap:  chunker window and overlap, in characters (1000/200).
// BatchSize:               texts per embedding request (10).
// MinWebContentChars:      pages shorter than this are skipped (300).
// MinWebChunkChars:        web chunks shorter than this are dropped (150).
type IngestConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	BatchSize          int
	MinWebContentChars int
	MinWebChunkChars   int
}

func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		ChunkSize:          1000,
		ChunkOverlap:       200,
		BatchSize:          10,
		MinWebContentChars: 300,
		MinWebChunkChars:   150,
	}
}

// PDFSource is one PDF to ingest. StorageURL is set when the file is already archived.
type PDFSource struct {
	FileName   string
	Category   string
	Data       []byte
	StorageURL string
}

// Job is an uploaded PDF waiting in object storage for the background worker.
type Job struct {
	Key        string
	StorageURL string
	FileName   string
	Category   string
}

// RunReport counts the outcome of a batch run.
type RunReport struct {
	Processed int
	Skipped   int
	Failed    int
}

// DocumentIngestor orchestrates extraction, chunking, embedding and persistence:
//
// db:        persistence for documents and sections.
// obj:       object storage for archived PDFs; nil disables archiving.
// embedder:  embedding provider (Mistral/Gemini).
// extractor: PDF page text (Mistral OCR or the local text layer).
// web:       sitemap and HTML fetching for the web run; may be nil for PDF-only use.
// jobs:      in-memory queue of uploaded PDFs for the background worker.
type DocumentIngestor struct {
	db        core.DbClient
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	web       core.WebFetcher
	cfg       *IngestConfig
	jobs      chan Job
	now       func() time.Time
}
