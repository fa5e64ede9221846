package models

import (
	"time"
)

// Source types of an ingested document.
const (
	SourceTypePrint = "print"
	SourceTypeWeb   = "web"
)

// Default categories. The folder -> category table in sources.yaml is authoritative;
// these are the values it ships with.
const (
	CategoryMagazine = "Lehti"
	CategoryGuide    = "Opas"
	CategoryStudy    = "Tutkimus"
	CategoryWebsite  = "web-sivusto"
)

// Document represents one ingested periodical issue, guide, study or web page.
type Document struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	SourceType string    `db:"source_type" json:"source_type"` // "print" or "web"
	Year       *int      `db:"year" json:"year"`
	Issue      *int      `db:"issue" json:"issue"`
	URL        *string   `db:"url" json:"url"`
	StorageURL *string   `db:"storage_url" json:"storage_url,omitempty"` // S3 archive of the source PDF
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Section represents one embedded chunk of a document.
type Section struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Content    string    `db:"content" json:"content"`
	Category   *string   `db:"category" json:"category"`
	PageNumber *int      `db:"page_number" json:"page_number"`
	Embedding  []float32 `db:"embedding" json:"-"` // pgvector column
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MatchedSection is a section returned by similarity search, joined with its document title.
type MatchedSection struct {
	ID         string  `db:"id" json:"id"`
	DocumentID string  `db:"document_id" json:"document_id"`
	Title      string  `db:"title" json:"title"`
	Content    string  `db:"content" json:"content"`
	Category   *string `db:"category" json:"category"`
	PageNumber *int    `db:"page_number" json:"page_number"`
	Similarity float64 `db:"similarity" json:"similarity"`
}

// ChatMessage is one turn of the conversation sent by the client.
type ChatMessage struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}
