package core

import (
	"context"
	"io"

	"github.com/klvl/alynappi/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	FindDocumentByTitle(ctx context.Context, title string) (*models.Document, error)
	FindDocumentByURL(ctx context.Context, url string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)

	// CreateDocumentWithSections persists a document and all of its sections atomically.
	CreateDocumentWithSections(ctx context.Context, doc *models.Document, sections []models.Section) error

	MatchSections(ctx context.Context, queryVec []float32, threshold float64, count int) ([]models.MatchedSection, error)

	Ping(ctx context.Context) error
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)
	GetFile(ctx context.Context, key string) ([]byte, error)
}
