package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klvl/alynappi/internal/config"
	"github.com/klvl/alynappi/internal/core"
	"github.com/klvl/alynappi/internal/core/ingestion_engine"
	objectclient "github.com/klvl/alynappi/internal/core/object-client"
	"github.com/klvl/alynappi/internal/models"
)

type DocumentService struct {
	db       core.DbClient
	storage  core.ObjectClient
	ingestor ingestion_engine.Ingestor
	sources  *config.Sources
}

// NewDocumentService builds the service. storage and ingestor may be nil, which disables uploads.
func NewDocumentService(db core.DbClient, storage core.ObjectClient, ing ingestion_engine.Ingestor, sources *config.Sources) *DocumentService {
	return &DocumentService{db: db, storage: storage, ingestor: ing, sources: sources}
}

func (s *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	return s.db.ListDocuments(ctx)
}

// UploadsEnabled reports whether uploaded PDFs can be archived and ingested.
func (s *DocumentService) UploadsEnabled() bool {
	return s.storage != nil && s.ingestor != nil
}

// UploadAndEnqueue archives an uploaded PDF and schedules it for ingestion.
func (s *DocumentService) UploadAndEnqueue(ctx context.Context, fileName, category string, data io.Reader) (*ingestion_engine.Job, error) {
	if !s.UploadsEnabled() {
		return nil, fmt.Errorf("uploads are not configured")
	}
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return nil, fmt.Errorf("%w: only PDF files are accepted", ErrInvalidInput)
	}
	if !s.sources.HasCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}

	key := objectclient.ObjectKey(category, fileName)
	url, err := s.storage.UploadFile(ctx, key, data, "application/pdf")
	if err != nil {
		return nil, err
	}

	job := ingestion_engine.Job{Key: key, StorageURL: url, FileName: fileName, Category: category}
	if err := s.ingestor.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", fileName, err)
	}
	return &job, nil
}
