package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/klvl/alynappi/internal/core/ingestion_engine"
	"github.com/klvl/alynappi/internal/models"
	"github.com/klvl/alynappi/internal/services"
)

const maxUploadBytes = 52 << 20

// DocumentStore is the part of the document service the handler needs.
type DocumentStore interface {
	List(ctx context.Context) ([]models.Document, error)
	UploadAndEnqueue(ctx context.Context, fileName, category string, data io.Reader) (*ingestion_engine.Job, error)
}

type DocumentHandler struct {
	docs DocumentStore
}

func NewDocumentHandler(docs DocumentStore) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// GetDocuments lists every ingested document, newest first.
func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.docs.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list documents")
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, documents)
}

// UploadDocument archives a multipart PDF ("file" + "category") and queues it for ingestion.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	job, err := h.docs.UploadAndEnqueue(r.Context(), header.Filename, r.FormValue("category"), file)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("file", header.Filename).Msg("upload failed")
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}
