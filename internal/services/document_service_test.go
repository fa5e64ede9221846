package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klvl/alynappi/internal/config"
	"github.com/klvl/alynappi/internal/core/ingestion_engine"
)

type fakeStorage struct {
	keys []string
}

func (f *fakeStorage) UploadFile(_ context.Context, key string, data io.Reader, _ string) (string, error) {
	if _, err := io.ReadAll(data); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	return "https://bucket/" + key, nil
}

func (f *fakeStorage) GetFile(context.Context, string) ([]byte, error) { return nil, nil }

type fakeQueue struct {
	jobs []ingestion_engine.Job
}

func (f *fakeQueue) Start(context.Context) {}

func (f *fakeQueue) Enqueue(_ context.Context, job ingestion_engine.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func TestUploadAndEnqueue(t *testing.T) {
	storage, queue := &fakeStorage{}, &fakeQueue{}
	svc := NewDocumentService(&fakeDB{}, storage, queue, config.DefaultSources())

	job, err := svc.UploadAndEnqueue(context.Background(), "Nappi_2_2024.pdf", "Lehti", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("UploadAndEnqueue failed: %v", err)
	}
	if job.Key != "documents/Lehti/Nappi_2_2024.pdf" || job.StorageURL != "https://bucket/documents/Lehti/Nappi_2_2024.pdf" {
		t.Errorf("Unexpected job %+v", job)
	}
	if len(queue.jobs) != 1 || len(storage.keys) != 1 {
		t.Errorf("Expected one upload and one job, got %d/%d", len(storage.keys), len(queue.jobs))
	}
}

func TestUploadAndEnqueueValidates(t *testing.T) {
	svc := NewDocumentService(&fakeDB{}, &fakeStorage{}, &fakeQueue{}, config.DefaultSources())

	if _, err := svc.UploadAndEnqueue(context.Background(), "kuva.png", "Lehti", strings.NewReader("")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for a non-PDF, got %v", err)
	}
	if _, err := svc.UploadAndEnqueue(context.Background(), "a.pdf", "Runokirja", strings.NewReader("")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for an unknown category, got %v", err)
	}
}

func TestUploadsDisabledWithoutStorage(t *testing.T) {
	svc := NewDocumentService(&fakeDB{}, nil, nil, config.DefaultSources())
	if svc.UploadsEnabled() {
		t.Fatalf("Expected uploads to be disabled")
	}
	if _, err := svc.UploadAndEnqueue(context.Background(), "a.pdf", "Lehti", strings.NewReader("")); err == nil {
		t.Fatalf("Expected an error")
	}
}
