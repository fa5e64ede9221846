package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klvl/alynappi/internal/core/ingestion_engine"
	"github.com/klvl/alynappi/internal/core/llm"
	"github.com/klvl/alynappi/internal/models"
	"github.com/klvl/alynappi/internal/services"
)

type fakeChat struct {
	body io.ReadCloser
	err  error
}

func (f *fakeChat) Stream(context.Context, services.ChatRequest) (io.ReadCloser, error) {
	return f.body, f.err
}

type brokenBody struct{ sent bool }

func (b *brokenBody) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, "data: {\"choices\":[{\"delta\":{\"content\":\"Hei\"}}]}\n\n"), nil
	}
	return 0, errors.New("connection reset")
}

func (b *brokenBody) Close() error { return nil }

func postChat(h *ChatHandler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Chat(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
	return rec
}

func TestChatStreamsDeltas(t *testing.T) {
	sse := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n"
	h := NewChatHandler(&fakeChat{body: io.NopCloser(strings.NewReader(sse))})

	rec := postChat(h, `{"messages":[{"role":"user","content":"moi"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Unexpected content type %q", got)
	}
	if rec.Header().Get("Cache-Control") != "no-cache" || rec.Header().Get("Connection") != "keep-alive" {
		t.Errorf("Missing streaming headers: %v", rec.Header())
	}
	if rec.Body.String() != "Hello" {
		t.Errorf("Expected \"Hello\", got %q", rec.Body.String())
	}
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"bad json", `{"messages":`, nil, http.StatusBadRequest},
		{"invalid input", `{"messages":[]}`, fmt.Errorf("%w: empty", services.ErrInvalidInput), http.StatusBadRequest},
		{"upstream", `{"messages":[]}`, fmt.Errorf("open: %w", &llm.APIError{StatusCode: 429, Body: "slow down"}), http.StatusBadGateway},
		{"other", `{"messages":[]}`, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := postChat(NewChatHandler(&fakeChat{err: c.err}), c.body)
		if rec.Code != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
			t.Errorf("%s: expected JSON error body, got %q", c.name, rec.Body.String())
		}
	}
}

func TestChatAbortsOnTransportError(t *testing.T) {
	h := NewChatHandler(&fakeChat{body: &brokenBody{}})

	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Fatalf("Expected panic(http.ErrAbortHandler), got %v", r)
		}
	}()
	postChat(h, `{"messages":[{"role":"user","content":"moi"}]}`)
}

type fakeDocs struct {
	docs     []models.Document
	uploaded []string
	err      error
}

func (f *fakeDocs) List(context.Context) ([]models.Document, error) { return f.docs, f.err }

func (f *fakeDocs) UploadAndEnqueue(_ context.Context, fileName, category string, data io.Reader) (*ingestion_engine.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploaded = append(f.uploaded, category+"/"+fileName)
	return &ingestion_engine.Job{Key: "documents/" + category + "/" + fileName, FileName: fileName, Category: category}, nil
}

func TestGetDocuments(t *testing.T) {
	year := 2021
	h := NewDocumentHandler(&fakeDocs{docs: []models.Document{{ID: "d1", Title: "Nappi_3_2021", SourceType: "print", Year: &year}}})

	rec := httptest.NewRecorder()
	h.GetDocuments(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var docs []models.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Nappi_3_2021" || *docs[0].Year != 2021 {
		t.Errorf("Unexpected documents %+v", docs)
	}
}

func multipartUpload(t *testing.T, fileName, category string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("category", category); err != nil {
		t.Fatal(err)
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("%PDF-1.4"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadDocument(t *testing.T) {
	docs := &fakeDocs{}
	h := NewDocumentHandler(docs)

	rec := httptest.NewRecorder()
	h.UploadDocument(rec, multipartUpload(t, "Nappi_4_2024.pdf", "Lehti"))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(docs.uploaded) != 1 || docs.uploaded[0] != "Lehti/Nappi_4_2024.pdf" {
		t.Errorf("Unexpected uploads %v", docs.uploaded)
	}
}

func TestUploadDocumentRejectsInvalid(t *testing.T) {
	h := NewDocumentHandler(&fakeDocs{err: fmt.Errorf("%w: unknown category", services.ErrInvalidInput)})

	rec := httptest.NewRecorder()
	h.UploadDocument(rec, multipartUpload(t, "a.pdf", "Runot"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.UploadDocument(rec, httptest.NewRequest(http.MethodPost, "/api/documents/upload", strings.NewReader("x")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without a multipart body, got %d", rec.Code)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(fakePinger{})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	Health(fakePinger{err: errors.New("down")})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}
