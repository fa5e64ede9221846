package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/klvl/alynappi/internal/core"
)

// MistralOCR extracts page text by uploading the PDF to Mistral and running OCR on it.
type MistralOCR struct {
	client    *MistralClient
	modelName string
}

func NewMistralOCR(client *MistralClient, modelName string) *MistralOCR {
	if modelName == "" {
		modelName = "mistral-ocr-latest"
	}
	return &MistralOCR{client: client, modelName: modelName}
}

type fileResponse struct {
	ID string `json:"id"`
}

type ocrDocument struct {
	Type   string `json:"type"`
	FileID string `json:"file_id"`
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrResponse struct {
	Pages []struct {
		PageNumber int    `json:"page_number"`
		Number     int    `json:"number"`
		Markdown   string `json:"markdown"`
		Text       string `json:"text"`
	} `json:"pages"`
	Markdown string `json:"markdown"`
	Text     string `json:"text"`
	Content  string `json:"content"`
}

// ExtractPages uploads data with purpose "ocr" and returns the text of each page.
func (o *MistralOCR) ExtractPages(ctx context.Context, fileName string, data []byte) (*core.OCRResult, error) {
	ctxUpload, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	fileID, err := o.upload(ctxUpload, fileName, data)
	if err != nil {
		return nil, fmt.Errorf("mistral upload %s: %w", fileName, err)
	}
	log.Debug().Str("file", fileName).Str("file_id", fileID).Msg("uploaded for ocr")

	ctxOCR, cancelOCR := context.WithTimeout(ctx, 10*time.Minute)
	defer cancelOCR()

	var resp ocrResponse
	req := ocrRequest{Model: o.modelName, Document: ocrDocument{Type: "file", FileID: fileID}}
	if err := o.client.postJSON(ctxOCR, "/ocr", req, &resp); err != nil {
		return nil, fmt.Errorf("mistral ocr %s: %w", fileName, err)
	}
	return resp.result(), nil
}

func (o *MistralOCR) upload(ctx context.Context, fileName string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("purpose", "ocr"); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := o.client.newRequest(ctx, "/files", &body, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	resp, err := o.client.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var f fileResponse
	if err := decodeJSON(resp.Body, &f); err != nil {
		return "", err
	}
	if f.ID == "" {
		return "", errors.New("upload succeeded but no file id returned")
	}
	return f.ID, nil
}

// result maps the OCR answer to pages. Responses without a page list are one page.
func (r *ocrResponse) result() *core.OCRResult {
	if len(r.Pages) > 0 {
		pages := make([]core.OCRPage, 0, len(r.Pages))
		for _, p := range r.Pages {
			num := p.PageNumber
			if num == 0 {
				num = p.Number
			}
			text := p.Markdown
			if text == "" {
				text = p.Text
			}
			pages = append(pages, core.OCRPage{PageNumber: num, Text: text})
		}
		return &core.OCRResult{Pages: pages}
	}
	for _, text := range []string{r.Markdown, r.Text, r.Content} {
		if text != "" {
			return &core.OCRResult{Pages: []core.OCRPage{{PageNumber: 1, Text: text}}}
		}
	}
	return &core.OCRResult{}
}

var _ core.DocumentExtractor = (*MistralOCR)(nil)
