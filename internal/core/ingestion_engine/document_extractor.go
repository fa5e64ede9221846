package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/klvl/alynappi/internal/core"
)

var _ core.DocumentExtractor = (*PDFTextExtractor)(nil)

// PDFTextExtractor reads the embedded text layer of a PDF without calling any service.
// Scanned PDFs have no text layer; use the OCR extractor for those.
type PDFTextExtractor struct{}

func NewPDFTextExtractor() *PDFTextExtractor {
	return &PDFTextExtractor{}
}

// ExtractPages returns the plain text of every page, numbered from 1.
func (e *PDFTextExtractor) ExtractPages(ctx context.Context, fileName string, data []byte) (*core.OCRResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", fileName, err)
	}

	numPages := reader.NumPage()
	res := &core.OCRResult{Pages: make([]core.OCRPage, 0, numPages)}
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			res.Pages = append(res.Pages, core.OCRPage{PageNumber: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Str("file", fileName).Int("page", i).Msg("pdf page has no readable text")
			text = ""
		}
		res.Pages = append(res.Pages, core.OCRPage{PageNumber: i, Text: text})
	}
	return res, nil
}
