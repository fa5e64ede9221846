package ingestion_engine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/klvl/alynappi/internal/core"
)

const pageSeparator = "\n\n"

// BuildPageText concatenates OCR pages into one buffer and records where each page lives in it.
// Empty pages are skipped. Offsets are in runes.
func BuildPageText(pages []core.OCRPage) (string, []PageBoundary) {
	var (
		sb         strings.Builder
		boundaries []PageBoundary
		offset     int
	)

	for i, p := range pages {
		if p.Text == "" {
			continue
		}
		num := p.PageNumber
		if num <= 0 {
			num = i + 1
		}
		sb.WriteString(p.Text)
		sb.WriteString(pageSeparator)
		length := utf8.RuneCountInString(p.Text) + utf8.RuneCountInString(pageSeparator)
		boundaries = append(boundaries, PageBoundary{PageNumber: num, StartOffset: offset, EndOffset: offset + length})
		offset += length
	}

	// Only trailing whitespace goes; trimming the front would shift every offset.
	text := strings.TrimRightFunc(sb.String(), unicode.IsSpace)
	total := utf8.RuneCountInString(text)

	kept := boundaries[:0]
	for _, b := range boundaries {
		if b.StartOffset >= total {
			continue
		}
		b.EndOffset = min(b.EndOffset, total)
		kept = append(kept, b)
	}
	return text, kept
}
