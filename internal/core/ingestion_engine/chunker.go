package ingestion_engine

import (
	"errors"
	"sort"
	"strings"
)

var ErrInvalidChunkParams = errors.New("chunk size must be positive and overlap non-negative")

// PageBoundary marks the rune range [StartOffset, EndOffset) of one page inside a text buffer.
type PageBoundary struct {
	PageNumber  int
	StartOffset int
	EndOffset   int
}

// Chunk is one segment of the source text.
//
// SourceStart/SourceEnd are rune offsets of the untrimmed span; Content is that span trimmed.
// PageNumber is nil when no boundary contains SourceStart.
type Chunk struct {
	Content     string
	PageNumber  *int
	SourceStart int
	SourceEnd   int
}

var (
	paragraphBreak  = []rune("\n\n")
	sentenceBreaks  = [][]rune{[]rune(". "), []rune("! "), []rune("? ")}
	whitespaceBreak = []rune(" ")
)

// Segment splits text into overlapping chunks of at most chunkSize runes.
//
// Each window prefers to end after a paragraph break, then a sentence terminator, then a space,
// searched in the last 30% of the window (never earlier than 70% of it). Consecutive chunks
// share at most min(overlap, 30% of chunkSize) runes. boundaries may be nil.
func Segment(text string, chunkSize, overlap int, boundaries []PageBoundary) ([]Chunk, error) {
	if chunkSize <= 0 || overlap < 0 {
		return nil, ErrInvalidChunkParams
	}

	runes := []rune(text)
	n := len(runes)
	safeOverlap := min(overlap, chunkSize*3/10)

	var chunks []Chunk
	emit := func(start, end int) {
		content := strings.TrimSpace(string(runes[start:end]))
		if content == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Content:     content,
			PageNumber:  pageAt(boundaries, start),
			SourceStart: start,
			SourceEnd:   end,
		})
	}

	start := 0
	for start < n {
		end := start + chunkSize
		if end >= n {
			emit(start, n)
			break
		}

		brk := findBreak(runes, start, end, chunkSize)
		emit(start, brk)

		next := brk - safeOverlap
		if next <= start {
			next = brk
		}
		start = next
	}
	return chunks, nil
}

// findBreak returns the offset the chunk [start, end) should end at. The result is always > start.
func findBreak(runes []rune, start, end, chunkSize int) int {
	lo := max(start+chunkSize*7/10, end-chunkSize*3/10)

	if i := lastIndexIn(runes, lo, end, paragraphBreak); i >= 0 {
		return i + len(paragraphBreak)
	}

	best := -1
	for _, d := range sentenceBreaks {
		if i := lastIndexIn(runes, lo, end, d); i >= 0 && i+len(d) > best {
			best = i + len(d)
		}
	}
	if best >= 0 {
		return best
	}

	if i := lastIndexIn(runes, lo, end, whitespaceBreak); i >= 0 {
		return i + len(whitespaceBreak)
	}
	return end
}

// lastIndexIn finds the last occurrence of delim lying wholly inside runes[lo:hi].
func lastIndexIn(runes []rune, lo, hi int, delim []rune) int {
	for i := hi - len(delim); i >= lo; i-- {
		match := true
		for j, r := range delim {
			if runes[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// pageAt returns the number of the page containing pos. boundaries must be sorted and non-overlapping.
func pageAt(boundaries []PageBoundary, pos int) *int {
	i := sort.Search(len(boundaries), func(i int) bool {
		return boundaries[i].EndOffset > pos
	})
	if i < len(boundaries) && boundaries[i].StartOffset <= pos {
		page := boundaries[i].PageNumber
		return &page
	}
	return nil
}

func pageAtLinear(boundaries []PageBoundary, pos int) *int {
	for _, b := range boundaries {
		if pos >= b.StartOffset && pos < b.EndOffset {
			page := b.PageNumber
			return &page
		}
	}
	return nil
}
