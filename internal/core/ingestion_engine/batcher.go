package ingestion_engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/klvl/alynappi/internal/core"
)

var (
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
	ErrEmbeddingDimension     = errors.New("embedding dimension mismatch")
)

// EmbedInBatches embeds texts batchSize at a time, one provider call after another,
// and returns one vector per text in input order. batchSize <= 0 sends everything at once.
func EmbedInBatches(ctx context.Context, provider core.EmbeddingProvider, texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	dim := 0
	for lo := 0; lo < len(texts); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+batchSize, len(texts))

		vecs, err := provider.EmbedTexts(ctx, texts[lo:hi])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", lo, hi, err)
		}
		if len(vecs) != hi-lo {
			return nil, fmt.Errorf("%w: batch %d-%d got %d want %d", ErrEmbeddingCountMismatch, lo, hi, len(vecs), hi-lo)
		}
		for i, v := range vecs {
			if len(v) == 0 {
				return nil, fmt.Errorf("%w: empty vector for text %d", ErrEmbeddingDimension, lo+i)
			}
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return nil, fmt.Errorf("%w: text %d has %d dims, want %d", ErrEmbeddingDimension, lo+i, len(v), dim)
			}
		}
		out = append(out, vecs...)
		log.Debug().Int("from", lo).Int("to", hi).Int("total", len(texts)).Msg("embedded batch")
	}
	return out, nil
}
