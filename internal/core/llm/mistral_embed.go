package llm

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/klvl/alynappi/internal/core"
)

type MistralEmbedder struct {
	client    *MistralClient
	modelName string
}

func NewMistralEmbedder(client *MistralClient, modelName string) *MistralEmbedder {
	if modelName == "" {
		modelName = "mistral-embed"
	}
	return &MistralEmbedder{client: client, modelName: modelName}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedTexts embeds all texts in one request. Vectors come back in input order.
func (m *MistralEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctxEmbed, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var resp embeddingResponse
	if err := m.client.postJSON(ctxEmbed, "/embeddings", embeddingRequest{Model: m.modelName, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("mistral embed: %w", err)
	}

	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

var _ core.EmbeddingProvider = (*MistralEmbedder)(nil)
