package core

import (
	"context"
	"io"
)

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionMessage is one message of a chat completion request.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries the model and sampling knobs of one streamed completion.
type CompletionRequest struct {
	Model            string              `json:"model"`
	Messages         []CompletionMessage `json:"messages"`
	MaxTokens        int                 `json:"max_tokens"`
	Temperature      float64             `json:"temperature"`
	FrequencyPenalty float64             `json:"frequency_penalty"`
	PresencePenalty  float64             `json:"presence_penalty"`
	TopP             float64             `json:"top_p"`
	Stream           bool                `json:"stream"`
}

// ChatStreamer opens a streamed completion and hands back the raw SSE body.
// The caller owns the returned body and must close it.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req CompletionRequest) (io.ReadCloser, error)
}
