package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klvl/alynappi/internal/core"
)

type MistralChat struct {
	client *MistralClient
}

func NewMistralChat(client *MistralClient) *MistralChat {
	return &MistralChat{client: client}
}

// StreamChat opens a streamed chat completion and returns its SSE body unread.
// A non-2xx answer is returned as *APIError before any byte is streamed.
func (m *MistralChat) StreamChat(ctx context.Context, req core.CompletionRequest) (io.ReadCloser, error) {
	req.Stream = true
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := m.client.newRequest(ctx, "/chat/completions", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := m.client.do(httpReq)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

var _ core.ChatStreamer = (*MistralChat)(nil)
