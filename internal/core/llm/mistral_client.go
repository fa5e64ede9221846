package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultMistralBaseURL = "https://api.mistral.ai/v1"

// maxErrorBody caps how much of a failed response is kept in an APIError.
const maxErrorBody = 4 << 10

// APIError is a non-2xx answer from the model provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mistral api: status %d: %s", e.StatusCode, e.Body)
}

// MistralClient is the shared HTTP plumbing of the Mistral embedder, chat streamer and OCR extractor.
type MistralClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewMistralClient builds a client. httpClient may be nil; it must not set a Timeout,
// chat streams can stay open for minutes. Per-call deadlines come from the context.
func NewMistralClient(apiKey, baseURL string, httpClient *http.Client) *MistralClient {
	if baseURL == "" {
		baseURL = DefaultMistralBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &MistralClient{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *MistralClient) newRequest(ctx context.Context, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and returns the response when it is 2xx. Otherwise the body is drained into an *APIError.
func (c *MistralClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// postJSON marshals in, posts it to path and decodes the answer into out.
func (c *MistralClient) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := c.newRequest(ctx, path, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := decodeJSON(resp.Body, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
