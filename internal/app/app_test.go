package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klvl/alynappi/internal/core"
	"github.com/klvl/alynappi/internal/core/llm"
	"github.com/klvl/alynappi/internal/core/relay"
)

func TestMistralHTTPClientHasNoTimeout(t *testing.T) {
	c := newMistralHTTPClient()
	if c.Timeout != 0 {
		t.Fatalf("Expected no client timeout, got %v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Unexpected transport %T", c.Transport)
	}
	if tr.ResponseHeaderTimeout != 0 {
		t.Errorf("Expected no response header timeout, got %v", tr.ResponseHeaderTimeout)
	}
}

func TestMistralHTTPClientKeepsSlowStreamOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		f := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
			f.Flush()
			time.Sleep(60 * time.Millisecond)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	chat := llm.NewMistralChat(llm.NewMistralClient("key", srv.URL, newMistralHTTPClient()))
	body, err := chat.StreamChat(context.Background(), core.CompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	var out bytes.Buffer
	if err := relay.Relay(context.Background(), body, &out); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if out.String() != "xxxxx" {
		t.Errorf("Expected \"xxxxx\", got %q", out.String())
	}
}
