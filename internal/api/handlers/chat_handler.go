package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/klvl/alynappi/internal/core/llm"
	"github.com/klvl/alynappi/internal/core/relay"
	"github.com/klvl/alynappi/internal/services"
)

const maxChatBody = 1 << 20

// ChatStreamer is the part of the chat service the handler needs.
type ChatStreamer interface {
	Stream(ctx context.Context, req services.ChatRequest) (io.ReadCloser, error)
}

type ChatHandler struct {
	chat ChatStreamer
}

func NewChatHandler(chat ChatStreamer) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat answers the conversation in the body with a stream of plain text deltas.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stream, err := h.chat.Stream(ctx, req)
	if err != nil {
		var apiErr *llm.APIError
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &apiErr):
			log.Error().Err(err).Int("upstream_status", apiErr.StatusCode).Msg("chat: upstream rejected request")
			writeError(w, http.StatusBadGateway, "language model request failed")
		default:
			log.Error().Err(err).Msg("chat: failed before streaming")
			writeError(w, http.StatusInternalServerError, "chat failed")
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := relay.Relay(ctx, stream, w); err != nil {
		if errors.Is(err, relay.ErrTransport) {
			log.Error().Err(err).Msg("chat: stream broke, aborting response")
			panic(http.ErrAbortHandler)
		}
		log.Debug().Err(err).Msg("chat: client went away")
	}
}
