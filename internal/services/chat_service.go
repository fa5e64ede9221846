package services

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"

	"github.com/klvl/alynappi/internal/config"
	"github.com/klvl/alynappi/internal/core"
	"github.com/klvl/alynappi/internal/models"
)

//go:embed prompts/system_prompt.tmpl
var systemPromptText string

var systemPrompt = template.Must(template.New("system").Parse(systemPromptText))

const (
	contextSeparator = "\n\n---\n\n"
	missingCategory  = "[Kategoria puuttuu]"
)

// ChatOptions are the retrieval and sampling knobs of the chat pipeline.
type ChatOptions struct {
	Model            string
	MatchThreshold   float64
	MatchCount       int
	MaxTokens        int
	Temperature      float64
	FrequencyPenalty float64
	PresencePenalty  float64
	TopP             float64
}

func ChatOptionsFromConfig(cfg *config.Config) ChatOptions {
	return ChatOptions{
		Model:            cfg.ChatModel,
		MatchThreshold:   cfg.MatchThreshold,
		MatchCount:       cfg.MatchCount,
		MaxTokens:        cfg.MaxTokens,
		Temperature:      cfg.Temperature,
		FrequencyPenalty: cfg.FrequencyPenalty,
		PresencePenalty:  cfg.PresencePenalty,
		TopP:             cfg.TopP,
	}
}

// MessagePart is one part of a multi-part client message. Only text parts are read.
type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// IncomingMessage is a chat message as the web client sends it: either a plain
// string content or a list of parts.
type IncomingMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content,omitempty"`
	Parts   []MessagePart   `json:"parts,omitempty"`
}

// Text returns the string content, else the first text part, else "".
func (m IncomingMessage) Text() string {
	if len(m.Content) > 0 {
		var s string
		if err := json.Unmarshal(m.Content, &s); err == nil {
			return s
		}
	}
	for _, p := range m.Parts {
		if p.Type == "text" {
			return p.Text
		}
	}
	return ""
}

type ChatRequest struct {
	Messages []IncomingMessage `json:"messages"`
}

type ChatService struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	chat     core.ChatStreamer
	opts     ChatOptions
}

func NewChatService(db core.DbClient, emb core.EmbeddingProvider, chat core.ChatStreamer, opts ChatOptions) *ChatService {
	return &ChatService{db: db, embedder: emb, chat: chat, opts: opts}
}

// Stream answers the last message of req from the archive and returns the model's SSE body.
// The caller must close it.
func (s *ChatService) Stream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages array is required", ErrInvalidInput)
	}

	messages := make([]core.CompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, core.CompletionMessage{Role: "system"})
	for _, m := range req.Messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, core.CompletionMessage{Role: role, Content: m.Text()})
	}

	question := messages[len(messages)-1].Content
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{strings.ReplaceAll(question, "\n", " ")})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed question: got %d vectors", len(vecs))
	}

	matches, err := s.db.MatchSections(ctx, vecs[0], s.opts.MatchThreshold, s.opts.MatchCount)
	if err != nil {
		return nil, fmt.Errorf("database search failed: %w", err)
	}
	log.Debug().Int("matches", len(matches)).Msg("sections matched")

	prompt, err := RenderSystemPrompt(BuildContext(matches))
	if err != nil {
		return nil, err
	}
	messages[0].Content = prompt

	return s.chat.StreamChat(ctx, core.CompletionRequest{
		Model:            s.opts.Model,
		Messages:         messages,
		MaxTokens:        s.opts.MaxTokens,
		Temperature:      s.opts.Temperature,
		FrequencyPenalty: s.opts.FrequencyPenalty,
		PresencePenalty:  s.opts.PresencePenalty,
		TopP:             s.opts.TopP,
		Stream:           true,
	})
}

// BuildContext formats matched sections as source-labelled excerpts for the system prompt.
func BuildContext(matches []models.MatchedSection) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		label := missingCategory
		if m.Category != nil && *m.Category != "" {
			label = "[" + *m.Category + "]"
		} else {
			log.Warn().Str("section_id", m.ID).Str("title", m.Title).Msg("section has no category")
		}
		label += " " + m.Title
		if m.PageNumber != nil && *m.PageNumber > 0 {
			label += ", s. " + strconv.Itoa(*m.PageNumber)
		}
		parts = append(parts, "[Lähde: "+label+"]\n"+m.Content)
	}
	return strings.Join(parts, contextSeparator)
}

func RenderSystemPrompt(contextText string) (string, error) {
	var buf bytes.Buffer
	if err := systemPrompt.Execute(&buf, struct{ Context string }{contextText}); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}
