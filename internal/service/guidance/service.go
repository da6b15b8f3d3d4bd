package guidance

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/astrovoice/kundli/backend/internal/config"
	"github.com/astrovoice/kundli/backend/internal/model/astrologer"
	"github.com/astrovoice/kundli/backend/internal/model/chat"
)

// Service generates astrologer-voiced responses for consultations.
type Service struct {
	client  *openai.Client
	cfg     config.GuidanceConfig
	prompts *PromptManager
}

// NewService creates the guidance service from configuration.
func NewService(cfg config.GuidanceConfig) (*Service, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("guidance credentials missing: set OPENAI_API_KEY and GUIDANCE_MODEL")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Service{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		prompts: NewPromptManager(),
	}, nil
}

// GenerateResponse produces one astrologer reply for the conversation so far.
func (s *Service) GenerateResponse(ctx context.Context, sessionID string, astro *astrologer.Astrologer, history []chat.Message, userText string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    s.cfg.Model,
		Messages: s.buildMessages(astro, history, userText),
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	text := resp.Choices[0].Message.Content
	log.Printf("[guidance] generated response session=%s astrologer=%s length=%d", sessionID, astro.ID, len(text))
	return text, nil
}

// StreamResponse streams reply chunks for the SSE endpoint. The caller owns
// the returned stream and must Close it.
func (s *Service) StreamResponse(ctx context.Context, astro *astrologer.Astrologer, history []chat.Message, userText string) (*openai.ChatCompletionStream, error) {
	req := openai.ChatCompletionRequest{
		Model:    s.cfg.Model,
		Messages: s.buildMessages(astro, history, userText),
		Stream:   true,
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion stream failed: %w", err)
	}
	return stream, nil
}

func (s *Service) buildMessages(astro *astrologer.Astrologer, history []chat.Message, userText string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.prompts.BuildSystemPrompt(astro),
	})

	startIdx := 0
	if len(history) > s.cfg.HistoryLimit {
		startIdx = len(history) - s.cfg.HistoryLimit
	}
	for _, msg := range history[startIdx:] {
		switch msg.Sender {
		case chat.SenderUser:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		case chat.SenderAstrologer:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			})
		}
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})
	return messages
}
