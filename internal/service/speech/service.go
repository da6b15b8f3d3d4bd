package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/astrovoice/kundli/backend/internal/config"
)

// Service abstracts the speech provider so handlers can be tested with stubs.
type Service interface {
	// Transcribe converts recorded audio to text. format is the container
	// extension without the dot (m4a, wav, mp3, webm).
	Transcribe(ctx context.Context, sessionID string, audioData []byte, format string) (string, error)
	// Synthesize converts text to audio and reports the audio format produced.
	Synthesize(ctx context.Context, sessionID, text string) ([]byte, string, error)
}

// OpenAIService implements Service with whisper transcription and TTS.
type OpenAIService struct {
	client *openai.Client
	cfg    config.SpeechConfig
}

// NewOpenAIService creates the speech service from configuration.
func NewOpenAIService(cfg config.SpeechConfig) (*OpenAIService, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("speech credentials missing: set SPEECH_API_KEY or OPENAI_API_KEY")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIService{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

func (s *OpenAIService) Transcribe(ctx context.Context, sessionID string, audioData []byte, format string) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("empty audio payload")
	}
	if format == "" {
		format = "m4a"
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audioData),
		FilePath: "recording." + format,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	log.Printf("[speech] transcribed session=%s bytes=%d chars=%d", sessionID, len(audioData), len(resp.Text))
	return resp.Text, nil
}

func (s *OpenAIService) Synthesize(ctx context.Context, sessionID, text string) ([]byte, string, error) {
	if text == "" {
		return nil, "", fmt.Errorf("empty synthesis text")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.SpeechVoice(s.cfg.TTSVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, "", fmt.Errorf("synthesis failed: %w", err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, "", fmt.Errorf("reading synthesis output failed: %w", err)
	}

	log.Printf("[speech] synthesized session=%s chars=%d bytes=%d", sessionID, len(text), len(audioData))
	return audioData, "mp3", nil
}
