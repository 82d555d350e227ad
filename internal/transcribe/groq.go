package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// GroqProvider transcribes audio through Groq's OpenAI-compatible whisper
// endpoint. Any OpenAI-compatible server works by pointing BaseURL at it.
type GroqProvider struct {
	client *openai.Client
	model  string
	// Language hints the model; empty means auto-detect.
	language string
	prompt   string
}

// GroqConfig holds provider connection settings.
type GroqConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Prompt   string
	// Timeout bounds one HTTP round-trip to the provider. Zero means no
	// client-side bound beyond the caller's context.
	Timeout time.Duration
}

// NewGroqProvider creates a provider client. The API key must be set.
func NewGroqProvider(cfg GroqConfig) (*GroqProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("transcription provider API key not set")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &GroqProvider{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    cfg.Model,
		language: cfg.Language,
		prompt:   cfg.Prompt,
	}, nil
}

// Transcribe sends one buffer and maps the verbose response into a Result.
// Segment boundaries are rounded to a tenth of a second and text is trimmed.
func (p *GroqProvider) Transcribe(ctx context.Context, req Request) (*Result, error) {
	audioReq := openai.AudioRequest{
		Model:    p.model,
		Reader:   bytes.NewReader(req.Audio),
		FilePath: req.Filename,
		Language: p.language,
		Prompt:   p.prompt,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	resp, err := p.client.CreateTranscription(ctx, audioReq)
	if err != nil {
		return nil, fmt.Errorf("createTranscription failed: %w", err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, Segment{
			Start: math.Round(s.Start*10) / 10,
			End:   math.Round(s.End*10) / 10,
			Text:  strings.TrimSpace(s.Text),
		})
	}

	return &Result{
		Text:     strings.TrimSpace(resp.Text),
		Segments: segments,
	}, nil
}
