package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Pland4r/project-ai/internal/analysis"
	"github.com/Pland4r/project-ai/internal/config"
)

// ErrDisabled is returned by the Disabled summarizer
var ErrDisabled = errors.New("summary generation is disabled")

// Summarizer turns a metrics snapshot into a written analysis
type Summarizer interface {
	Summarize(ctx context.Context, snap analysis.Snapshot) (string, error)
}

// Disabled is a Summarizer that always fails with ErrDisabled
type Disabled struct{}

func (Disabled) Summarize(context.Context, analysis.Snapshot) (string, error) {
	return "", ErrDisabled
}

// SummaryOrPlaceholder never fails: errors become a readable placeholder so
// that the numeric result is still returned to the caller.
func SummaryOrPlaceholder(ctx context.Context, s Summarizer, snap analysis.Snapshot) string {
	if s == nil {
		s = Disabled{}
	}
	text, err := s.Summarize(ctx, snap)
	if err != nil {
		return fmt.Sprintf("AI summary unavailable: %v", err)
	}
	return text
}

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaClient generates summaries with a local Ollama server
type OllamaClient struct {
	config Config
	client *http.Client
}

func NewOllamaClient(cfg Config) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen3-vl:2b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OllamaClient{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

// Summarize sends the analyst prompt to /api/generate
func (o *OllamaClient) Summarize(ctx context.Context, snap analysis.Snapshot) (string, error) {
	prompt, err := BuildPrompt(snap)
	if err != nil {
		return "", err
	}
	return o.Generate(ctx, prompt)
}

// Generate calls the Ollama API
func (o *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := GenerateRequest{
		Model:  o.config.Model,
		Prompt: prompt,
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}

	return genResp.Response, nil
}

// Provider names accepted by New
const (
	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderChat   = "openai"
)

// New builds the summarizer for a provider name. An empty name disables
// summaries.
func New(provider string, ollama Config, chat ChatConfig) (Summarizer, error) {
	switch provider {
	case "", ProviderNone:
		return Disabled{}, nil
	case ProviderOllama:
		return NewOllamaClient(ollama), nil
	case ProviderChat:
		return NewChatClient(chat), nil
	default:
		return nil, fmt.Errorf("unknown summary provider %q", provider)
	}
}

// FromConfig builds the summarizer selected by the summary config section
func FromConfig(c config.SummaryConfig) (Summarizer, error) {
	return New(c.Provider,
		Config{
			BaseURL: c.OllamaBaseURL,
			Model:   c.OllamaModel,
			Timeout: c.Timeout(),
		},
		ChatConfig{
			BaseURL:     c.BaseURL,
			Model:       c.Model,
			APIKey:      c.APIKey,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			Timeout:     c.Timeout(),
		},
	)
}
