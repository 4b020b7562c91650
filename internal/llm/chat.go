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
)

const (
	DefaultChatBaseURL = "https://models.github.ai/inference"
	DefaultChatModel   = "openai/gpt-4o"
	DefaultTemperature = 0.3

	systemPrompt = "You are an expert SaaS business analyst"
)

// ChatConfig configures an OpenAI-compatible chat completions endpoint
type ChatConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature *float64 // nil selects DefaultTemperature
	MaxTokens   int
	Timeout     time.Duration
}

// ChatClient generates summaries through /chat/completions
type ChatClient struct {
	config ChatConfig
	client *http.Client
}

func NewChatClient(cfg ChatConfig) *ChatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultChatBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Temperature == nil {
		t := DefaultTemperature
		cfg.Temperature = &t
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &ChatClient{config: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *ChatClient) Summarize(ctx context.Context, snap analysis.Snapshot) (string, error) {
	if c.config.APIKey == "" {
		return "", errors.New("chat summarizer: API key is not set")
	}
	prompt, err := BuildPrompt(snap)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: *c.config.Temperature,
		TopP:        1.0,
		MaxTokens:   c.config.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("chat API returned status: %d", resp.StatusCode)
		}
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("chat API returned status: %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("chat API returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
