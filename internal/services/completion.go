package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"

	"github.com/desertthunder/crossfade/internal/shared"
)

const (
	defaultCompletionModel       = "gpt-4o-mini"
	defaultCompletionTemperature = 0.7
)

// CompletionClient answers one free-text prompt.
type CompletionClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// OpenAIClient is a [CompletionClient] backed by an OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *log.Logger
}

var _ CompletionClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAIClient from cfg. httpClient may be nil.
func NewOpenAIClient(cfg shared.AIConfig, httpClient *http.Client, logger *log.Logger) *OpenAIClient {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		conf.HTTPClient = httpClient
	}
	if cfg.Model == "" {
		cfg.Model = defaultCompletionModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultCompletionTemperature
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(conf),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      shared.WithLogger(logger, "service", "ai"),
	}
}

// Complete sends one chat completion and returns the first choice's content, trimmed.
func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: completion: %w", shared.ErrAPIRequest, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", shared.ErrAPIRequest)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("completion answered", "model", c.model, "answer", answer)
	return answer, nil
}
