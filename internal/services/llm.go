// Language model client for Groq's OpenAI-compatible endpoint
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/minutes/internal/shared"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqModel   = "llama-3.3-70b-versatile"
)

type completionConfig struct {
	temperature float64
	maxTokens   int
	jsonMode    bool
}

// CompletionOption tunes a single completion.
type CompletionOption func(*completionConfig)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CompletionOption {
	return func(c *completionConfig) { c.temperature = t }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) CompletionOption {
	return func(c *completionConfig) { c.maxTokens = n }
}

// WithJSONMode asks the model for a JSON object response.
func WithJSONMode() CompletionOption {
	return func(c *completionConfig) { c.jsonMode = true }
}

// LLMService implements [LLM] on top of a langchaingo model.
type LLMService struct {
	model     llms.Model
	modelName string
}

// NewLLMService creates a model client from credentials.
//
// Missing credentials are not an error: the returned service reports Available() == false.
func NewLLMService(cfg shared.GroqConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return &LLMService{}, nil
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultGroqModel
	}

	model, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(strings.TrimRight(baseURL, "/")),
		openai.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("create groq model: %w", err)
	}
	return &LLMService{model: model, modelName: modelName}, nil
}

// NewLLMServiceWithModel wraps an already constructed model.
func NewLLMServiceWithModel(model llms.Model, name string) *LLMService {
	return &LLMService{model: model, modelName: name}
}

// Available reports whether a model is configured.
func (s *LLMService) Available() bool {
	return s != nil && s.model != nil
}

// Model returns the configured model name.
func (s *LLMService) Model() string {
	if s == nil {
		return ""
	}
	return s.modelName
}

func callOptions(opts []CompletionOption) []llms.CallOption {
	cfg := completionConfig{temperature: 0.3}
	for _, opt := range opts {
		opt(&cfg)
	}

	callOpts := []llms.CallOption{llms.WithTemperature(cfg.temperature)}
	if cfg.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(cfg.maxTokens))
	}
	if cfg.jsonMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}
	return callOpts
}

// Complete sends a system and user prompt and returns the first choice.
//
// With an empty system prompt it falls back to a single-prompt generation.
func (s *LLMService) Complete(ctx context.Context, system, prompt string, opts ...CompletionOption) (string, error) {
	if !s.Available() {
		return "", shared.ErrLLMUnavailable
	}

	if system == "" {
		out, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt, callOptions(opts)...)
		if err != nil {
			return "", fmt.Errorf("generate: %w", err)
		}
		return out, nil
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := s.model.GenerateContent(ctx, messages, callOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("generate with system: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices", shared.ErrAPIRequest)
	}
	return response.Choices[0].Content, nil
}
