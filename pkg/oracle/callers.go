package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderNone      = "none"
)

// ErrUnsupportedProvider is returned for an unknown provider name.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// CallerConfig holds configuration for creating an LLM caller.
type CallerConfig struct {
	Provider string // "openai", "anthropic", "ollama" or "none"
	Model    string // e.g. "gpt-4o-mini", "claude-haiku-4-5-20251001"
	APIKey   string // explicit API key (highest priority)
	BaseURL  string // override base URL

	// HTTPClient overrides the client used by the raw HTTP callers.
	HTTPClient *http.Client
}

// HasCredentials reports whether a caller can be built from cfg without
// reaching for a provider that needs a key it does not have.
func HasCredentials(cfg CallerConfig) bool {
	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderNone:
		return false
	case ProviderOllama:
		return true
	}
	if cfg.APIKey != "" {
		return true
	}
	return resolveAPIKeyFromEnv(provider) != ""
}

// NewCaller creates a CallFunc for the configured provider.
// Resolution order for the API key:
//  1. Explicit APIKey in config
//  2. Environment variables (OPENAI_API_KEY / ANTHROPIC_API_KEY)
//
// Provider "none" yields ErrUnavailable, as does a keyed provider with no key;
// callers run without an oracle in that case.
func NewCaller(cfg CallerConfig) (CallFunc, error) {
	provider := strings.ToLower(cfg.Provider)
	model := cfg.Model

	if provider == ProviderNone {
		return nil, ErrUnavailable
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = resolveAPIKeyFromEnv(provider)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	switch provider {
	case ProviderOpenAI, "":
		if apiKey == "" {
			return nil, fmt.Errorf("%w: no API key for openai", ErrUnavailable)
		}
		if model == "" {
			model = "gpt-4o-mini"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		return newOpenAICaller(httpClient, apiKey, model, baseURL), nil

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("%w: no API key for anthropic", ErrUnavailable)
		}
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return newAnthropicCaller(apiKey, model, cfg.BaseURL), nil

	case ProviderOllama:
		if model == "" {
			model = "llama3.2"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return newOllamaCaller(httpClient, model, baseURL), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

func resolveAPIKeyFromEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI, "":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

// --- OpenAI caller ---

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	ResponseFormat *openAIRespFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRespFormat struct {
	Type string `json:"type"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newOpenAICaller(client *http.Client, apiKey, model, baseURL string) CallFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		reqBody := openAIRequest{
			Model: model,
			Messages: []openAIMessage{
				{Role: "system", Content: SystemPrompt},
				{Role: "user", Content: prompt},
			},
			ResponseFormat: &openAIRespFormat{Type: "json_object"},
		}

		headers := map[string]string{"Authorization": "Bearer " + apiKey}
		body, err := postJSON(ctx, client, baseURL+"/v1/chat/completions", headers, reqBody)
		if err != nil {
			return "", fmt.Errorf("openai %w", err)
		}

		var result openAIResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return "", fmt.Errorf("unmarshal response: %w", err)
		}

		if result.Error != nil {
			return "", fmt.Errorf("openai error: %s", result.Error.Message)
		}

		if len(result.Choices) == 0 {
			return "", errors.New("openai returned no choices")
		}

		return result.Choices[0].Message.Content, nil
	}
}

// --- Anthropic caller ---

func newAnthropicCaller(apiKey, model, baseURL string) CallFunc {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// One attempt per window; the compactor falls back instead of retrying.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)

	return func(ctx context.Context, prompt string) (string, error) {
		message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: 1024,
			System: []anthropic.TextBlockParam{
				{Text: SystemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt + "\n\nReturn ONLY valid JSON, no markdown or extra text.")),
			},
		})
		if err != nil {
			return "", fmt.Errorf("anthropic request: %w", err)
		}

		var text strings.Builder
		for _, block := range message.Content {
			if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
				text.WriteString(tb.Text)
			}
		}

		if text.Len() == 0 {
			return "", errors.New("anthropic returned no content")
		}

		return text.String(), nil
	}
}

// --- Ollama caller ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format"`
}

type ollamaChatResponse struct {
	Message openAIMessage `json:"message"`
	Done    bool          `json:"done"`
}

func newOllamaCaller(client *http.Client, model, baseURL string) CallFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		reqBody := ollamaChatRequest{
			Model: model,
			Messages: []openAIMessage{
				{Role: "system", Content: SystemPrompt},
				{Role: "user", Content: prompt},
			},
			Stream: false,
			Format: "json",
		}

		body, err := postJSON(ctx, client, baseURL+"/api/chat", nil, reqBody)
		if err != nil {
			return "", fmt.Errorf("ollama %w", err)
		}

		var result ollamaChatResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return "", fmt.Errorf("unmarshal response: %w", err)
		}

		return result.Message.Content, nil
	}
}

// postJSON posts payload as JSON and returns the body of a 200 response.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
