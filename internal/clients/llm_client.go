package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/asterbot/pkg/retrier"
)

const (
	// DefaultLLMURL is the DeepSeek chat completions endpoint.
	DefaultLLMURL = "https://api.deepseek.com/chat/completions"
	// DefaultLLMModel is the model used when none is configured.
	DefaultLLMModel = "deepseek-chat"

	defaultLLMTimeout     = 30 * time.Second
	defaultLLMMaxRetries  = 2
	defaultLLMRetryDelay  = 2 * time.Second
	defaultLLMTemperature = 0.1
	defaultLLMMaxTokens   = 1000
)

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// Chat sends a system and a user message and returns the assistant reply.
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type OpenAICompatibleClient struct {
	apiURL      string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	retrier     *retrier.Retrier
}

// LLMOption configures an OpenAICompatibleClient.
type LLMOption func(*OpenAICompatibleClient)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) LLMOption {
	return func(c *OpenAICompatibleClient) {
		c.temperature = t
	}
}

// WithLLMRetry overrides retry behaviour.
func WithLLMRetry(maxRetries int, delay time.Duration) LLMOption {
	return func(c *OpenAICompatibleClient) {
		c.retrier = newLLMRetrier(maxRetries, delay)
	}
}

// WithLLMHTTPClient overrides the HTTP client.
func WithLLMHTTPClient(client *http.Client) LLMOption {
	return func(c *OpenAICompatibleClient) {
		c.httpClient = client
	}
}

// NewOpenAICompatibleClient creates a new client for OpenAI-compatible APIs
func NewOpenAICompatibleClient(apiURL, apiKey, model string, opts ...LLMOption) *OpenAICompatibleClient {
	if apiURL == "" {
		apiURL = DefaultLLMURL
	}
	if model == "" {
		model = DefaultLLMModel
	}

	c := &OpenAICompatibleClient{
		apiURL:      apiURL,
		apiKey:      apiKey,
		model:       model,
		temperature: defaultLLMTemperature,
		httpClient: &http.Client{
			Timeout: defaultLLMTimeout,
		},
		retrier: newLLMRetrier(defaultLLMMaxRetries, defaultLLMRetryDelay),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func newLLMRetrier(maxRetries int, delay time.Duration) *retrier.Retrier {
	return retrier.New(
		retrier.WithMaxRetries(maxRetries),
		retrier.WithInitialInterval(delay),
		retrier.WithMultiplier(1),
		retrier.WithRetryIf(func(err error) bool {
			var statusErr *llmStatusError
			if errors.As(err, &statusErr) {
				return statusErr.status == http.StatusTooManyRequests || statusErr.status >= http.StatusInternalServerError
			}
			return true
		}),
	)
}

// chatRequest represents the request structure for OpenAI-compatible APIs
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the response structure from OpenAI-compatible APIs
type chatResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []choice  `json:"choices"`
	Usage   usage     `json:"usage"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

type llmStatusError struct {
	status int
	body   string
}

func (e *llmStatusError) Error() string {
	return fmt.Sprintf("LLM API returned status %d: %s", e.status, e.body)
}

// Chat sends the prompts to the LLM API and returns the first choice's content.
func (c *OpenAICompatibleClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("LLM API key is empty")
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{
				Role:    "system",
				Content: systemPrompt,
			},
			{
				Role:    "user",
				Content: userPrompt,
			},
		},
		Temperature: c.temperature,
		MaxTokens:   defaultLLMMaxTokens,
	}

	response, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (string, error) {
		return c.sendRequest(ctx, reqBody)
	})
	if err != nil {
		return "", errors.Wrap(err, "LLM chat failed")
	}

	return response, nil
}

func (c *OpenAICompatibleClient) sendRequest(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", errors.Wrap(err, "failed to create HTTP request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return "", &llmStatusError{status: resp.StatusCode, body: string(body)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal response")
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("LLM API error: %s (type: %s, code: %v)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code)
	}

	if len(chatResp.Choices) == 0 {
		return "", errors.New("LLM API returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}
