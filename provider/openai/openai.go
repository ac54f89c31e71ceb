package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/civicnav/internal/upstream"
	"github.com/mohammad-safakhou/civicnav/provider/provider_models"
)

const (
	service        = "openai"
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
)

// client implements provider.ReasoningClient using OpenAI's chat completions API
type client struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request represents a request to the OpenAI API
type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// response represents a response from the OpenAI API
type response struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey, model, baseURL string, temperature float64, maxTokens int, httpClient *http.Client) *client {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{
		apiKey:      apiKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  httpClient,
	}
}

// Call sends one system+user exchange and returns the first choice.
func (c *client) Call(ctx context.Context, in provider_models.Request) (provider_models.Response, error) {
	key := in.Credential
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return provider_models.Response{}, &upstream.InvalidCredentialsError{Service: service}
	}

	body := request{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if in.Temperature > 0 {
		body.Temperature = in.Temperature
	}
	if in.MaxTokens > 0 {
		body.MaxTokens = in.MaxTokens
	}
	if in.System != "" {
		body.Messages = append(body.Messages, Message{Role: "system", Content: in.System})
	}
	body.Messages = append(body.Messages, Message{Role: "user", Content: in.Prompt})

	jsonData, err := json.Marshal(body)
	if err != nil {
		return provider_models.Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return provider_models.Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider_models.Response{}, upstream.Transport(service, err)
	}
	defer resp.Body.Close()
	if err := upstream.FromResponse(service, resp); err != nil {
		return provider_models.Response{}, err
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return provider_models.Response{}, upstream.Decode(service, err)
	}
	if len(out.Choices) == 0 {
		return provider_models.Response{}, upstream.Decode(service, errors.New("no choices in response"))
	}
	return provider_models.Response{
		Text:         strings.TrimSpace(out.Choices[0].Message.Content),
		Model:        out.Model,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
	}, nil
}
