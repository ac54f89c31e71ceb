package anthropic_provider

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
	service          = "anthropic"
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-haiku-4-5"
	defaultMaxTokens = 1024
	apiVersion       = "2023-06-01"
)

// client implements provider.ReasoningClient using the Anthropic messages API
type client struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type response struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(apiKey, model, baseURL string, temperature float64, maxTokens int, httpClient *http.Client) *client {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
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

// Call sends the prompt as a single user message and joins the text blocks of the reply.
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
		System:      in.System,
		Messages:    []message{{Role: "user", Content: in.Prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if in.MaxTokens > 0 {
		body.MaxTokens = in.MaxTokens
	}
	if in.Temperature > 0 {
		body.Temperature = in.Temperature
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return provider_models.Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return provider_models.Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", apiVersion)

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
	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return provider_models.Response{}, upstream.Decode(service, errors.New("no text content in response"))
	}
	return provider_models.Response{
		Text:         strings.TrimSpace(text.String()),
		Model:        out.Model,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
	}, nil
}
