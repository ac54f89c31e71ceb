package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	anthropic_provider "github.com/mohammad-safakhou/civicnav/provider/anthropic"
	openai_provider "github.com/mohammad-safakhou/civicnav/provider/openai"
	"github.com/mohammad-safakhou/civicnav/provider/provider_models"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

type (
	Request  = provider_models.Request
	Response = provider_models.Response
)

// ReasoningClient is the interface that all LLM implementations must satisfy.
// Implementations are stateless and safe for concurrent use.
type ReasoningClient interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Options configures a ReasoningClient.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

// NewReasoningClient creates a new LLM client based on the provided configuration
func NewReasoningClient(client Client, opts Options) (ReasoningClient, error) {
	httpClient := &http.Client{Timeout: opts.Timeout}
	switch client {
	case OpenAI:
		return openai_provider.NewOpenAIClient(opts.APIKey, opts.Model, opts.BaseURL, opts.Temperature, opts.MaxTokens, httpClient), nil
	case Anthropic:
		return anthropic_provider.NewAnthropicClient(opts.APIKey, opts.Model, opts.BaseURL, opts.Temperature, opts.MaxTokens, httpClient), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
