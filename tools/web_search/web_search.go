package web_search

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/civicnav/tools/web_search/brave"
	"github.com/mohammad-safakhou/civicnav/tools/web_search/models"
	"github.com/mohammad-safakhou/civicnav/tools/web_search/serper"
)

// SearchClient issues one web search per call. Implementations are stateless.
type SearchClient interface {
	Search(ctx context.Context, q models.Query) (models.Result, error)
}

type (
	Query  = models.Query
	Item   = models.Item
	Result = models.Result
)

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported search provider")
	ErrNoCredential        = models.ErrNoCredential
)

// Options configures a SearchClient.
type Options struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

func NewSearchClient(provider Provider, opts Options) (SearchClient, error) {
	httpClient := &http.Client{Timeout: opts.Timeout}
	switch provider {
	case SerperProvider:
		return serper.Client{APIKey: opts.APIKey, Endpoint: opts.Endpoint, HTTPClient: httpClient}, nil
	case BraveProvider:
		return brave.Client{APIKey: opts.APIKey, Endpoint: opts.Endpoint, HTTPClient: httpClient}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
