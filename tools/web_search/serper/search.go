package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/civicnav/internal/upstream"
	"github.com/mohammad-safakhou/civicnav/tools/web_search/models"
)

const (
	service         = "serper"
	defaultEndpoint = "https://google.serper.dev/search"
	defaultLimit    = 10
)

type Client struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

type payload struct {
	Q        string `json:"q"`
	Num      int    `json:"num"`
	Location string `json:"location,omitempty"`
	GL       string `json:"gl"`
}

type organic struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

type response struct {
	Organic []organic `json:"organic"`
}

func (c Client) Search(ctx context.Context, q models.Query) (models.Result, error) {
	// https://serper.dev/ docs
	key := q.Credential
	if key == "" {
		key = c.APIKey
	}
	if key == "" {
		return models.Result{}, models.ErrNoCredential
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	body, err := json.Marshal(payload{Q: q.Text, Num: limit, Location: q.Location, GL: "us"})
	if err != nil {
		return models.Result{}, fmt.Errorf("marshal serper payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Result{}, fmt.Errorf("build serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return models.Result{}, upstream.Transport(service, err)
	}
	defer resp.Body.Close()
	if err := upstream.FromResponse(service, resp); err != nil {
		return models.Result{}, err
	}

	var raw response
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Result{}, upstream.Decode(service, err)
	}
	out := models.Result{Provider: service, Query: q.Text}
	for i, it := range raw.Organic {
		if i >= limit {
			break
		}
		pos := it.Position
		if pos == 0 {
			pos = i + 1
		}
		out.Items = append(out.Items, models.Item{
			Title:    strings.TrimSpace(it.Title),
			URL:      strings.TrimSpace(it.Link),
			Snippet:  strings.TrimSpace(it.Snippet),
			Position: pos,
		})
	}
	return out, nil
}
