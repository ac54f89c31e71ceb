package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/civicnav/internal/upstream"
	"github.com/mohammad-safakhou/civicnav/tools/web_search/models"
)

const (
	service         = "brave"
	defaultEndpoint = "https://api.search.brave.com/res/v1/web/search"
	defaultLimit    = 10
	maxLimit        = 20
)

type Client struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

type response struct {
	Web struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (c Client) Search(ctx context.Context, q models.Query) (models.Result, error) {
	// https://api.search.brave.com/app/documentation/web-search
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
	if limit > maxLimit {
		limit = maxLimit
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	text := q.Text
	if q.Location != "" && !strings.Contains(strings.ToLower(text), strings.ToLower(q.Location)) {
		text += " " + q.Location
	}
	params := url.Values{}
	params.Set("q", text)
	params.Set("count", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return models.Result{}, fmt.Errorf("build brave request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", key)

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
	out := models.Result{Provider: service, Query: text}
	for i, r := range raw.Web.Results {
		if i >= limit {
			break
		}
		out.Items = append(out.Items, models.Item{Title: r.Title, URL: r.URL, Snippet: r.Snippet, Position: i + 1})
	}
	return out, nil
}
