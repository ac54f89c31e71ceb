package models

import "errors"

// ErrNoCredential is returned when neither the per-call nor the configured key is set.
var ErrNoCredential = errors.New("web search: no credential configured")

// Query is one search request. Credential overrides the client's configured key.
type Query struct {
	Text       string
	Limit      int
	Location   string
	Credential string
}

// Item is a single organic result as returned by the provider.
type Item struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// Result is the decoded response to a Query.
type Result struct {
	Provider string `json:"provider"`
	Query    string `json:"query"`
	Items    []Item `json:"items"`
}
