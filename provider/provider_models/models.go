package provider_models

// Request is one prompt sent to a reasoning backend. Credential, when set,
// overrides the key the client was configured with.
type Request struct {
	System      string
	Prompt      string
	Credential  string
	MaxTokens   int
	Temperature float64
}

// Response is the text produced for a Request.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}
