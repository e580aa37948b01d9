// Package reason wraps the reasoning service behind a narrow synchronous
// request interface. Retry and backoff are this collaborator's concern, not
// the pipeline's; the pipeline only sees a completion or an error.
package reason

import "context"

// Options controls a single completion request.
type Options struct {
	Temperature float64
	MaxTokens   int
	// ResponseFormat is "json" to request structured output, empty for text.
	ResponseFormat string
}

// Usage reports token counters for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion is the result of a plain or JSON completion.
type Completion struct {
	Text  string
	Usage Usage
}

// SearchResult is the result of a search-augmented completion: text plus the
// sources the model consulted.
type SearchResult struct {
	Text    string
	Sources []string
	Usage   Usage
}

// Client is the reasoning-service contract consumed by the agent invoker.
type Client interface {
	// Complete submits a system/user prompt pair and returns the text.
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Completion, error)

	// CompleteJSON is Complete with structured (JSON) output requested.
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Completion, error)

	// CompleteWithSearch submits a free-text instruction with web search
	// enabled and returns text plus discovered sources.
	CompleteWithSearch(ctx context.Context, instruction string, opts Options) (*SearchResult, error)
}
