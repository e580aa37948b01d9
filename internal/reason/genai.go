package reason

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Compile-time interface check.
var _ Client = (*GenAIClient)(nil)

// GenAIClient implements Client over Google's Gemini API.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient creates a Gemini-backed reasoning client.
func NewGenAIClient(ctx context.Context, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("reason: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("reason: create genai client: %w", err)
	}

	return &GenAIClient{client: client, model: model}, nil
}

// Complete submits a system/user prompt pair and returns the raw text.
func (c *GenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Completion, error) {
	cfg := c.buildConfig(systemPrompt, opts)
	return c.generate(ctx, userPrompt, cfg)
}

// CompleteJSON is Complete with application/json response MIME type set, so
// the model is steered toward a single JSON object.
func (c *GenAIClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Completion, error) {
	cfg := c.buildConfig(systemPrompt, opts)
	cfg.ResponseMIMEType = "application/json"
	return c.generate(ctx, userPrompt, cfg)
}

// CompleteWithSearch runs the instruction with the Google Search tool
// enabled and collects grounding sources from the response metadata.
func (c *GenAIClient) CompleteWithSearch(ctx context.Context, instruction string, opts Options) (*SearchResult, error) {
	cfg := c.buildConfig("", opts)
	cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(instruction), cfg)
	if err != nil {
		return nil, fmt.Errorf("reason: search completion failed: %w", err)
	}

	result := &SearchResult{
		Text:  resp.Text(),
		Usage: usageFrom(resp),
	}

	for _, cand := range resp.Candidates {
		if cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web != nil && chunk.Web.URI != "" {
				result.Sources = append(result.Sources, chunk.Web.URI)
			}
		}
	}

	return result, nil
}

func (c *GenAIClient) buildConfig(systemPrompt string, opts Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		cfg.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	return cfg
}

func (c *GenAIClient) generate(ctx context.Context, userPrompt string, cfg *genai.GenerateContentConfig) (*Completion, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("reason: completion failed: %w", err)
	}
	return &Completion{Text: resp.Text(), Usage: usageFrom(resp)}, nil
}

func usageFrom(resp *genai.GenerateContentResponse) Usage {
	if resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}
