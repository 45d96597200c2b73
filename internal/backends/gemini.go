// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backends

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const systemInstruction = "You are a market research analyst. Answer only from the data you are given and never invent identifiers."

// Gemini is the llm backend.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini client. baseURL overrides the API endpoint
// and is empty outside tests.
func NewGemini(ctx context.Context, cfg types.AIConfig, httpClient *http.Client, baseURL string) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, temperature: 0.2}, nil
}

// Generate sends the prompt and returns the model's text.
func (g *Gemini) Generate(ctx context.Context, req types.LLMRequest) (types.LLMResponse, error) {
	if req.Prompt == "" {
		return types.LLMResponse{}, tool.Permanent(errors.New("empty prompt"))
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(g.temperature),
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return types.LLMResponse{}, classifyGenAI(err)
	}
	text := resp.Text()
	if text == "" {
		// Empty candidates come from safety filters or overload; another
		// attempt usually succeeds.
		return types.LLMResponse{}, tool.Transient(fmt.Errorf("gemini returned no text for task %s", req.Task))
	}
	return types.LLMResponse{Text: text}, nil
}

// Tool returns the backend as the llm tool.
func (g *Gemini) Tool() tool.Tool {
	return tool.Typed(types.ToolLLM, g.Generate)
}

// classifyGenAI marks API errors by status code: 408, 429, and 5xx are
// transient, other API errors permanent. Transport errors are left to the
// invoker's default classification.
func classifyGenAI(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusRequestTimeout,
		apiErr.Code == http.StatusTooManyRequests,
		apiErr.Code >= http.StatusInternalServerError:
		return tool.Transient(err)
	default:
		return tool.Permanent(err)
	}
}
