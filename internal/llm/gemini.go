package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"truelens/internal/config"
)

// Request is one schema-constrained completion call.
type Request struct {
	Model       string
	Temperature float32
	System      string
	User        string
	Schema      *genai.Schema
}

// Completer produces JSON text constrained by a response schema. The Gemini
// implementation is the production backend; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Gemini is the production Completer and Embedder backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	cfg    config.Gemini
}

// NewGemini creates the Gemini backend. The API key is taken from the config,
// the GEMINI_API_KEY environment variable, or viper, in that order.
func NewGemini(ctx context.Context, cfg config.Gemini) (*Gemini, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		if apiKey = os.Getenv("GEMINI_API_KEY"); apiKey == "" {
			apiKey = viper.GetString("gemini.api_key")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required: set GEMINI_API_KEY or gemini.api_key in the config file")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{client: client, cfg: cfg}, nil
}

// Complete generates a JSON response conforming to req.Schema.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.User}},
		Role:  "user",
	}}

	temp := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", req.Model)
	}

	return text, nil
}

// Embed generates a vector embedding for the given text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float64, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}

	dims := g.cfg.EmbeddingDimensions
	resp, err := g.client.Models.EmbedContent(ctx, g.cfg.EmbeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned")
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, v := range values {
		embedding[i] = float64(v)
	}

	return embedding, nil
}
