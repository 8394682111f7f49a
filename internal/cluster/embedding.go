package cluster

import (
	"context"
	"fmt"
	"math"
	"strings"

	"truelens/internal/core"
)

// embeddingTextLimit caps the text sent for embedding; embedding models have
// input token limits and article bodies routinely exceed them.
const embeddingTextLimit = 8000

// Embedder turns text into a vector. Satisfied by the LLM client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbeddingScorer scores article pairs by cosine similarity of their title
// plus body embeddings.
type EmbeddingScorer struct {
	embedder Embedder
}

// NewEmbeddingScorer builds a scorer over the given embedder.
func NewEmbeddingScorer(embedder Embedder) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: embedder}
}

// Similarities embeds every article and returns the symmetric cosine matrix.
// Any embedding failure fails the whole batch: silently scoring a partial
// batch would misplace the unembedded articles.
func (s *EmbeddingScorer) Similarities(ctx context.Context, articles []core.SourceArticle) ([][]float64, error) {
	embeddings := make([][]float64, len(articles))
	for i, article := range articles {
		vec, err := s.embedder.Embed(ctx, embeddingText(article))
		if err != nil {
			return nil, fmt.Errorf("embedding article %s/%s: %w", article.Outlet, article.ExternalID, err)
		}
		embeddings[i] = vec
	}

	scores := make([][]float64, len(articles))
	for i := range scores {
		scores[i] = make([]float64, len(articles))
		scores[i][i] = 1
	}
	for i := 0; i < len(articles); i++ {
		for j := i + 1; j < len(articles); j++ {
			sim := CosineSimilarity(embeddings[i], embeddings[j])
			scores[i][j] = sim
			scores[j][i] = sim
		}
	}

	return scores, nil
}

func embeddingText(article core.SourceArticle) string {
	text := article.Title + "\n\n" + strings.Join(article.Body, "\n")
	if len(text) > embeddingTextLimit {
		text = text[:embeddingTextLimit]
	}
	return text
}

// CosineSimilarity computes the cosine similarity between two vectors,
// returning 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
