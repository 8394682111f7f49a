package cluster

import (
	"context"
	"errors"
	"strings"
	"testing"

	"truelens/internal/core"
)

type fakeEmbedder struct {
	vectors map[string][]float64
	failOn  string
	calls   []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls = append(f.calls, text)
	for key, vec := range f.vectors {
		if strings.HasPrefix(text, key) {
			return vec, nil
		}
	}
	if f.failOn != "" && strings.HasPrefix(text, f.failOn) {
		return nil, errors.New("embed failed")
	}
	return []float64{0, 0, 1}, nil
}

func TestEmbeddingScorer_Similarities(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"flood warning": {1, 0, 0},
		"flood alert":   {1, 0, 0},
		"cricket win":   {0, 1, 0},
	}}
	scorer := NewEmbeddingScorer(embedder)

	articles := []core.SourceArticle{
		{Title: "flood warning", Body: []string{"rivers rising"}},
		{Title: "flood alert", Body: []string{"rivers rising fast"}},
		{Title: "cricket win", Body: []string{"six wickets"}},
	}

	scores, err := scorer.Similarities(context.Background(), articles)
	if err != nil {
		t.Fatalf("Similarities failed: %v", err)
	}

	if scores[0][0] != 1 {
		t.Errorf("diagonal should be 1, got %v", scores[0][0])
	}
	if scores[0][1] < 0.99 {
		t.Errorf("identical flood vectors should score ~1, got %v", scores[0][1])
	}
	if scores[0][2] > 0.01 {
		t.Errorf("flood vs cricket should score ~0, got %v", scores[0][2])
	}
	if scores[1][2] != scores[2][1] {
		t.Errorf("matrix should be symmetric: %v vs %v", scores[1][2], scores[2][1])
	}
}

func TestEmbeddingScorer_FailureFailsBatch(t *testing.T) {
	embedder := &fakeEmbedder{failOn: "bad article"}
	scorer := NewEmbeddingScorer(embedder)

	articles := []core.SourceArticle{
		{Title: "good article"},
		{Title: "bad article"},
	}

	if _, err := scorer.Similarities(context.Background(), articles); err == nil {
		t.Fatal("expected error when an embedding fails")
	}
}

func TestEmbeddingScorer_TruncatesLongText(t *testing.T) {
	embedder := &fakeEmbedder{}
	scorer := NewEmbeddingScorer(embedder)

	long := strings.Repeat("x", embeddingTextLimit*2)
	articles := []core.SourceArticle{{Title: "t", Body: []string{long}}}

	if _, err := scorer.Similarities(context.Background(), articles); err != nil {
		t.Fatalf("Similarities failed: %v", err)
	}
	if len(embedder.calls) != 1 {
		t.Fatalf("expected 1 embed call, got %d", len(embedder.calls))
	}
	if len(embedder.calls[0]) != embeddingTextLimit {
		t.Errorf("expected embed text capped at %d, got %d", embeddingTextLimit, len(embedder.calls[0]))
	}
}
