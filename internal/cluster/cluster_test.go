package cluster

import (
	"context"
	"errors"
	"testing"

	"truelens/internal/core"
)

type matrixScorer struct {
	scores [][]float64
	err    error
}

func (m *matrixScorer) Similarities(ctx context.Context, articles []core.SourceArticle) ([][]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.scores, nil
}

func titled(titles ...string) []core.SourceArticle {
	articles := make([]core.SourceArticle, len(titles))
	for i, title := range titles {
		articles[i] = core.SourceArticle{ExternalID: title, Title: title}
	}
	return articles
}

func TestCluster_TransitiveGrouping(t *testing.T) {
	// A~B and B~C exceed the threshold but A~C does not. Transitivity still
	// puts all three in one cluster.
	scorer := &matrixScorer{scores: [][]float64{
		{1.0, 0.8, 0.1},
		{0.8, 1.0, 0.8},
		{0.1, 0.8, 1.0},
	}}
	engine := NewEngine(scorer, 0.7)

	got, err := engine.Cluster(context.Background(), titled("a", "b", "c"))
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	members := got[core.Cluster(0)]
	if len(members) != 3 {
		t.Fatalf("expected all 3 articles in cluster 0, got %d", len(members))
	}
	if len(got[core.Outlier()]) != 0 {
		t.Errorf("expected no outliers, got %d", len(got[core.Outlier()]))
	}
}

func TestCluster_SingletonsAreOutliers(t *testing.T) {
	scorer := &matrixScorer{scores: [][]float64{
		{1.0, 0.9, 0.0, 0.0},
		{0.9, 1.0, 0.0, 0.0},
		{0.0, 0.0, 1.0, 0.0},
		{0.0, 0.0, 0.0, 1.0},
	}}
	engine := NewEngine(scorer, 0.7)

	got, err := engine.Cluster(context.Background(), titled("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	if len(got[core.Cluster(0)]) != 2 {
		t.Errorf("expected cluster 0 to have 2 articles, got %d", len(got[core.Cluster(0)]))
	}
	outliers := got[core.Outlier()]
	if len(outliers) != 2 {
		t.Fatalf("expected 2 outliers, got %d", len(outliers))
	}
	seen := map[string]bool{}
	for _, a := range outliers {
		seen[a.ExternalID] = true
	}
	if !seen["c"] || !seen["d"] {
		t.Errorf("expected c and d in the outlier bucket, got %v", seen)
	}
}

func TestCluster_ThresholdIsExclusive(t *testing.T) {
	// A score exactly at the threshold must not join articles.
	scorer := &matrixScorer{scores: [][]float64{
		{1.0, 0.7},
		{0.7, 1.0},
	}}
	engine := NewEngine(scorer, 0.7)

	got, err := engine.Cluster(context.Background(), titled("a", "b"))
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(got[core.Outlier()]) != 2 {
		t.Errorf("expected both articles in the outlier bucket, got %d", len(got[core.Outlier()]))
	}
}

func TestCluster_ClusterIDsFollowAppearanceOrder(t *testing.T) {
	// Two separate pairs; the pair containing the first article gets id 0.
	scorer := &matrixScorer{scores: [][]float64{
		{1.0, 0.0, 0.9, 0.0},
		{0.0, 1.0, 0.0, 0.9},
		{0.9, 0.0, 1.0, 0.0},
		{0.0, 0.9, 0.0, 1.0},
	}}
	engine := NewEngine(scorer, 0.7)

	got, err := engine.Cluster(context.Background(), titled("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	first := got[core.Cluster(0)]
	if len(first) != 2 || first[0].ExternalID != "a" {
		t.Errorf("expected cluster 0 to start with article a, got %+v", first)
	}
	second := got[core.Cluster(1)]
	if len(second) != 2 || second[0].ExternalID != "b" {
		t.Errorf("expected cluster 1 to start with article b, got %+v", second)
	}
}

func TestCluster_EmptyInput(t *testing.T) {
	engine := NewEngine(&matrixScorer{}, 0.7)

	got, err := engine.Cluster(context.Background(), nil)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d buckets", len(got))
	}
}

func TestCluster_ScorerFailureAborts(t *testing.T) {
	boom := errors.New("embedding service down")
	engine := NewEngine(&matrixScorer{err: boom}, 0.7)

	_, err := engine.Cluster(context.Background(), titled("a", "b"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected scorer error, got %v", err)
	}
}

func TestCluster_RejectsMalformedMatrix(t *testing.T) {
	scorer := &matrixScorer{scores: [][]float64{{1.0}}}
	engine := NewEngine(scorer, 0.7)

	if _, err := engine.Cluster(context.Background(), titled("a", "b")); err == nil {
		t.Fatal("expected error for wrong matrix dimensions")
	}
}

func TestNewEngine_BadThresholdFallsBack(t *testing.T) {
	for _, threshold := range []float64{-0.1, 0, 1, 1.5} {
		engine := NewEngine(&matrixScorer{}, threshold)
		if engine.threshold != 0.7 {
			t.Errorf("threshold %v: expected fallback to 0.7, got %v", threshold, engine.threshold)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"length mismatch", []float64{1, 0}, []float64{1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
