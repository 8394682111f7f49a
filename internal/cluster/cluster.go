package cluster

import (
	"context"
	"fmt"
	"log/slog"

	"truelens/internal/core"
	"truelens/internal/logger"
)

// Scorer produces the pairwise similarity matrix for a batch of articles.
// scores[i][j] must be symmetric and in [0,1]. The scoring mechanism is
// pluggable; a scorer failure means the whole clustering step cannot run.
type Scorer interface {
	Similarities(ctx context.Context, articles []core.SourceArticle) ([][]float64, error)
}

// Engine partitions articles into clusters of same-event coverage. Two
// articles land in the same cluster iff a similarity chain above the
// threshold connects them: grouping is transitive, not pairwise-exact.
// Articles that match no other article fall into the outlier bucket.
type Engine struct {
	scorer    Scorer
	threshold float64
	log       *slog.Logger
}

// NewEngine builds a clustering engine. Thresholds outside (0,1) fall back
// to 0.7.
func NewEngine(scorer Scorer, threshold float64) *Engine {
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.7
	}
	return &Engine{scorer: scorer, threshold: threshold, log: logger.Get()}
}

// Cluster groups the batch by transitive similarity. Cluster ids are assigned
// in first-appearance order, so output is deterministic for a given input
// order and score matrix.
func (e *Engine) Cluster(ctx context.Context, articles []core.SourceArticle) (map[core.ClusterKey][]core.SourceArticle, error) {
	result := make(map[core.ClusterKey][]core.SourceArticle)
	if len(articles) == 0 {
		return result, nil
	}

	scores, err := e.scorer.Similarities(ctx, articles)
	if err != nil {
		return nil, fmt.Errorf("similarity scoring: %w", err)
	}
	if len(scores) != len(articles) {
		return nil, fmt.Errorf("similarity scoring: got %d rows for %d articles", len(scores), len(articles))
	}

	uf := newUnionFind(len(articles))
	for i := 0; i < len(articles); i++ {
		if len(scores[i]) != len(articles) {
			return nil, fmt.Errorf("similarity scoring: row %d has %d columns", i, len(scores[i]))
		}
		for j := i + 1; j < len(articles); j++ {
			if scores[i][j] > e.threshold {
				uf.union(i, j)
			}
		}
	}

	// Group by root; singletons go to the outlier bucket.
	groups := make(map[int][]int)
	for i := range articles {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	nextID := 0
	assigned := make(map[int]core.ClusterKey)
	for i := range articles {
		root := uf.find(i)
		key, ok := assigned[root]
		if !ok {
			if len(groups[root]) < 2 {
				key = core.Outlier()
			} else {
				key = core.Cluster(nextID)
				nextID++
			}
			assigned[root] = key
		}
		result[key] = append(result[key], articles[i])
	}

	e.log.Info("clustering completed",
		"articles", len(articles),
		"clusters", nextID,
		"outliers", len(result[core.Outlier()]))

	return result, nil
}

// unionFind is a disjoint set with path compression and union by rank.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}
