package compare

import (
	"context"
	"fmt"

	"docbench/internal/domain"
	"docbench/internal/embedding"
)

// DefaultThreshold is the minimum cosine similarity for a semantic match.
const DefaultThreshold = 0.75

// Embedder turns a normalized leaf into a sentence embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SemanticMatcher treats two leaves as equal when the cosine similarity of
// their embeddings reaches the threshold. It tolerates paraphrases such as
// "01/02/2024" vs "1 Feb 2024" that exact matching would reject.
//
// Empty values never match semantically, not even each other; the
// empty/empty case is decided by Compare.
type SemanticMatcher struct {
	embedder  Embedder
	threshold float64
}

// NewSemanticMatcher creates a SemanticMatcher. A non-positive threshold
// selects DefaultThreshold.
func NewSemanticMatcher(embedder Embedder, threshold float64) *SemanticMatcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &SemanticMatcher{embedder: embedder, threshold: threshold}
}

func (m *SemanticMatcher) Name() string { return ModeSemantic }

// Threshold returns the configured similarity threshold.
func (m *SemanticMatcher) Threshold() float64 { return m.threshold }

func (m *SemanticMatcher) Match(ctx context.Context, expected, predicted Value) (bool, error) {
	a, b := Normalize(expected), Normalize(predicted)
	if a == "" || b == "" {
		return false, nil
	}
	if a == b {
		return true, nil
	}
	sim, err := m.Similarity(ctx, a, b)
	if err != nil {
		return false, err
	}
	return sim >= m.threshold, nil
}

// Similarity returns the cosine similarity of the embeddings of a and b.
func (m *SemanticMatcher) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := m.embedder.Embed(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("%w: embedding %q: %v", domain.ErrComparison, a, err)
	}
	vb, err := m.embedder.Embed(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("%w: embedding %q: %v", domain.ErrComparison, b, err)
	}
	return embedding.CosineSimilarity(va, vb), nil
}
