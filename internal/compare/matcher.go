package compare

import (
	"context"
	"fmt"

	"docbench/internal/domain"
)

// Matcher decides whether an expected and a predicted leaf are equivalent.
// Implementations must be safe for concurrent use.
type Matcher interface {
	Name() string
	Match(ctx context.Context, expected, predicted Value) (bool, error)
}

// Matcher modes accepted by NewMatcher.
const (
	ModeExact    = "exact"
	ModeSemantic = "semantic"
)

// ExactMatcher matches leaves whose normalized forms are identical.
type ExactMatcher struct{}

func (ExactMatcher) Name() string { return ModeExact }

func (ExactMatcher) Match(_ context.Context, expected, predicted Value) (bool, error) {
	return Normalize(expected) == Normalize(predicted), nil
}

// NewMatcher builds the matcher for the configured mode. The semantic mode
// requires an embedder.
func NewMatcher(mode string, threshold float64, embedder Embedder) (Matcher, error) {
	switch mode {
	case "", ModeExact:
		return ExactMatcher{}, nil
	case ModeSemantic:
		if embedder == nil {
			return nil, fmt.Errorf("%w: semantic matcher needs an embedding endpoint", domain.ErrConfiguration)
		}
		return NewSemanticMatcher(embedder, threshold), nil
	default:
		return nil, fmt.Errorf("%w: unknown matcher mode %q", domain.ErrConfiguration, mode)
	}
}
