// Package embedding converts normalized leaf text into sentence embeddings
// through any OpenAI-compatible /v1/embeddings server (text-embeddings-inference,
// vLLM, Ollama, OpenAI itself). The default model is all-MiniLM-L6-v2.
package embedding

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultModel is the sentence-transformers model used for semantic matching.
const DefaultModel = "all-MiniLM-L6-v2"

// Embedder converts text to vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the model name.
	Model() string
}

// Config configures the embedding client.
type Config struct {
	Endpoint  string
	Model     string
	APIKey    string
	BatchSize int
	Timeout   time.Duration

	// RateLimit caps requests per second to the server. 0 disables limiting.
	RateLimit float64

	Logger zerolog.Logger
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}
