package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbench/internal/app"
	"docbench/internal/config"
	"docbench/internal/domain"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{MaxFileSizeMB: 2},
		Matcher: config.MatcherConfig{Mode: "exact", Threshold: 0.75},
		Runner:  config.RunnerConfig{TimeoutSecs: 30, Concurrency: 2},
		Backends: config.BackendsConfig{
			Enabled: []string{"local", "claude"},
			Items: map[string]config.BackendConfig{
				"local":  {Name: "local", Provider: "http", Endpoint: "http://localhost:9000/extract"},
				"claude": {Name: "claude", Provider: "claude"},
			},
		},
		Restructure: config.BackendConfig{Provider: "gemini"},
	}
}

func TestNewCore_RegistersEnabledBackendsInOrder(t *testing.T) {
	core, err := app.NewCore(context.Background(), baseConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = core.Close() }()

	assert.Equal(t, []string{"local", "claude"}, core.Registry.Names())
	assert.Equal(t, []string{"local", "claude"}, core.Validation.Backends())
	assert.Equal(t, "exact", core.Runner.Matcher().Name())
}

func TestNewCore_UnknownProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.Backends.Items["local"] = config.BackendConfig{Name: "local", Provider: "carrier-pigeon"}

	_, err := app.NewCore(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewCore_SemanticNeedsEndpoint(t *testing.T) {
	cfg := baseConfig()
	cfg.Matcher.Mode = "semantic"

	_, err := app.NewCore(context.Background(), cfg, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewCore_SemanticWithEmbeddingServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"index": i, "embedding": []float32{1, 0}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.Matcher.Mode = "semantic"
	cfg.Embedding = config.EmbeddingConfig{Endpoint: srv.URL, Model: "all-MiniLM-L6-v2", CacheSize: 16}

	core, err := app.NewCore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = core.Close() }()
	assert.Equal(t, "semantic", core.Runner.Matcher().Name())
}

func TestNewRestructurer(t *testing.T) {
	r, err := app.NewRestructurer(&config.BackendConfig{Provider: "gemini"})
	require.NoError(t, err)
	assert.NotNil(t, r)

	_, err = app.NewRestructurer(&config.BackendConfig{Provider: "openai"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewNotifier(t *testing.T) {
	n, err := app.NewNotifier(context.Background(), &config.EmailConfig{Provider: "noop"}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, n.NotifyTrainingStarted(context.Background(), "m", 1))

	_, err = app.NewNotifier(context.Background(), &config.EmailConfig{Provider: "pager"}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestMaxFileSize(t *testing.T) {
	assert.Equal(t, int64(2*1024*1024), app.MaxFileSize(baseConfig()))
}
