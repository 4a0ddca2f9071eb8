// Package app wires configuration into the validation core and the
// fine-tune workflow. Both the server and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"docbench/internal/compare"
	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/email/noop"
	"docbench/internal/email/ses"
	"docbench/internal/embedding"
	"docbench/internal/extractor"
	"docbench/internal/extractor/gemini"
	"docbench/internal/port"
	"docbench/internal/repository/postgres"
	"docbench/internal/service"
	s3storage "docbench/internal/storage/s3"
	"docbench/internal/trainer/azure"
	"docbench/internal/validation"

	// Extraction providers register themselves.
	_ "docbench/internal/extractor/azure"
	_ "docbench/internal/extractor/claude"
	_ "docbench/internal/extractor/datalab"
	_ "docbench/internal/extractor/httpenvelope"
	_ "docbench/internal/extractor/openai"
)

// Core is the validation engine: the backend registry, the runner and the
// service facade over them.
type Core struct {
	Registry   *validation.Registry
	Runner     *validation.Runner
	Validation service.ValidationService

	closers []func() error
}

// NewCore builds the matcher, the restructuring stage and the registry of
// enabled backends.
func NewCore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Core, error) {
	core := &Core{}

	matcher, err := core.newMatcher(ctx, cfg, log)
	if err != nil {
		_ = core.Close()
		return nil, err
	}

	restructurer, err := NewRestructurer(&cfg.Restructure)
	if err != nil {
		_ = core.Close()
		return nil, err
	}

	reg, err := validation.BuildRegistry(cfg, extractor.Deps{Restructurer: restructurer, Logger: log})
	if err != nil {
		_ = core.Close()
		return nil, fmt.Errorf("building backend registry: %w", err)
	}

	core.Registry = reg
	core.Runner = validation.NewRunner(matcher, cfg.Runner.Concurrency, log)
	core.Validation = service.NewValidationService(reg, core.Runner, MaxFileSize(cfg))

	log.Info().
		Strs("backends", reg.Names()).
		Str("matcher", matcher.Name()).
		Int("concurrency", cfg.Runner.Concurrency).
		Msg("validation core ready")
	return core, nil
}

// Close releases the shared embedding cache, if any.
func (c *Core) Close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Core) newMatcher(ctx context.Context, cfg *config.Config, log zerolog.Logger) (compare.Matcher, error) {
	if cfg.Matcher.Mode != compare.ModeSemantic || cfg.Embedding.Endpoint == "" {
		return compare.NewMatcher(cfg.Matcher.Mode, cfg.Matcher.Threshold, nil)
	}

	client, err := embedding.NewClient(embedding.Config{
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Timeout:   time.Duration(cfg.Embedding.TimeoutSecs) * time.Second,
		RateLimit: cfg.Embedding.RateLimit,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	var store embedding.Store
	if cfg.Redis.Addr != "" {
		rs, err := embedding.NewRedisStore(ctx, embedding.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			// Fall back to the local LRU alone.
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("embedding redis cache unavailable")
		} else {
			store = rs
			c.closers = append(c.closers, rs.Close)
		}
	}

	cached, err := embedding.NewCachedEmbedder(client, cfg.Embedding.CacheSize, store, cfg.Redis.TTL, log)
	if err != nil {
		return nil, err
	}
	return compare.NewMatcher(cfg.Matcher.Mode, cfg.Matcher.Threshold, cached)
}

// NewRestructurer builds the text-to-schema stage used by OCR-style
// backends. Only Gemini implements it.
func NewRestructurer(cfg *config.BackendConfig) (port.Restructurer, error) {
	switch cfg.Provider {
	case "", "gemini":
		return gemini.NewExtractor(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unsupported restructure provider %q", domain.ErrConfiguration, cfg.Provider)
	}
}

// MaxFileSize returns the upload limit in bytes.
func MaxFileSize(cfg *config.Config) int64 {
	return cfg.Server.MaxFileSizeMB * 1024 * 1024
}

// NewNotifier selects the notification channel.
func NewNotifier(ctx context.Context, cfg *config.EmailConfig, log zerolog.Logger) (port.Notifier, error) {
	switch cfg.Provider {
	case "", "noop":
		return noop.NewNoopNotifier(log), nil
	case "ses":
		n, err := ses.NewSESNotifier(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing SES notifier: %w", err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w: unknown email provider %q", domain.ErrConfiguration, cfg.Provider)
	}
}

// NewFineTuneService wires the fine-tune workflow onto an open database.
func NewFineTuneService(ctx context.Context, cfg *config.Config, db *sqlx.DB, log zerolog.Logger) (service.FineTuneService, error) {
	storage, err := s3storage.NewS3Client(ctx, &cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("initializing S3 client: %w", err)
	}
	notifier, err := NewNotifier(ctx, &cfg.Email, log)
	if err != nil {
		return nil, err
	}
	return service.NewFineTuneService(
		postgres.NewFineTuneRepo(db),
		storage,
		azure.NewTrainer(&cfg.FineTune),
		notifier,
		&cfg.S3,
		MaxFileSize(cfg),
		log,
	), nil
}
