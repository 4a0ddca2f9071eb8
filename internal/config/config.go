package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	S3          S3Config
	Log         LogConfig
	Matcher     MatcherConfig
	Embedding   EmbeddingConfig
	Redis       RedisConfig
	Runner      RunnerConfig
	Backends    BackendsConfig
	Restructure BackendConfig
	Email       EmailConfig
	FineTune    FineTuneConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	Environment   string        `mapstructure:"environment"`
	MaxFileSizeMB int64         `mapstructure:"max_file_size_mb"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds settings for the bucket that keeps flagged documents.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MatcherConfig selects the leaf comparison strategy.
type MatcherConfig struct {
	Mode      string  `mapstructure:"mode"`
	Threshold float64 `mapstructure:"threshold"`
}

// EmbeddingConfig points at an OpenAI-compatible embeddings server.
type EmbeddingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	TimeoutSecs int     `mapstructure:"timeout_secs"`
	RateLimit   float64 `mapstructure:"rate_limit"`
	CacheSize   int     `mapstructure:"cache_size"`
}

// RedisConfig configures the optional shared embedding cache. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RunnerConfig controls how a validation run exercises the backends.
type RunnerConfig struct {
	TimeoutSecs int `mapstructure:"timeout_secs"`
	Concurrency int `mapstructure:"concurrency"`
}

// BackendConfig holds settings for a single extraction backend.
type BackendConfig struct {
	Name             string `mapstructure:"-"`
	Provider         string `mapstructure:"provider"`
	APIKey           string `mapstructure:"api_key"`
	DefaultModel     string `mapstructure:"default_model"`
	Endpoint         string `mapstructure:"endpoint"`
	ModelID          string `mapstructure:"model_id"`
	TimeoutSecs      int    `mapstructure:"timeout_secs"`
	PollIntervalSecs int    `mapstructure:"poll_interval_secs"`
	PollTimeoutSecs  int    `mapstructure:"poll_timeout_secs"`
}

// BackendsConfig lists the enabled backends in registration order.
type BackendsConfig struct {
	Enabled []string
	Items   map[string]BackendConfig
}

// Ordered returns the enabled backend configs in registration order.
func (b *BackendsConfig) Ordered() []BackendConfig {
	out := make([]BackendConfig, 0, len(b.Enabled))
	for _, name := range b.Enabled {
		out = append(out, b.Items[name])
	}
	return out
}

// EmailConfig holds notification delivery settings.
type EmailConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	To          []string `mapstructure:"to"`
}

// FineTuneConfig holds the Azure Document Intelligence model-build settings.
type FineTuneConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Endpoint     string `mapstructure:"endpoint"`
	APIKey       string `mapstructure:"api_key"`
	ContainerURL string `mapstructure:"container_url"`
	APIVersion   string `mapstructure:"api_version"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// DefaultBackends is the registration order used when none is configured.
const DefaultBackends = "mistral,azure,datalab,claude,gemini,azure_finetuned"

// backendDefaults are the per-name defaults for the well-known backends.
var backendDefaults = map[string]BackendConfig{
	"mistral":         {Provider: "mistral", DefaultModel: "mistral-small-latest"},
	"azure":           {Provider: "azure"},
	"datalab":         {Provider: "datalab", PollIntervalSecs: 2, PollTimeoutSecs: 600},
	"claude":          {Provider: "claude", DefaultModel: "claude-sonnet-4-20250514"},
	"gemini":          {Provider: "gemini", DefaultModel: "gemini-2.0-flash"},
	"openai":          {Provider: "openai", DefaultModel: "gpt-4o"},
	"azure_finetuned": {Provider: "azure"},
}

// legacyEnv maps config keys to the unprefixed variable names used by the
// original deployment scripts. They are consulted after the DOCBENCH_ name.
var legacyEnv = map[string][]string{
	"backends.mistral.api_key":          {"MISTRAL_API_KEY"},
	"backends.claude.api_key":           {"ANTHROPIC_API_KEY"},
	"backends.gemini.api_key":           {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"backends.openai.api_key":           {"OPENAI_API_KEY"},
	"backends.datalab.api_key":          {"DATALAB_API_KEY"},
	"backends.azure.endpoint":           {"AZURE_FORMRECOGNIZER_ENDPOINT"},
	"backends.azure.api_key":            {"AZURE_FORMRECOGNIZER_KEY"},
	"backends.azure_finetuned.endpoint": {"AZURE_FORMRECOGNIZER_ENDPOINT"},
	"backends.azure_finetuned.api_key":  {"AZURE_FORMRECOGNIZER_KEY"},
	"restructure.api_key":               {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"finetune.endpoint":                 {"AZURE_FORM_RECOGNIZER_ENDPOINT", "AZURE_FORMRECOGNIZER_ENDPOINT"},
	"finetune.api_key":                  {"AZURE_FORM_RECOGNIZER_KEY", "AZURE_FORMRECOGNIZER_KEY"},
	"finetune.container_url":            {"DOCUMENTINTELLIGENCE_STORAGE_CONTAINER_SAS_URL"},
}

const envPrefix = "DOCBENCH"

// Load reads configuration. A .env file in the working directory is loaded
// first when present, then the optional YAML file at path, then environment
// variables with the DOCBENCH_ prefix.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_file_size_mb", 50)
	v.SetDefault("server.cors_origins", "")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "docbench")
	v.SetDefault("db.password", "docbench_secret")
	v.SetDefault("db.name", "docbench")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "docbench-finetune")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.key_prefix", "finetune")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Matcher defaults
	v.SetDefault("matcher.mode", "exact")
	v.SetDefault("matcher.threshold", 0.75)

	// Embedding defaults
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.timeout_secs", 30)
	v.SetDefault("embedding.rate_limit", 0)
	v.SetDefault("embedding.cache_size", 4096)

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "docbench:emb:")
	v.SetDefault("redis.ttl", "168h")

	// Runner defaults
	v.SetDefault("runner.timeout_secs", 300)
	v.SetDefault("runner.concurrency", 1)

	// Backend defaults
	v.SetDefault("backends.enabled", DefaultBackends)

	// Restructure (second stage for OCR backends)
	v.SetDefault("restructure.provider", "gemini")
	v.SetDefault("restructure.default_model", "gemini-2.0-flash")
	v.SetDefault("restructure.timeout_secs", 120)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@docbench.local")
	v.SetDefault("email.from_name", "docbench")
	v.SetDefault("email.to", "")

	// Fine-tune defaults
	v.SetDefault("finetune.enabled", true)
	v.SetDefault("finetune.api_version", "2023-07-31")
	v.SetDefault("finetune.timeout_secs", 60)

	// Bind environment variables explicitly for nested keys
	envBindings := []string{
		"server.port", "server.read_timeout", "server.write_timeout", "server.environment", "server.max_file_size_mb",
		"server.cors_origins",
		"db.host", "db.port", "db.user", "db.password", "db.name", "db.sslmode", "db.max_open", "db.max_idle",
		"s3.region", "s3.bucket", "s3.endpoint", "s3.access_key", "s3.secret_key", "s3.key_prefix", "s3.presign_expiry",
		"log.level", "log.format",
		"matcher.mode", "matcher.threshold",
		"embedding.endpoint", "embedding.model", "embedding.api_key", "embedding.timeout_secs",
		"embedding.rate_limit", "embedding.cache_size",
		"redis.addr", "redis.password", "redis.db", "redis.prefix", "redis.ttl",
		"runner.timeout_secs", "runner.concurrency",
		"backends.enabled",
		"restructure.provider", "restructure.api_key", "restructure.default_model", "restructure.endpoint",
		"restructure.timeout_secs",
		"email.provider", "email.region", "email.from_address", "email.from_name", "email.to",
		"finetune.enabled", "finetune.endpoint", "finetune.api_key", "finetune.container_url", "finetune.api_version",
		"finetune.timeout_secs",
	}
	for _, key := range envBindings {
		bind(v, key)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if DOCBENCH_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv(envName("server.port")) == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:          serverPort,
		ReadTimeout:   v.GetDuration("server.read_timeout"),
		WriteTimeout:  v.GetDuration("server.write_timeout"),
		Environment:   v.GetString("server.environment"),
		MaxFileSizeMB: v.GetInt64("server.max_file_size_mb"),
		CORSOrigins:   SplitList(v.GetString("server.cors_origins")),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		KeyPrefix:     v.GetString("s3.key_prefix"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Matcher = MatcherConfig{
		Mode:      strings.ToLower(v.GetString("matcher.mode")),
		Threshold: v.GetFloat64("matcher.threshold"),
	}
	cfg.Embedding = EmbeddingConfig{
		Endpoint:    v.GetString("embedding.endpoint"),
		Model:       v.GetString("embedding.model"),
		APIKey:      v.GetString("embedding.api_key"),
		TimeoutSecs: v.GetInt("embedding.timeout_secs"),
		RateLimit:   v.GetFloat64("embedding.rate_limit"),
		CacheSize:   v.GetInt("embedding.cache_size"),
	}
	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
		Prefix:   v.GetString("redis.prefix"),
		TTL:      v.GetDuration("redis.ttl"),
	}
	cfg.Runner = RunnerConfig{
		TimeoutSecs: v.GetInt("runner.timeout_secs"),
		Concurrency: v.GetInt("runner.concurrency"),
	}

	backends, err := loadBackends(v, cfg.Runner.TimeoutSecs)
	if err != nil {
		return nil, err
	}
	cfg.Backends = backends

	cfg.Restructure = readBackend(v, "restructure", "restructure", BackendConfig{})

	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		To:          SplitList(v.GetString("email.to")),
	}
	cfg.FineTune = FineTuneConfig{
		Enabled:      v.GetBool("finetune.enabled"),
		Endpoint:     v.GetString("finetune.endpoint"),
		APIKey:       v.GetString("finetune.api_key"),
		ContainerURL: v.GetString("finetune.container_url"),
		APIVersion:   v.GetString("finetune.api_version"),
		TimeoutSecs:  v.GetInt("finetune.timeout_secs"),
	}

	return cfg, nil
}

func loadBackends(v *viper.Viper, defaultTimeout int) (BackendsConfig, error) {
	out := BackendsConfig{Items: map[string]BackendConfig{}}
	var names []string
	// Accept both "a,b" from the environment and a YAML list.
	for _, item := range v.GetStringSlice("backends.enabled") {
		names = append(names, SplitList(item)...)
	}
	for _, name := range names {
		if _, dup := out.Items[name]; dup {
			return out, fmt.Errorf("backend %q listed twice in backends.enabled", name)
		}
		prefix := "backends." + name
		for _, field := range []string{"provider", "api_key", "default_model", "endpoint", "model_id",
			"timeout_secs", "poll_interval_secs", "poll_timeout_secs"} {
			bind(v, prefix+"."+field)
		}

		def := backendDefaults[name]
		if def.Provider == "" {
			def.Provider = name
		}
		if def.TimeoutSecs == 0 {
			def.TimeoutSecs = defaultTimeout
		}
		out.Items[name] = readBackend(v, prefix, name, def)
		out.Enabled = append(out.Enabled, name)
	}
	return out, nil
}

func readBackend(v *viper.Viper, prefix, name string, def BackendConfig) BackendConfig {
	b := BackendConfig{
		Name:             name,
		Provider:         v.GetString(prefix + ".provider"),
		APIKey:           v.GetString(prefix + ".api_key"),
		DefaultModel:     v.GetString(prefix + ".default_model"),
		Endpoint:         v.GetString(prefix + ".endpoint"),
		ModelID:          v.GetString(prefix + ".model_id"),
		TimeoutSecs:      v.GetInt(prefix + ".timeout_secs"),
		PollIntervalSecs: v.GetInt(prefix + ".poll_interval_secs"),
		PollTimeoutSecs:  v.GetInt(prefix + ".poll_timeout_secs"),
	}
	if b.Provider == "" {
		b.Provider = def.Provider
	}
	if b.DefaultModel == "" {
		b.DefaultModel = def.DefaultModel
	}
	if b.TimeoutSecs == 0 {
		b.TimeoutSecs = def.TimeoutSecs
	}
	if b.PollIntervalSecs == 0 {
		b.PollIntervalSecs = def.PollIntervalSecs
	}
	if b.PollTimeoutSecs == 0 {
		b.PollTimeoutSecs = def.PollTimeoutSecs
	}
	return b
}

func bind(v *viper.Viper, key string) {
	names := append([]string{envName(key)}, legacyEnv[key]...)
	_ = v.BindEnv(append([]string{key}, names...)...)
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// SplitList parses a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
