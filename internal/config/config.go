package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/parallaxlabs/deepresearch/internal/research"
)

// Config is the full service configuration loaded at startup.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Auth     AuthConfig     `mapstructure:"auth"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
}

type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SearchConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	Engine        string        `mapstructure:"engine"`
	MaxResults    int           `mapstructure:"max_results"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxBytes      int64         `mapstructure:"max_bytes"`
	MaxChars      int           `mapstructure:"max_chars"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

type PipelineConfig struct {
	MaxRetries          int      `mapstructure:"max_retries"`
	MaxDocuments        int      `mapstructure:"max_documents"`
	PerQueryResults     int      `mapstructure:"per_query_results"`
	MaxCandidates       int      `mapstructure:"max_candidates"`
	VerifyEvidenceChars int      `mapstructure:"verify_evidence_chars"`
	ScoreEvidenceChars  int      `mapstructure:"score_evidence_chars"`
	FinalEvidenceChars  int      `mapstructure:"final_evidence_chars"`
	ExtraBlockedHosts   []string `mapstructure:"extra_blocked_hosts"`
}

type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	CheckpointTTL time.Duration `mapstructure:"checkpoint_ttl"`
}

type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// Load reads the config file at path (DEEPRESEARCH_CONFIG overrides it)
// and applies DEEPRESEARCH_* environment overrides. A missing file yields
// defaults only.
func Load(path string) (*Config, error) {
	if env := os.Getenv("DEEPRESEARCH_CONFIG"); env != "" {
		path = env
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DEEPRESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "600s")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 2112)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("auth.enabled", false)

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", "120s")

	v.SetDefault("search.engine", "google")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.timeout", "20s")
	v.SetDefault("search.rate_per_second", 2.0)

	v.SetDefault("fetch.timeout", "20s")
	v.SetDefault("fetch.max_bytes", 2*1024*1024)
	v.SetDefault("fetch.max_chars", 12000)
	v.SetDefault("fetch.rate_per_second", 4.0)

	def := research.DefaultConfig()
	v.SetDefault("pipeline.max_retries", def.MaxRetries)
	v.SetDefault("pipeline.max_documents", def.MaxDocuments)
	v.SetDefault("pipeline.per_query_results", def.PerQueryResults)
	v.SetDefault("pipeline.max_candidates", def.MaxCandidates)
	v.SetDefault("pipeline.verify_evidence_chars", def.VerifyEvidenceChars)
	v.SetDefault("pipeline.score_evidence_chars", def.ScoreEvidenceChars)
	v.SetDefault("pipeline.final_evidence_chars", def.FinalEvidenceChars)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.checkpoint_ttl", "24h")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "deepresearch")
	v.SetDefault("postgres.database", "deepresearch")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.service_name", "deepresearch")
	v.SetDefault("tracing.sampling_rate", 1.0)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth is enabled")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must be >= 0")
	}
	if c.Pipeline.MaxDocuments <= 0 {
		return fmt.Errorf("pipeline.max_documents must be > 0")
	}
	return nil
}

// ResearchConfig converts the pipeline section into the pipeline's own
// config type, appending any extra blocked hosts to the defaults.
func (c *Config) ResearchConfig() research.Config {
	rc := research.Config{
		MaxRetries:          c.Pipeline.MaxRetries,
		MaxDocuments:        c.Pipeline.MaxDocuments,
		PerQueryResults:     c.Pipeline.PerQueryResults,
		MaxCandidates:       c.Pipeline.MaxCandidates,
		VerifyEvidenceChars: c.Pipeline.VerifyEvidenceChars,
		ScoreEvidenceChars:  c.Pipeline.ScoreEvidenceChars,
		FinalEvidenceChars:  c.Pipeline.FinalEvidenceChars,
		BlockedHosts:        append([]string{}, research.DefaultBlockedHosts...),
	}
	rc.BlockedHosts = append(rc.BlockedHosts, c.Pipeline.ExtraBlockedHosts...)
	return rc
}
