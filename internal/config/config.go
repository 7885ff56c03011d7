package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	HaikuModel          string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel         string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	NoBatch             bool   `yaml:"no_batch" mapstructure:"no_batch"`
	SmallBatchThreshold int    `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
}

// PipelineConfig configures generation behavior.
type PipelineConfig struct {
	// MaxWriteTokens bounds the document-writing stage output.
	MaxWriteTokens int `yaml:"max_write_tokens" mapstructure:"max_write_tokens"`
	// RequireFormCoverage clears submission readiness when the generated
	// document omits a form the compliance analysis marked required.
	RequireFormCoverage bool `yaml:"require_form_coverage" mapstructure:"require_form_coverage"`
}

// EnrichConfig configures attachment enrichment.
type EnrichConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`
	AllowedHosts     []string      `yaml:"allowed_hosts" mapstructure:"allowed_hosts"`
	MaxDocumentBytes int64         `yaml:"max_document_bytes" mapstructure:"max_document_bytes"`
	MaxConcurrent    int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	ReviewThreshold  int           `yaml:"review_threshold" mapstructure:"review_threshold"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// SessionConfig configures diagnostic session logging.
type SessionConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPOSAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "proposals.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("session.dir", "sessions")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.small_batch_threshold", 3)
	v.SetDefault("pipeline.max_write_tokens", 8192)
	v.SetDefault("pipeline.require_form_coverage", true)
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.allowed_hosts", []string{"sam.gov", "www.sam.gov", "beta.sam.gov"})
	v.SetDefault("enrich.max_document_bytes", 10*1024*1024)
	v.SetDefault("enrich.max_concurrent", 3)
	v.SetDefault("enrich.fetch_timeout", "30s")
	v.SetDefault("enrich.review_threshold", 70)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required for the given mode are set.
// Mode is "generate" or "serve".
func (c *Config) Validate(mode string) error {
	var missing []string

	check := func(val, name string) {
		if val == "" {
			missing = append(missing, name+" is required")
		}
	}

	switch mode {
	case "generate", "serve":
		check(c.Anthropic.Key, "anthropic.key")
		check(c.Store.DatabaseURL, "store.database_url")
	default:
		return eris.Errorf("unknown mode %q", mode)
	}

	if mode == "serve" && c.Server.Port <= 0 {
		missing = append(missing, "server.port must be > 0")
	}

	if c.Enrich.Enabled {
		if c.Enrich.MaxConcurrent < 1 || c.Enrich.MaxConcurrent > 10 {
			missing = append(missing, "enrich.max_concurrent must be between 1 and 10")
		}
		if c.Enrich.MaxDocumentBytes <= 0 {
			missing = append(missing, "enrich.max_document_bytes must be > 0")
		}
		if c.Enrich.ReviewThreshold < 0 || c.Enrich.ReviewThreshold > 100 {
			missing = append(missing, "enrich.review_threshold must be between 0 and 100")
		}
	}

	if len(missing) > 0 {
		return eris.New("invalid config: " + strings.Join(missing, "; "))
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
