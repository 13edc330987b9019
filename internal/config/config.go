package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// LEXIGUARD_STORE_DRIVER overrides store.driver.
const EnvPrefix = "LEXIGUARD"

// Config represents the complete LexiGuard configuration
// The structure matches the config.yaml file and can be overridden by environment variables

type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Log      LogConfig      `json:"log" mapstructure:"log"`
	Analysis AnalysisConfig `json:"analysis" mapstructure:"analysis"`
	Store    StoreConfig    `json:"store" mapstructure:"store"`
	Redis    RedisConfig    `json:"redis" mapstructure:"redis"`
	MinIO    MinIOConfig    `json:"minio" mapstructure:"minio"`
	Metrics  MetricsConfig  `json:"metrics" mapstructure:"metrics"`
}

// ServerConfig contains HTTP server configuration

type ServerConfig struct {
	Addr          string        `json:"addr" mapstructure:"addr"`
	ReadTimeout   time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
	CORSOrigins   []string      `json:"cors_origins" mapstructure:"cors_origins"`
	MaxUploadSize int64         `json:"max_upload_size" mapstructure:"max_upload_size"`
}

// LogConfig controls the zap logger

type LogConfig struct {
	Level       string   `json:"level" mapstructure:"level"`
	Format      string   `json:"format" mapstructure:"format"`
	OutputPaths []string `json:"output_paths" mapstructure:"output_paths"`
}

// AnalysisConfig tunes the risk-scoring pipeline

type AnalysisConfig struct {
	MinClauseLength  int    `json:"min_clause_length" mapstructure:"min_clause_length"`
	SentenceDetector string `json:"sentence_detector" mapstructure:"sentence_detector"`
	KeywordsFile     string `json:"keywords_file" mapstructure:"keywords_file"`
	ModelEnabled     bool   `json:"model_enabled" mapstructure:"model_enabled"`
	SnippetLength    int    `json:"snippet_length" mapstructure:"snippet_length"`
}

// StoreConfig selects the contract store. An empty DSN for sqlite or
// postgres means no credentials and selects the in-memory store.

type StoreConfig struct {
	Driver         string `json:"driver" mapstructure:"driver"`
	DSN            string `json:"dsn" mapstructure:"dsn"`
	PersistRetries int    `json:"persist_retries" mapstructure:"persist_retries"`
}

// RedisConfig contains the fingerprint cache configuration

type RedisConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Addr     string        `json:"addr" mapstructure:"addr"`
	Password string        `json:"password" mapstructure:"password"`
	DB       int           `json:"db" mapstructure:"db"`
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
}

type MinIOConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
	AccessKey string `json:"access_key" mapstructure:"access_key"`
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	UseSSL    bool   `json:"use_ssl" mapstructure:"use_ssl"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// Load loads the configuration from file and environment variables.
// An empty configFile searches for config.yaml in . and $HOME/.lexiguard.
func Load(configFile string) (*Config, error) {
	// Load .env first (ignore error if not present)
	_ = godotenv.Load()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(resolvePath(configFile))
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.lexiguard")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Resolve paths (expand ~)
	if cfg.Analysis.KeywordsFile != "" {
		cfg.Analysis.KeywordsFile = resolvePath(cfg.Analysis.KeywordsFile)
	}
	if cfg.Store.Driver == "sqlite" && strings.HasPrefix(cfg.Store.DSN, "~") {
		cfg.Store.DSN = resolvePath(cfg.Store.DSN)
	}
	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_size", 20<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})

	// Analysis defaults
	v.SetDefault("analysis.min_clause_length", 10)
	v.SetDefault("analysis.sentence_detector", "punkt")
	v.SetDefault("analysis.keywords_file", "")
	v.SetDefault("analysis.model_enabled", true)
	v.SetDefault("analysis.snippet_length", 500)

	// Store defaults
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.persist_retries", 3)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")

	// MinIO defaults
	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "127.0.0.1:9000")
	v.SetDefault("minio.access_key", "minioadmin")
	v.SetDefault("minio.secret_key", "minioadmin")
	v.SetDefault("minio.bucket", "lexiguard-contracts")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// resolvePath resolves ~ to home directory and cleans the path
func resolvePath(p string) string {
	if p == "" {
		return p
	}
	if p[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return filepath.Clean(p)
}
