package model

import "time"

// Config holds the complete runtime configuration.
// Values come from (highest to lowest priority) CLI flags, TRUCKEVAL_*
// environment variables, the config file and DefaultConfig.
type Config struct {
	PolicyFile   string             `yaml:"policy_file" mapstructure:"policy_file"` // Optional YAML policy table; built-in defaults when empty
	TraceStore   TraceStoreConfig   `yaml:"trace_store" mapstructure:"trace_store"`
	AutoScore    AutoScoreConfig    `yaml:"autoscore" mapstructure:"autoscore"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// TraceStoreConfig configures the Langfuse-compatible trace store client
type TraceStoreConfig struct {
	Host       string        `yaml:"host" mapstructure:"host"`
	PublicKey  string        `yaml:"public_key,omitempty" mapstructure:"public_key"`
	SecretKey  string        `yaml:"secret_key,omitempty" mapstructure:"secret_key"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"` // Comma-separated hosts that bypass the proxy
}

// AutoScoreConfig configures the trace auto-scoring job
type AutoScoreConfig struct {
	Limit     int           `yaml:"limit" mapstructure:"limit"`           // Most recent traces fetched per run
	ScoreName string        `yaml:"score_name" mapstructure:"score_name"` // Name of emitted score records
	LedgerDir string        `yaml:"ledger_dir,omitempty" mapstructure:"ledger_dir"`
	LedgerTTL time.Duration `yaml:"ledger_ttl" mapstructure:"ledger_ttl"` // How long a scored trace stays claimed locally
}

// RateLimitingConfig bounds request rate against the trace store
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig sizes the worker pools
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	Pretty  bool `yaml:"pretty" mapstructure:"pretty"`
}

// DefaultAutoScoreName is the score name the auto-scorer writes
const DefaultAutoScoreName = "auto-quality-check"

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		TraceStore: TraceStoreConfig{
			Host:       "http://localhost:3000",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			UserAgent:  "truckeval/0.1",
		},
		AutoScore: AutoScoreConfig{
			Limit:     50,
			ScoreName: DefaultAutoScoreName,
			LedgerTTL: 24 * time.Hour,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 10,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			Pretty: true,
		},
	}
}
