package model

import "time"

// Config is the complete runtime configuration, assembled from defaults,
// the config file, environment variables and CLI flags.
type Config struct {
	Matching    MatchingConfig    `yaml:"matching" mapstructure:"matching"`
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Concepts    ConceptsConfig    `yaml:"concepts" mapstructure:"concepts"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// MatchingConfig holds the entity matcher defaults. Individual terms in a
// concept dictionary can override each field.
type MatchingConfig struct {
	// Attr is the token attribute phrases match on: "text" or "norm".
	Attr string `yaml:"attr" mapstructure:"attr"`

	// Proximity allows up to this many tokens between phrase words.
	Proximity int `yaml:"proximity" mapstructure:"proximity"`

	// Fuzzy is the allowed edit distance per phrase word, 0 for exact.
	Fuzzy int `yaml:"fuzzy" mapstructure:"fuzzy"`

	// FuzzyMinLen disables fuzzy matching for words shorter than this.
	FuzzyMinLen int `yaml:"fuzzy_min_len" mapstructure:"fuzzy_min_len"`

	// ResolveOverlap keeps only the longest of overlapping entities.
	ResolveOverlap bool `yaml:"resolve_overlap" mapstructure:"resolve_overlap"`

	// PseudoExact suppresses positives only on exact pseudo coincidence
	// instead of any overlap.
	PseudoExact bool `yaml:"pseudo_exact" mapstructure:"pseudo_exact"`
}

// RulesConfig selects the context rule store.
type RulesConfig struct {
	// Path to a JSON rule file. Empty means the embedded Dutch defaults.
	Path string `yaml:"path" mapstructure:"path"`

	// Attr is the token attribute rule triggers match on.
	Attr string `yaml:"attr" mapstructure:"attr"`
}

// ConceptsConfig selects the concept dictionary.
type ConceptsConfig struct {
	// Path to a YAML, JSON or CSV concepts file.
	Path string `yaml:"path" mapstructure:"path"`
}

// ConcurrencyConfig controls batch processing throughput.
type ConcurrencyConfig struct {
	// Workers processing documents in parallel.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// DocsPerSecond caps batch throughput; 0 disables the limiter.
	DocsPerSecond float64 `yaml:"docs_per_second" mapstructure:"docs_per_second"`

	// Burst allows short bursts above the sustained rate.
	Burst int `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig controls report caching for batch runs.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Dir for the disk layer. Empty means ~/.clinform/cache.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// MemoryTTL and DiskTTL bound how long cached reports stay valid.
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// LLMConfig configures the optional model-backed qualifier detector.
type LLMConfig struct {
	// Provider name: "openai" or "" (disabled).
	Provider string `yaml:"provider" mapstructure:"provider"`

	// Model name (provider-specific).
	Model string `yaml:"model" mapstructure:"model"`

	// APIKey for the endpoint. Prefer the OPENAI_API_KEY env var.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// BaseURL for OpenAI-compatible endpoints.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout per request, in seconds.
	Timeout int `yaml:"timeout" mapstructure:"timeout"`

	// MaxTokens for response generation.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	// Format: "json", "markdown" or "summary".
	Format string `yaml:"format" mapstructure:"format"`

	// Verbose enables progress output on stderr.
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`

	// DefaultsInReport includes default qualifier values in rendered
	// reports instead of only trigger-assigned ones.
	DefaultsInReport bool `yaml:"defaults_in_report" mapstructure:"defaults_in_report"`
}

// DefaultConfig returns the built-in defaults: normalized matching, exact
// phrases, the embedded Dutch rule set and JSON output.
func DefaultConfig() *Config {
	return &Config{
		Matching: MatchingConfig{
			Attr:        "norm",
			Proximity:   0,
			Fuzzy:       0,
			FuzzyMinLen: 2,
		},
		Rules: RulesConfig{
			Attr: "norm",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
			Burst:   1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 1000,
		},
		Output: OutputConfig{
			Format:           "json",
			DefaultsInReport: true,
		},
	}
}
