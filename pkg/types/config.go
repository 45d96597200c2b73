// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by tool backends that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "niche-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ToolPolicy holds the retry, backoff, and rate settings for one tool.
type ToolPolicy struct {
	// MaxRetries is the number of retries after the first attempt for
	// transient failures. Zero disables retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// BackoffBase is the delay before the first retry; each later retry
	// doubles it (default 500ms).
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base"`

	// BackoffCap bounds the delay between retries (default 10s).
	BackoffCap time.Duration `json:"backoff_cap" yaml:"backoff_cap" mapstructure:"backoff_cap"`

	// RateLimitPerMinute is the client-side call budget. Zero means unlimited.
	RateLimitPerMinute int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`

	// Timeout bounds each attempt and the wait for rate budget (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

const (
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffCap  = 10 * time.Second
	defaultToolTimeout = 30 * time.Second
)

// DefaultToolPolicy returns the policy used for tools without configuration.
func DefaultToolPolicy() ToolPolicy {
	return ToolPolicy{
		MaxRetries:         3,
		BackoffBase:        defaultBackoffBase,
		BackoffCap:         defaultBackoffCap,
		RateLimitPerMinute: 60,
		Timeout:            defaultToolTimeout,
	}
}

// WithDefaults fills zero durations with defaults. MaxRetries and
// RateLimitPerMinute keep their zero meaning.
func (p ToolPolicy) WithDefaults() ToolPolicy {
	if p.BackoffBase <= 0 {
		p.BackoffBase = defaultBackoffBase
	}
	if p.BackoffCap <= 0 {
		p.BackoffCap = defaultBackoffCap
	}
	if p.BackoffCap < p.BackoffBase {
		p.BackoffCap = p.BackoffBase
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultToolTimeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return p
}

// EvidenceConfig holds the evidence-strength thresholds of the gate.
type EvidenceConfig struct {
	// TrendSignalThreshold: a trend is strong evidence when its signal
	// strength is above this value (default 5).
	TrendSignalThreshold float64 `json:"trend_signal_threshold" yaml:"trend_signal_threshold" mapstructure:"trend_signal_threshold"`

	// PainFrequencyThreshold: a pain point is strong evidence when its
	// frequency estimate is above this value (default 5).
	PainFrequencyThreshold float64 `json:"pain_frequency_threshold" yaml:"pain_frequency_threshold" mapstructure:"pain_frequency_threshold"`
}

// DefaultEvidenceConfig returns the default thresholds.
func DefaultEvidenceConfig() EvidenceConfig {
	return EvidenceConfig{TrendSignalThreshold: 5, PainFrequencyThreshold: 5}
}

// SchedulerConfig holds execution limits for a run.
type SchedulerConfig struct {
	// MaxParallel bounds concurrently running nodes (default 4).
	MaxParallel int `json:"max_parallel" yaml:"max_parallel" mapstructure:"max_parallel"`

	// NodeTimeout bounds a node's execution including its tool calls
	// (default 5m). Node definitions may override it.
	NodeTimeout time.Duration `json:"node_timeout" yaml:"node_timeout" mapstructure:"node_timeout"`

	// RunTimeout bounds the whole run by wall clock (default 30m).
	RunTimeout time.Duration `json:"run_timeout" yaml:"run_timeout" mapstructure:"run_timeout"`
}

// WithDefaults fills zero fields with defaults.
func (c SchedulerConfig) WithDefaults() SchedulerConfig {
	if c.MaxParallel <= 0 {
		c.MaxParallel = 4
	}
	if c.NodeTimeout <= 0 {
		c.NodeTimeout = 5 * time.Minute
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 30 * time.Minute
	}
	return c
}

// AIConfig holds shared settings for the LLM tool.
type AIConfig struct {
	// Model is the Gemini model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the Gemini API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// BackendConfig selects and configures the concrete tool backends.
type BackendConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// SerperAPIKey enables the web_search tool.
	SerperAPIKey string `json:"serper_api_key,omitempty" yaml:"serper_api_key,omitempty" mapstructure:"serper_api_key"`

	// SerpAPIKey enables the trends tool.
	SerpAPIKey string `json:"serpapi_api_key,omitempty" yaml:"serpapi_api_key,omitempty" mapstructure:"serpapi_api_key"`

	// LLM configures the llm tool.
	LLM AIConfig `json:"llm" yaml:"llm" mapstructure:"llm"`

	// FixturesFile, when set, replaces every network backend with recorded
	// responses from this YAML file.
	FixturesFile string `json:"fixtures_file,omitempty" yaml:"fixtures_file,omitempty" mapstructure:"fixtures_file"`
}

// StoreConfig holds settings for the run output store.
type StoreConfig struct {
	// Dir is the base directory for run output (contains runs.db, exports/).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// RunConfig groups everything supplied at run start.
type RunConfig struct {
	Input     RunInput              `json:"input" yaml:"input" mapstructure:"input"`
	Evidence  EvidenceConfig        `json:"evidence" yaml:"evidence" mapstructure:"evidence"`
	Scheduler SchedulerConfig       `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Tools     map[string]ToolPolicy `json:"tools" yaml:"tools" mapstructure:"tools"`
	Backends  BackendConfig         `json:"backends" yaml:"backends" mapstructure:"backends"`
	Store     StoreConfig           `json:"store" yaml:"store" mapstructure:"store"`

	// GraphFile is a YAML workflow definition. Empty selects the built-in
	// four-phase pipeline.
	GraphFile string `json:"graph_file,omitempty" yaml:"graph_file,omitempty" mapstructure:"graph_file"`
}

// ToolPolicy returns the configured policy for a tool, or the default.
func (c RunConfig) ToolPolicy(name string) ToolPolicy {
	if p, ok := c.Tools[name]; ok {
		return p.WithDefaults()
	}
	return DefaultToolPolicy()
}
