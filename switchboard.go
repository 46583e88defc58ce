// Package switchboard routes free-text requests to executable agents. It
// glues the two core components together behind one configuration surface:
// the selector ranks agents against a query, and the collab orchestrator
// fans a prompt out to several agents and aggregates the results.
package switchboard

import (
	"fmt"
	"os"
	"time"

	"github.com/switchboard-dev/switchboard/collab"
	"github.com/switchboard-dev/switchboard/invoker"
	"github.com/switchboard-dev/switchboard/pkg/security"
	"github.com/switchboard-dev/switchboard/selector"
)

// AgentDef declares one agent: the metadata the selector scores against,
// plus the model profile the invoker dispatches on.
type AgentDef struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Capabilities []string `yaml:"capabilities,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
	Model        string   `yaml:"model,omitempty"`
	Prompt       string   `yaml:"prompt,omitempty"`
}

// SelectorSettings is the YAML surface for selector tuning.
type SelectorSettings struct {
	ConfidenceThreshold float64           `yaml:"confidence_threshold,omitempty"`
	FallbackAgent       string            `yaml:"fallback_agent,omitempty"`
	StopWordExceptions  []string          `yaml:"stop_word_exceptions,omitempty"`
	Synonyms            map[string]string `yaml:"synonyms,omitempty"`
}

// RetrySettings configures per-unit retries.
type RetrySettings struct {
	MaxRetries int    `yaml:"max_retries,omitempty"`
	RetryDelay string `yaml:"retry_delay,omitempty"`
}

// CollabSettings is the YAML surface for collaboration defaults. Durations
// are strings in time.ParseDuration format ("30s", "2m").
type CollabSettings struct {
	MaxConcurrency    int           `yaml:"max_concurrency,omitempty"`
	OverallTimeout    string        `yaml:"overall_timeout,omitempty"`
	PerUnitTimeout    string        `yaml:"per_unit_timeout,omitempty"`
	Policy            string        `yaml:"policy,omitempty"`
	MinimumSuccesses  int           `yaml:"minimum_successes,omitempty"`
	ContinueOnFailure *bool         `yaml:"continue_on_failure,omitempty"`
	Retry             RetrySettings `yaml:"retry,omitempty"`
}

// RedisSettings configures the Redis history backend.
type RedisSettings struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	RecordTTL string `yaml:"record_ttl,omitempty"`
}

// HistorySettings selects the dispatch audit trail backend.
type HistorySettings struct {
	// Backend is "", "memory", or "redis". Empty disables history.
	Backend string        `yaml:"backend,omitempty"`
	Redis   RedisSettings `yaml:"redis,omitempty"`
}

// MetricsSettings configures the observability server.
type MetricsSettings struct {
	Port int `yaml:"port,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Agents       []AgentDef       `yaml:"agents"`
	DefaultModel string           `yaml:"default_model,omitempty"`
	Selector     SelectorSettings `yaml:"selector,omitempty"`
	Collab       CollabSettings   `yaml:"collab,omitempty"`
	History      HistorySettings  `yaml:"history,omitempty"`
	Metrics      MetricsSettings  `yaml:"metrics,omitempty"`
}

// Validate checks structural requirements: at least one agent, unique
// names, and a registered fallback if one is configured.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("config: no agents defined")
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("config: agent with empty name")
		}
		if seen[a.Name] {
			return fmt.Errorf("config: duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
	}
	if fb := c.Selector.FallbackAgent; fb != "" && !seen[fb] {
		return fmt.Errorf("config: fallback agent %q is not defined", fb)
	}
	return nil
}

// Descriptors converts the agent definitions into selector descriptors.
func (c *Config) Descriptors() []selector.AgentDescriptor {
	out := make([]selector.AgentDescriptor, len(c.Agents))
	for i, a := range c.Agents {
		out[i] = selector.AgentDescriptor{
			Name:         a.Name,
			Description:  a.Description,
			Capabilities: a.Capabilities,
			Tags:         a.Tags,
		}
	}
	return out
}

// Profiles converts the agent definitions into invoker model profiles.
func (c *Config) Profiles() map[string]invoker.AgentProfile {
	out := make(map[string]invoker.AgentProfile, len(c.Agents))
	for _, a := range c.Agents {
		out[a.Name] = invoker.AgentProfile{Model: a.Model, SystemPrompt: a.Prompt}
	}
	return out
}

// SelectorConfig builds the selector configuration from the YAML settings,
// falling back to the standard defaults for anything unset.
func (c *Config) SelectorConfig() selector.Config {
	cfg := selector.DefaultConfig()
	if c.Selector.ConfidenceThreshold > 0 {
		cfg.ConfidenceThreshold = c.Selector.ConfidenceThreshold
	}
	cfg.FallbackAgent = c.Selector.FallbackAgent
	cfg.StopWordExceptions = c.Selector.StopWordExceptions
	if len(c.Selector.Synonyms) > 0 {
		cfg.Synonyms = c.Selector.Synonyms
	}
	return cfg
}

// CollabOptions builds the default collaboration options from the YAML
// settings.
func (c *Config) CollabOptions() (collab.Options, error) {
	opts := collab.DefaultOptions()
	opts.MaxConcurrency = c.Collab.MaxConcurrency
	opts.Retry.MaxRetries = c.Collab.Retry.MaxRetries

	var err error
	if opts.OverallTimeout, err = parseDuration(c.Collab.OverallTimeout); err != nil {
		return opts, fmt.Errorf("config: overall_timeout: %w", err)
	}
	if opts.PerUnitTimeout, err = parseDuration(c.Collab.PerUnitTimeout); err != nil {
		return opts, fmt.Errorf("config: per_unit_timeout: %w", err)
	}
	if opts.Retry.RetryDelay, err = parseDuration(c.Collab.Retry.RetryDelay); err != nil {
		return opts, fmt.Errorf("config: retry_delay: %w", err)
	}
	if opts.Policy, err = ParsePolicy(c.Collab.Policy, c.Collab.MinimumSuccesses); err != nil {
		return opts, err
	}
	if c.Collab.ContinueOnFailure != nil {
		opts.ContinueOnFailure = *c.Collab.ContinueOnFailure
	}
	return opts, nil
}

// ParsePolicy maps a policy name from configuration to a failure policy.
// An empty name means best effort.
func ParsePolicy(name string, minimum int) (collab.FailurePolicy, error) {
	switch name {
	case "", "best_effort":
		return collab.PolicyBestEffort(), nil
	case "require_all":
		return collab.PolicyAll(), nil
	case "require_majority":
		return collab.PolicyMajority(), nil
	case "require_minimum":
		if minimum <= 0 {
			return collab.FailurePolicy{}, fmt.Errorf("config: require_minimum needs minimum_successes > 0")
		}
		return collab.PolicyMinimum(minimum), nil
	case "first_success":
		return collab.PolicyFirstSuccess(), nil
	default:
		return collab.FailurePolicy{}, fmt.Errorf("config: unknown policy %q", name)
	}
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// FileReader abstracts file access so config loading is testable.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileReader reads from the real filesystem.
type OSFileReader struct{}

func (r *OSFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path) // #nosec G304 - path comes from operator input
}

// ConfigLoader loads and validates configuration files.
type ConfigLoader struct {
	fileReader FileReader
	yamlParser *security.SafeYAMLParser
}

// NewConfigLoader creates a loader with default YAML parsing limits.
func NewConfigLoader(fr FileReader) *ConfigLoader {
	return &ConfigLoader{
		fileReader: fr,
		yamlParser: security.NewSafeYAMLParser(security.DefaultYAMLLimits()),
	}
}

// LoadConfig reads, parses, and validates a config file.
func (cl *ConfigLoader) LoadConfig(path string) (*Config, error) {
	data, err := cl.fileReader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var config Config
	if err := cl.yamlParser.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
