// Package config provides YAML configuration file loading and validation for
// the tier router. It handles environment variable expansion, applies
// defaults, and rejects configurations the proxy cannot serve.
package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate when a field is left empty.
const (
	DefaultAddress         = ":8080"
	DefaultChainID         = uint64(1)
	DefaultRequestTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)
	DefaultMetricsPath     = "/metrics"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	Server   Server   `yaml:"server"`
	Upstream Upstream `yaml:"upstream"`
	Chains   []Chain  `yaml:"chains"`
	Routing  Routing  `yaml:"routing"`
	Defaults Defaults `yaml:"defaults"`
	Log      Log      `yaml:"log"`
}

// Server configures the inbound HTTP listener.
type Server struct {
	Address         string        `yaml:"address"`          // Listen address (e.g., ":8080")
	DefaultChainID  uint64        `yaml:"default_chain_id"` // Chain used when ?chainId is omitted
	RequestTimeout  time.Duration `yaml:"request_timeout"`  // Bound on head fetch + dispatch per request
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Grace period for in-flight requests
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`   // Largest accepted request body
	MetricsPath     string        `yaml:"metrics_path"`     // Prometheus scrape path
}

// Upstream describes a node API exposing both tiers per chain under
// {base_url}/{chainId}/{full|archive}.
type Upstream struct {
	BaseURL string `yaml:"base_url"` // Supports ${VAR} expansion
	APIKey  string `yaml:"api_key"`  // Sent as "Authorization: Bearer <key>"
}

// Chain overrides endpoints and routing for one chain id. Chains not listed
// are still served through Upstream.BaseURL when it is set.
type Chain struct {
	ID                uint64                `yaml:"id"`
	Name              string                `yaml:"name"`
	FullURL           string                `yaml:"full_url,omitempty"`
	ArchiveURL        string                `yaml:"archive_url,omitempty"`
	ArchiveThreshold  *uint64               `yaml:"archive_threshold,omitempty"`
	HistoricalMethods map[string]MethodRule `yaml:"historical_methods,omitempty"`
}

// Routing holds the classifier inputs shared by every chain.
type Routing struct {
	ArchiveThreshold  *uint64               `yaml:"archive_threshold,omitempty"` // Default 128
	SentinelHead      uint64                `yaml:"sentinel_head,omitempty"`     // Head assumed when the real one is unknown
	HistoricalMethods map[string]MethodRule `yaml:"historical_methods,omitempty"`
	Normalize         map[string]string     `yaml:"normalize,omitempty"` // method -> "decimal" | "balance"
}

// MethodRule says where a historical method carries its block reference.
type MethodRule struct {
	BlockParam int  `yaml:"block_param"`
	CallObject bool `yaml:"call_object,omitempty"`
}

// Defaults contains upstream client settings.
type Defaults struct {
	Timeout        time.Duration `yaml:"timeout"`         // HTTP request timeout (e.g., "10s")
	MaxRetries     int           `yaml:"max_retries"`     // Retries on transport errors for forwarded calls
	BackoffInitial time.Duration `yaml:"backoff_initial"` // First retry delay, doubled per attempt
	BackoffMax     time.Duration `yaml:"backoff_max"`     // Retry delay cap
	HealthSamples  int           `yaml:"health_samples"`  // Samples per chain for the heads command
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// Validate validates the configuration and applies defaults where appropriate.
// Suspicious but usable values produce warnings on stderr.
func (c *Config) Validate() error {
	if c.Defaults.Timeout == 0 {
		return fmt.Errorf("defaults.timeout is required")
	}
	if c.Defaults.MaxRetries < 0 {
		return fmt.Errorf("defaults.max_retries must be >= 0")
	}
	if c.Defaults.HealthSamples < 0 {
		return fmt.Errorf("defaults.health_samples must be >= 0")
	}
	if c.Defaults.HealthSamples == 0 {
		c.Defaults.HealthSamples = 1
	}

	c.applyServerDefaults()
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must be > 0")
	}
	if !strings.HasPrefix(c.Server.MetricsPath, "/") {
		return fmt.Errorf("server.metrics_path must start with /")
	}

	if err := c.validateLog(); err != nil {
		return err
	}

	warnTimeout := func(scope string, d time.Duration) {
		const low = 500 * time.Millisecond
		const high = 2 * time.Minute
		if d > 0 && d < low {
			fmt.Fprintf(os.Stderr, "Warning: %s timeout is very low (%s); requests may fail under normal network jitter\n", scope, d)
		}
		if d > high {
			fmt.Fprintf(os.Stderr, "Warning: %s timeout is very high (%s); failures may take a long time to surface\n", scope, d)
		}
	}
	warnTimeout("defaults", c.Defaults.Timeout)
	warnTimeout("server request", c.Server.RequestTimeout)

	if c.Upstream.BaseURL != "" {
		c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")
		if err := validateURL("upstream.base_url", c.Upstream.BaseURL); err != nil {
			return err
		}
	}
	if c.Upstream.APIKey == "" {
		fmt.Fprintf(os.Stderr, "Warning: upstream.api_key is empty; requests will be sent without authorization\n")
	}

	if c.Upstream.BaseURL == "" && len(c.Chains) == 0 {
		return fmt.Errorf("upstream.base_url or at least one chain is required")
	}

	if err := validateMethods("routing.historical_methods", c.Routing.HistoricalMethods); err != nil {
		return err
	}
	for method, kind := range c.Routing.Normalize {
		switch strings.ToLower(kind) {
		case "decimal", "balance":
		default:
			return fmt.Errorf("routing.normalize.%s: unknown kind %q (expected decimal or balance)", method, kind)
		}
	}

	seen := make(map[uint64]bool, len(c.Chains))
	for i := range c.Chains {
		ch := &c.Chains[i]
		if ch.ID == 0 {
			return fmt.Errorf("chains[%d]: id is required", i)
		}
		if seen[ch.ID] {
			return fmt.Errorf("chain %d: configured twice", ch.ID)
		}
		seen[ch.ID] = true

		if ch.Name == "" {
			ch.Name = fmt.Sprintf("chain-%d", ch.ID)
		}
		if c.Upstream.BaseURL == "" && (ch.FullURL == "" || ch.ArchiveURL == "") {
			return fmt.Errorf("chain %s: full_url and archive_url are required without upstream.base_url", ch.Name)
		}
		for field, u := range map[string]string{"full_url": ch.FullURL, "archive_url": ch.ArchiveURL} {
			if u == "" {
				continue
			}
			if err := validateURL(fmt.Sprintf("chain %s: %s", ch.Name, field), u); err != nil {
				return err
			}
		}
		if err := validateMethods(fmt.Sprintf("chain %s: historical_methods", ch.Name), ch.HistoricalMethods); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) applyServerDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.DefaultChainID == 0 {
		c.Server.DefaultChainID = DefaultChainID
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = DefaultMetricsPath
	}
}

func (c *Config) validateLog() error {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q: expected console or json", c.Log.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q: expected debug, info, warn or error", c.Log.Level)
	}
	return nil
}

func validateURL(scope, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", scope, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s: invalid url (missing scheme or host)", scope)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: invalid url scheme %q (expected http or https)", scope, u.Scheme)
	}
	return nil
}

func validateMethods(scope string, methods map[string]MethodRule) error {
	for name, rule := range methods {
		if name == "" {
			return fmt.Errorf("%s: empty method name", scope)
		}
		if rule.BlockParam < 0 {
			return fmt.Errorf("%s.%s: block_param must be >= 0", scope, name)
		}
	}
	return nil
}

// Chain returns the configuration for id, if listed.
func (c *Config) Chain(id uint64) (Chain, bool) {
	for _, ch := range c.Chains {
		if ch.ID == id {
			return ch, true
		}
	}
	return Chain{}, false
}

// ChainIDs returns the ids of every listed chain in ascending order.
func (c *Config) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Chains))
	for _, ch := range c.Chains {
		ids = append(ids, ch.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Load reads and parses a YAML configuration file, expanding environment
// variables and validating it.
//
// Environment variable expansion:
//
//	Any value can use ${VAR} syntax, expanded with os.ExpandEnv().
//	Example: api_key: ${ONEINCH_API_KEY}
//
// Validation rules:
//   - defaults.timeout must be set and > 0
//   - defaults.max_retries must be >= 0
//   - upstream.base_url, or full_url and archive_url on every chain, is required
//   - chain ids must be non-zero and unique
//   - log.format is console or json
//   - log.level is debug, info, warn or error
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadEnv loads a .env file from the working directory, if present, before
// the config is expanded. Variables already set in the environment win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}
