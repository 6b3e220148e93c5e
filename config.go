// config.go
// ---------
// Per-family configuration: base URL, the batch endpoint (one per API
// family; mixing families in a batch is rejected before any network call),
// batch sizing, and the response header names rate-limit info is parsed
// from. Families can be registered in code or loaded from a YAML file.
package callbridge

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultMaxBatchSize = 100

// RateLimitHeaders names the response headers a family reports its limits
// in. Empty names disable that piece of bookkeeping.
type RateLimitHeaders struct {
	Limit     string `yaml:"limit"`
	Remaining string `yaml:"remaining"`
	Reset     string `yaml:"reset"`
}

type FamilyConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`

	// BatchEndpoint is where multipart batch envelopes are POSTed. Relative
	// endpoints resolve against BaseURL. Empty means the family does not
	// support batching.
	BatchEndpoint string `yaml:"batch_endpoint"`

	// MaxBatchSize caps calls per envelope; defaults to DefaultMaxBatchSize.
	MaxBatchSize int `yaml:"max_batch_size"`

	RateLimitHeaders RateLimitHeaders `yaml:"rate_limit_headers"`
}

func (c *FamilyConfig) maxBatchSize() int {
	if c.MaxBatchSize > 0 {
		return c.MaxBatchSize
	}
	return DefaultMaxBatchSize
}

func (c *FamilyConfig) validate() error {
	if c.Name == "" {
		return &ConfigurationError{Reason: "family name must not be empty"}
	}
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return &ConfigurationError{Reason: fmt.Sprintf("family %q: invalid base_url: %v", c.Name, err)}
		}
	}
	if c.MaxBatchSize < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("family %q: max_batch_size must not be negative", c.Name)}
	}
	return nil
}

type Config struct {
	Families []FamilyConfig `yaml:"families"`
}

// LoadConfig reads and validates a YAML family configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Families))
	for i := range c.Families {
		f := &c.Families[i]
		if err := f.validate(); err != nil {
			return err
		}
		if seen[f.Name] {
			return &ConfigurationError{Reason: fmt.Sprintf("family %q declared twice", f.Name)}
		}
		seen[f.Name] = true
	}
	return nil
}
