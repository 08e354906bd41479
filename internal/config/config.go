package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models clubrun.yml.
type Config struct {
	Verification VerificationConfig `yaml:"verification"`
	Oracle       OracleConfig       `yaml:"oracle"`
	Archiver     ArchiverConfig     `yaml:"archiver"`
	Payments     PaymentsConfig     `yaml:"payments"`
	Webhooks     []WebhookConfig    `yaml:"webhooks,omitempty"`
}

// Duration wraps time.Duration so YAML accepts "5m"/"24h" strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// VerificationConfig carries the worker's tuning knobs. The confidence
// threshold and delays are inherited constants with no documented derivation,
// so they are configuration rather than code.
type VerificationConfig struct {
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	MaxAttempts         int      `yaml:"max_attempts"`
	RetryBackoff        Duration `yaml:"retry_backoff"`
	DeferDelay          Duration `yaml:"defer_delay"`
	TokenRefreshMargin  Duration `yaml:"token_refresh_margin"`
	OracleTimeout       Duration `yaml:"oracle_timeout"`
	SchedulerInterval   Duration `yaml:"scheduler_interval"`
}

type OracleConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type ArchiverConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type PaymentsConfig struct {
	InstructionTTL Duration             `yaml:"instruction_ttl"`
	OnChainFee     float64              `yaml:"onchain_fee"`
	Channels       map[string]FeePolicy `yaml:"channels"`
}

// FeePolicy computes channel fees as amount*Percent + Flat.
type FeePolicy struct {
	Percent float64 `yaml:"percent"`
	Flat    float64 `yaml:"flat"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run clubrun init or pass --workspace", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Verification.ConfidenceThreshold < 0 || c.Verification.ConfidenceThreshold > 100 {
		return fmt.Errorf("config.verification.confidence_threshold must be in [0,100]")
	}
	if c.Verification.MaxAttempts < 1 {
		return fmt.Errorf("config.verification.max_attempts must be >= 1")
	}
	if c.Verification.RetryBackoff <= 0 {
		return fmt.Errorf("config.verification.retry_backoff must be positive")
	}
	if c.Verification.DeferDelay <= 0 {
		return fmt.Errorf("config.verification.defer_delay must be positive")
	}
	if c.Verification.OracleTimeout <= 0 {
		return fmt.Errorf("config.verification.oracle_timeout must be positive")
	}
	if c.Payments.InstructionTTL <= 0 {
		return fmt.Errorf("config.payments.instruction_ttl must be positive")
	}
	for name, policy := range c.Payments.Channels {
		if name == "" {
			return fmt.Errorf("config.payments.channels contains empty channel name")
		}
		if policy.Percent < 0 || policy.Flat < 0 {
			return fmt.Errorf("channel %s has negative fee policy", name)
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "clubrun.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `verification:
  confidence_threshold: 70
  max_attempts: 3
  retry_backoff: 5m
  defer_delay: 30m
  token_refresh_margin: 5m
  oracle_timeout: 30s
  scheduler_interval: 15s

oracle:
  base_url: https://api.serato.com
  client_id: ""
  client_secret: ""

archiver:
  base_url: https://api.pinata.cloud
  token: ""

payments:
  instruction_ttl: 24h
  onchain_fee: 0.01
  channels:
    paypal:
      percent: 0.029
      flat: 0.30
    cashapp:
      percent: 0
      flat: 0
    zelle:
      percent: 0
      flat: 0
    venmo:
      percent: 0
      flat: 0
`
