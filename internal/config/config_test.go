package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clubrun/internal/config"
)

func TestDefaultValues(t *testing.T) {
	cfg := config.Default()
	if cfg.Verification.ConfidenceThreshold != 70 {
		t.Fatalf("confidence threshold = %v, want 70", cfg.Verification.ConfidenceThreshold)
	}
	if cfg.Verification.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d, want 3", cfg.Verification.MaxAttempts)
	}
	if cfg.Verification.RetryBackoff.Std() != 5*time.Minute {
		t.Fatalf("retry backoff = %v, want 5m", cfg.Verification.RetryBackoff.Std())
	}
	if cfg.Verification.DeferDelay.Std() != 30*time.Minute {
		t.Fatalf("defer delay = %v, want 30m", cfg.Verification.DeferDelay.Std())
	}
	if cfg.Payments.InstructionTTL.Std() != 24*time.Hour {
		t.Fatalf("instruction ttl = %v, want 24h", cfg.Payments.InstructionTTL.Std())
	}
	if cfg.Payments.OnChainFee != 0.01 {
		t.Fatalf("onchain fee = %v, want 0.01", cfg.Payments.OnChainFee)
	}
	paypal, ok := cfg.Payments.Channels["paypal"]
	if !ok {
		t.Fatalf("paypal channel missing from defaults")
	}
	if paypal.Percent != 0.029 || paypal.Flat != 0.30 {
		t.Fatalf("paypal policy = %+v, want 2.9%% + 0.30", paypal)
	}
	for _, free := range []string{"cashapp", "zelle", "venmo"} {
		policy, ok := cfg.Payments.Channels[free]
		if !ok {
			t.Fatalf("%s channel missing from defaults", free)
		}
		if policy.Percent != 0 || policy.Flat != 0 {
			t.Fatalf("%s policy = %+v, want free", free, policy)
		}
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault()))
	if err != nil {
		t.Fatalf("default template does not validate: %v", err)
	}
	if cfg.Verification.SchedulerInterval.Std() != 15*time.Second {
		t.Fatalf("scheduler interval = %v, want 15s", cfg.Verification.SchedulerInterval.Std())
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	_, err := config.FromYAML([]byte(`verification:
  confidence_threshold: 70
  max_attempts: 3
  retry_backoff: soon
`))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("err = %v, want invalid duration", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"threshold out of range", func(c *config.Config) { c.Verification.ConfidenceThreshold = 150 }},
		{"zero attempts", func(c *config.Config) { c.Verification.MaxAttempts = 0 }},
		{"zero backoff", func(c *config.Config) { c.Verification.RetryBackoff = 0 }},
		{"zero ttl", func(c *config.Config) { c.Payments.InstructionTTL = 0 }},
		{"negative fee policy", func(c *config.Config) {
			c.Payments.Channels["paypal"] = config.FeePolicy{Percent: -0.1}
		}},
		{"webhook without url", func(c *config.Config) {
			c.Webhooks = []config.WebhookConfig{{Secret: "s"}}
		}},
	}
	for _, c := range cases {
		cfg := config.Default()
		c.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
}

func TestLoadOptionalFallsBackToDefault(t *testing.T) {
	workspace := t.TempDir()
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Verification.ConfidenceThreshold != 70 {
		t.Fatalf("expected default config, got threshold %v", cfg.Verification.ConfidenceThreshold)
	}

	custom := strings.Replace(config.GenerateDefault(), "confidence_threshold: 70", "confidence_threshold: 85", 1)
	if err := os.WriteFile(filepath.Join(workspace, "clubrun.yml"), []byte(custom), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = config.LoadOptional(workspace)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Verification.ConfidenceThreshold != 85 {
		t.Fatalf("threshold = %v, want 85 from file", cfg.Verification.ConfidenceThreshold)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := config.Load(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not found hint", err)
	}
}
